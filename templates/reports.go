package templates

import (
	"time"

	"github.com/bjaus/fixgate"
)

// bloombergTrade is a filled FX execution report in the layout Bloomberg
// expects: OnBehalfOfCompID in the header, composite dealer quotes, reference
// prices and a nested party block.
type bloombergTrade struct {
	execID       string
	clOrdID      string
	qty          string
	transactTime func() time.Time
	settlType    string
	settlDate    string
	settlAmt     string
	tradeDate    string
	securityType string
	lastPx       string
	bidPx        string
	spotRate     string
	fwdPoints    string
	trader       string
}

func bloombergSpot(now func() time.Time) bloombergTrade {
	return bloombergTrade{
		execID:       "3-2-805950014T-0-0",
		clOrdID:      "3-2-805950014T-0-0",
		qty:          "1",
		transactTime: now,
		settlType:    "0",
		settlDate:    "20201116",
		settlAmt:     "756",
		tradeDate:    "20201111",
		securityType: "FXSPOT",
		lastPx:       "757.9015",
		bidPx:        "755.93",
		spotRate:     "755.93",
		fwdPoints:    "0",
		trader:       "SCOTT",
	}
}

func bloombergForward() bloombergTrade {
	traded := time.Date(2021, 5, 31, 18, 27, 9, 940*int(time.Millisecond), time.UTC)
	return bloombergTrade{
		execID:       "3-2-816816706M-0-0",
		clOrdID:      "3-2-816816706M-0-0",
		qty:          "1000",
		transactTime: func() time.Time { return traded },
		settlType:    "M3",
		settlDate:    "20210902",
		settlAmt:     "725700",
		tradeDate:    "20210531",
		securityType: "FXFWD",
		lastPx:       "725.70",
		bidPx:        "725.70",
		spotRate:     "725",
		fwdPoints:    "0.7",
		trader:       "SCOT",
	}
}

func (t bloombergTrade) New() (*fixgate.Message, error) {
	b := newBuilder("8").
		header(fixgate.TagOnBehalfOfCompID, str("FX")).
		set(fixgate.TagOrderID, str("3-2-805950014T-0-0")).
		set(fixgate.TagExecID, str(t.execID)).
		set(fixgate.TagExecType, char('F')).
		set(fixgate.TagOrdStatus, char('2')).
		set(fixgate.TagSide, char('2')).
		set(fixgate.TagLeavesQty, num("0")).
		set(fixgate.TagCumQty, num(t.qty)).
		set(fixgate.TagAvgPx, num("755.93")).
		set(fixgate.TagTransactTime, ts(t.transactTime())).
		set(fixgate.TagSettlType, str(t.settlType)).
		set(fixgate.TagSettlDate, str(t.settlDate)).
		set(fixgate.TagSettlCurrency, str("CLP")).
		set(fixgate.TagSettlCurrAmt, num(t.settlAmt)).
		set(fixgate.TagOrderQty, num(t.qty)).
		set(fixgate.TagSpread, num("0")).
		set(fixgate.TagOrdType, char('1')).
		set(fixgate.TagProduct, integer(4)).
		set(fixgate.TagClOrdID, str(t.clOrdID)).
		set(fixgate.TagSymbol, str("USD/CLP")).
		set(fixgate.TagCurrency, str("USD")).
		set(fixgate.TagTradeDate, str(t.tradeDate)).
		set(fixgate.TagSecurityType, str(t.securityType)).
		set(fixgate.TagLastMkt, str("XOFF")).
		set(fixgate.TagLastPx, num(t.lastPx)).
		set(fixgate.TagLastQty, num(t.qty)).
		set(fixgate.TagBidPx, num(t.bidPx)).
		set(fixgate.TagLastSpotRate, num(t.spotRate)).
		set(fixgate.TagLastForwardPoints, num(t.fwdPoints)).
		set(TagCopyMsgIndicator, char('Y')).
		set(fixgate.TagQtyType, integer(0)).
		set(fixgate.TagCalculatedCcyLastQty, num("756")).
		set(TagAggressorIndicator, char('Y')).
		set(fixgate.TagMarketSegmentID, str("XOFF")).
		set(fixgate.TagTradePublishIndicator, integer(0))

	for _, q := range []struct{ dealer, px string }{
		{"BGD1", "755.93"},
		{"BGD2", "0"},
		{"BGD5", "0"},
		{"MidRate", "756.15"},
		{"RefRate", "755.93"},
		{"BGDM Mid", "756.15"},
		{"BGDM Nts", ""},
	} {
		b.group(dealerQuote(q.dealer, q.px))
	}

	b.group(RefPrices.New().
		Set(TagRefPrice, num("755.93")).
		Set(TagRefPriceType, integer(20)).
		Set(TagRefPriceSource, integer(12)).
		Build())

	return b.
		group(party(t.trader, 1,
			subID{"SCOTIABANK SUD AMERICANO ( CLIENT DESK ), SANTIAGO, CHILE", 1},
			subID{"16601104", 2},
			subID{"CRISTOBAL PALACIOS", 9})).
		group(party("REPO", 13,
			subID{"SCOTIA CORREDORA DE BOLSA CHILE", 1},
			subID{"27971561", 2},
			subID{"DIEGO SUSBIELLES", 9})).
		group(party("PRODUCT TYPE", 16, subID{"Dealing (RFQ)", 4})).
		group(party("16601104", 11)).
		build()
}

// celerReport is a one week forward fill for the Celer market data session.
type celerReport struct {
	now func() time.Time
}

func (c celerReport) New() (*fixgate.Message, error) {
	return newBuilder("8").
		set(fixgate.TagOrderID, str("2076603489517051904")).
		set(fixgate.TagExecID, str("2076603492218183680")).
		set(fixgate.TagExecType, char('2')).
		set(fixgate.TagOrdStatus, char('2')).
		set(fixgate.TagSide, char('1')).
		set(fixgate.TagLeavesQty, num("0")).
		set(fixgate.TagCumQty, num("1000000")).
		set(fixgate.TagAvgPx, num("1.183054")).
		set(fixgate.TagOrderQty, num("1000000")).
		set(fixgate.TagOrdType, char('2')).
		set(fixgate.TagClOrdID, str("ordID_1")).
		set(fixgate.TagSymbol, str("EUR/USD")).
		set(fixgate.TagCurrency, str("EUR")).
		set(fixgate.TagLastPx, num("1.183054")).
		set(fixgate.TagLastQty, num("1000000")).
		set(fixgate.TagPrice, num("1.18313")).
		set(fixgate.TagTimeInForce, char('4')).
		set(fixgate.TagTransactTime, ts(c.now())).
		set(fixgate.TagSettlType, str("1W")).
		set(fixgate.TagSettlDate, str("20200915")).
		set(fixgate.TagLastSpotRate, num("1.18317")).
		set(fixgate.TagLastForwardPoints, num("-0.00004")).
		set(fixgate.TagCFICode, str("FORWARD")).
		build()
}

// marketDataSnapshot is a two-sided EUR/USD top of book.
type marketDataSnapshot struct {
	now func() time.Time
}

func (s marketDataSnapshot) New() (*fixgate.Message, error) {
	today := date(s.now())
	b := newBuilder("W").
		set(fixgate.TagSymbol, str("EUR/USD")).
		set(fixgate.TagMDReqID, str("FIXLOADTEST:1500959671701")).
		set(fixgate.TagCFICode, str("SPOT"))

	for _, e := range []struct {
		side     byte
		px, size string
		entryID  string
	}{
		{'0', "1.1337", "1600000", "1009707692782002208"},
		{'1', "1.13373", "2000000", "1009707692782002209"},
	} {
		b.group(MDEntries.New().
			Set(fixgate.TagMDEntryType, char(e.side)).
			Set(fixgate.TagMDEntryPx, num(e.px)).
			Set(fixgate.TagMDEntrySize, num(e.size)).
			Set(fixgate.TagQuoteEntryID, str(e.entryID)).
			Set(fixgate.TagMDEntryDate, today).
			Build())
	}
	return b.build()
}
