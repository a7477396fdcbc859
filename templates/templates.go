// Package templates holds the message templates served by the gateway: the
// legacy send-message pair (FIX.4.1 OrderCancelRequest, FIXT.1.1 Quote), a
// FIX.4.2 QuoteRequest and the FIX.4.4 trade reports and market data
// snapshots agreed with the Bloomberg and Celer counterparties.
//
// Every factory builds a new message per call. Group instances are built one
// at a time with fixgate.GroupBuilder, so no instance aliases another.
package templates

import (
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/fixgate"
)

const (
	FIX41  = "FIX.4.1"
	FIX42  = "FIX.4.2"
	FIX44  = "FIX.4.4"
	FIXT11 = "FIXT.1.1"
)

// Template is one registry entry.
type Template struct {
	Version     string
	MessageType string
	Factory     fixgate.Factory
}

// All returns the bundled templates. now stamps TransactTime and MDEntryDate;
// nil means time.Now.
func All(now func() time.Time) []Template {
	if now == nil {
		now = time.Now
	}
	spot := bloombergSpot(now)
	return []Template{
		{FIX41, "OrderCancelRequest", fixgate.FactoryFunc(orderCancelRequest)},
		{FIXT11, "Quote", fixgate.FactoryFunc(quote)},
		{FIX42, "QuoteRequest", fixgate.FactoryFunc(quoteRequest)},
		{FIX44, "ExecutionReport", spot},
		{FIX44, "ExecutionReportBloombergSpot", spot},
		{FIX44, "ExecutionReportBloombergForward", bloombergForward()},
		{FIX44, "ExecutionReportCeler", celerReport{now: now}},
		{FIX44, "MarketDataSnapshotFullRefresh", marketDataSnapshot{now: now}},
	}
}

// Register adds every bundled template to reg.
func Register(reg *fixgate.Registry, now func() time.Time) error {
	for _, t := range All(now) {
		if err := reg.Register(t.Version, t.MessageType, t.Factory); err != nil {
			return err
		}
	}
	return nil
}

// TextStamp sets Text (58) to "Text: <uuid>" on every send.
func TextStamp() fixgate.StampFunc {
	return func(m *fixgate.Message) error {
		return m.Set(fixgate.TagText, fixgate.String("Text: "+uuid.NewString()))
	}
}

// builder collects the first error while setting fields.
type builder struct {
	m   *fixgate.Message
	err error
}

func newBuilder(msgType string) *builder {
	return &builder{m: fixgate.NewMessage(msgType)}
}

func (b *builder) set(tag fixgate.Tag, v fixgate.Value) *builder {
	if b.err == nil {
		b.err = b.m.Set(tag, v)
	}
	return b
}

func (b *builder) header(tag fixgate.Tag, v fixgate.Value) *builder {
	if b.err == nil {
		b.err = b.m.SetHeader(tag, v)
	}
	return b
}

func (b *builder) group(inst fixgate.GroupInstance, err error) *builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.err = b.m.AppendGroup(inst)
	return b
}

func (b *builder) build() (*fixgate.Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.m, nil
}

func str(s string) fixgate.Value { return fixgate.String(s) }
func num(s string) fixgate.Value { return fixgate.MustFloat(s) }
func char(c byte) fixgate.Value { return fixgate.Char(c) }
func integer(n int64) fixgate.Value { return fixgate.Int(n) }
func ts(t time.Time) fixgate.Value { return fixgate.Timestamp(t) }
func date(t time.Time) fixgate.Value { return fixgate.String(t.UTC().Format("20060102")) }

func orderCancelRequest() (*fixgate.Message, error) {
	return newBuilder("F").
		set(fixgate.TagOrigClOrdID, str("123")).
		set(fixgate.TagClOrdID, str("321")).
		set(fixgate.TagSymbol, str("LNUX")).
		set(fixgate.TagSide, char('1')).
		build()
}

func quote() (*fixgate.Message, error) {
	return newBuilder("S").
		set(fixgate.TagQuoteID, str("123")).
		build()
}

func quoteRequest() (*fixgate.Message, error) {
	return newBuilder("R").
		set(fixgate.TagQuoteReqID, str(uuid.NewString())).
		build()
}

type subID struct {
	id  string
	typ int64
}

func party(id string, role int64, subs ...subID) (fixgate.GroupInstance, error) {
	b := Parties.New().
		Set(fixgate.TagPartyID, str(id)).
		Set(fixgate.TagPartyIDSource, char('D')).
		Set(fixgate.TagPartyRole, integer(role))
	for _, s := range subs {
		inst, err := PartySubIDs.New().
			Set(fixgate.TagPartySubID, str(s.id)).
			Set(fixgate.TagPartySubIDType, integer(s.typ)).
			Build()
		if err != nil {
			return fixgate.GroupInstance{}, err
		}
		b.Append(inst)
	}
	return b.Build()
}

// dealerQuote builds a NoCompDealerQuotes entry. An empty px leaves the quote
// fields unset.
func dealerQuote(dealer, px string) (fixgate.GroupInstance, error) {
	b := CompDealerQuotes.New().Set(TagCompDealerID, str(dealer))
	if px != "" {
		b.Set(TagCompDealerQuote, num(px)).Set(TagCompDealerParQuote, num(px))
	}
	return b.Set(TagCompDealerQuoteStatus, integer(0)).Build()
}
