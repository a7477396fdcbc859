package fixgate

import (
	"fmt"
	"strconv"
)

// Standard tags used by the session layer and the bundled templates.
const (
	TagAvgPx                 Tag = 6
	TagBeginString           Tag = 8
	TagBodyLength            Tag = 9
	TagCheckSum              Tag = 10
	TagClOrdID               Tag = 11
	TagCumQty                Tag = 14
	TagCurrency              Tag = 15
	TagExecID                Tag = 17
	TagLastMkt               Tag = 30
	TagLastPx                Tag = 31
	TagLastQty               Tag = 32
	TagMsgSeqNum             Tag = 34
	TagMsgType               Tag = 35
	TagOrderID               Tag = 37
	TagOrderQty              Tag = 38
	TagOrdStatus             Tag = 39
	TagOrdType               Tag = 40
	TagOrigClOrdID           Tag = 41
	TagPrice                 Tag = 44
	TagSenderCompID          Tag = 49
	TagSendingTime           Tag = 52
	TagSide                  Tag = 54
	TagSymbol                Tag = 55
	TagTargetCompID          Tag = 56
	TagText                  Tag = 58
	TagTimeInForce           Tag = 59
	TagTransactTime          Tag = 60
	TagSettlType             Tag = 63
	TagSettlDate             Tag = 64
	TagTradeDate             Tag = 75
	TagOnBehalfOfCompID      Tag = 115
	TagQuoteID               Tag = 117
	TagSettlCurrAmt          Tag = 119
	TagSettlCurrency         Tag = 120
	TagDeliverToCompID       Tag = 128
	TagQuoteReqID            Tag = 131
	TagBidPx                 Tag = 132
	TagOfferPx               Tag = 133
	TagExecType              Tag = 150
	TagLeavesQty             Tag = 151
	TagSecurityType          Tag = 167
	TagLastSpotRate          Tag = 194
	TagLastForwardPoints     Tag = 195
	TagSpread                Tag = 218
	TagMDReqID               Tag = 262
	TagNoMDEntries           Tag = 268
	TagMDEntryType           Tag = 269
	TagMDEntryPx             Tag = 270
	TagMDEntrySize           Tag = 271
	TagMDEntryDate           Tag = 272
	TagQuoteEntryID          Tag = 299
	TagPartyIDSource         Tag = 447
	TagPartyID               Tag = 448
	TagPartyRole             Tag = 452
	TagNoPartyIDs            Tag = 453
	TagProduct               Tag = 460
	TagCFICode               Tag = 461
	TagPartySubID            Tag = 523
	TagNoPartySubIDs         Tag = 802
	TagPartySubIDType        Tag = 803
	TagQtyType               Tag = 854
	TagCalculatedCcyLastQty  Tag = 1056
	TagMarketSegmentID       Tag = 1300
	TagTradePublishIndicator Tag = 1390
)

// sessionTags are derived by the Session Router or computed at encode time
// and can never be set by templates or overrides.
var sessionTags = map[Tag]bool{
	TagBeginString:  true,
	TagBodyLength:   true,
	TagMsgType:      true,
	TagSenderCompID: true,
	TagTargetCompID: true,
	TagMsgSeqNum:    true,
	TagSendingTime:  true,
	TagCheckSum:     true,
}

// FieldDef declares the name and kind of a tag.
type FieldDef struct {
	Tag  Tag
	Name string
	Kind Kind
	// Header marks fields that travel in the standard header.
	Header bool
	// NumInGroup marks the count tag of a repeating group. Its value is
	// derived from the appended instances and is never set directly.
	NumInGroup bool
}

// Dictionary maps tags to their declarations. A Dictionary is immutable;
// Extend returns a new one.
type Dictionary struct {
	byTag  map[Tag]FieldDef
	byName map[string]Tag
}

// NewDictionary builds a dictionary from defs. Duplicate tags or names fail.
func NewDictionary(defs ...FieldDef) (*Dictionary, error) {
	d := &Dictionary{
		byTag:  make(map[Tag]FieldDef, len(defs)),
		byName: make(map[string]Tag, len(defs)),
	}
	if err := d.add(defs); err != nil {
		return nil, err
	}
	return d, nil
}

// Extend returns a copy of d with defs added.
func (d *Dictionary) Extend(defs ...FieldDef) (*Dictionary, error) {
	out := &Dictionary{
		byTag:  make(map[Tag]FieldDef, len(d.byTag)+len(defs)),
		byName: make(map[string]Tag, len(d.byName)+len(defs)),
	}
	for t, def := range d.byTag {
		out.byTag[t] = def
	}
	for n, t := range d.byName {
		out.byName[n] = t
	}
	if err := out.add(defs); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dictionary) add(defs []FieldDef) error {
	for _, def := range defs {
		if def.Tag <= 0 {
			return fmt.Errorf("field %q: tag must be positive", def.Name)
		}
		if def.Kind < KindString || def.Kind > KindTimestamp {
			return fmt.Errorf("field %q: invalid kind %v", def.Name, def.Kind)
		}
		if prev, ok := d.byTag[def.Tag]; ok {
			return fmt.Errorf("tag %d declared twice (%s, %s)", def.Tag, prev.Name, def.Name)
		}
		if def.Name != "" {
			if _, ok := d.byName[def.Name]; ok {
				return fmt.Errorf("field name %q declared twice", def.Name)
			}
			d.byName[def.Name] = def.Tag
		}
		d.byTag[def.Tag] = def
	}
	return nil
}

// Field returns the declaration of tag.
func (d *Dictionary) Field(tag Tag) (FieldDef, bool) {
	def, ok := d.byTag[tag]
	return def, ok
}

// Lookup resolves a field name ("ClOrdID") or a numeric tag ("11").
func (d *Dictionary) Lookup(key string) (FieldDef, bool) {
	if t, ok := d.byName[key]; ok {
		return d.byTag[t], true
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return FieldDef{}, false
	}
	return d.Field(Tag(n))
}

// StandardDictionary declares the session header fields and the standard
// application fields used by the bundled templates.
func StandardDictionary() *Dictionary {
	d, err := NewDictionary(standardFields...)
	if err != nil {
		panic(err)
	}
	return d
}

var standardFields = []FieldDef{
	{Tag: TagBeginString, Name: "BeginString", Kind: KindString, Header: true},
	{Tag: TagBodyLength, Name: "BodyLength", Kind: KindInt, Header: true},
	{Tag: TagMsgType, Name: "MsgType", Kind: KindString, Header: true},
	{Tag: TagSenderCompID, Name: "SenderCompID", Kind: KindString, Header: true},
	{Tag: TagTargetCompID, Name: "TargetCompID", Kind: KindString, Header: true},
	{Tag: TagMsgSeqNum, Name: "MsgSeqNum", Kind: KindInt, Header: true},
	{Tag: TagSendingTime, Name: "SendingTime", Kind: KindTimestamp, Header: true},
	{Tag: TagOnBehalfOfCompID, Name: "OnBehalfOfCompID", Kind: KindString, Header: true},
	{Tag: TagDeliverToCompID, Name: "DeliverToCompID", Kind: KindString, Header: true},
	{Tag: TagCheckSum, Name: "CheckSum", Kind: KindString},

	{Tag: TagAvgPx, Name: "AvgPx", Kind: KindFloat},
	{Tag: TagClOrdID, Name: "ClOrdID", Kind: KindString},
	{Tag: TagCumQty, Name: "CumQty", Kind: KindFloat},
	{Tag: TagCurrency, Name: "Currency", Kind: KindString},
	{Tag: TagExecID, Name: "ExecID", Kind: KindString},
	{Tag: TagLastMkt, Name: "LastMkt", Kind: KindString},
	{Tag: TagLastPx, Name: "LastPx", Kind: KindFloat},
	{Tag: TagLastQty, Name: "LastQty", Kind: KindFloat},
	{Tag: TagOrderID, Name: "OrderID", Kind: KindString},
	{Tag: TagOrderQty, Name: "OrderQty", Kind: KindFloat},
	{Tag: TagOrdStatus, Name: "OrdStatus", Kind: KindChar},
	{Tag: TagOrdType, Name: "OrdType", Kind: KindChar},
	{Tag: TagOrigClOrdID, Name: "OrigClOrdID", Kind: KindString},
	{Tag: TagPrice, Name: "Price", Kind: KindFloat},
	{Tag: TagSide, Name: "Side", Kind: KindChar},
	{Tag: TagSymbol, Name: "Symbol", Kind: KindString},
	{Tag: TagText, Name: "Text", Kind: KindString},
	{Tag: TagTimeInForce, Name: "TimeInForce", Kind: KindChar},
	{Tag: TagTransactTime, Name: "TransactTime", Kind: KindTimestamp},
	{Tag: TagSettlType, Name: "SettlType", Kind: KindString},
	{Tag: TagSettlDate, Name: "SettlDate", Kind: KindString},
	{Tag: TagTradeDate, Name: "TradeDate", Kind: KindString},
	{Tag: TagQuoteID, Name: "QuoteID", Kind: KindString},
	{Tag: TagSettlCurrAmt, Name: "SettlCurrAmt", Kind: KindFloat},
	{Tag: TagSettlCurrency, Name: "SettlCurrency", Kind: KindString},
	{Tag: TagQuoteReqID, Name: "QuoteReqID", Kind: KindString},
	{Tag: TagBidPx, Name: "BidPx", Kind: KindFloat},
	{Tag: TagOfferPx, Name: "OfferPx", Kind: KindFloat},
	{Tag: TagExecType, Name: "ExecType", Kind: KindChar},
	{Tag: TagLeavesQty, Name: "LeavesQty", Kind: KindFloat},
	{Tag: TagSecurityType, Name: "SecurityType", Kind: KindString},
	{Tag: TagLastSpotRate, Name: "LastSpotRate", Kind: KindFloat},
	{Tag: TagLastForwardPoints, Name: "LastForwardPoints", Kind: KindFloat},
	{Tag: TagSpread, Name: "Spread", Kind: KindFloat},
	{Tag: TagMDReqID, Name: "MDReqID", Kind: KindString},
	{Tag: TagNoMDEntries, Name: "NoMDEntries", Kind: KindInt, NumInGroup: true},
	{Tag: TagMDEntryType, Name: "MDEntryType", Kind: KindChar},
	{Tag: TagMDEntryPx, Name: "MDEntryPx", Kind: KindFloat},
	{Tag: TagMDEntrySize, Name: "MDEntrySize", Kind: KindFloat},
	{Tag: TagMDEntryDate, Name: "MDEntryDate", Kind: KindString},
	{Tag: TagQuoteEntryID, Name: "QuoteEntryID", Kind: KindString},
	{Tag: TagPartyIDSource, Name: "PartyIDSource", Kind: KindChar},
	{Tag: TagPartyID, Name: "PartyID", Kind: KindString},
	{Tag: TagPartyRole, Name: "PartyRole", Kind: KindInt},
	{Tag: TagNoPartyIDs, Name: "NoPartyIDs", Kind: KindInt, NumInGroup: true},
	{Tag: TagProduct, Name: "Product", Kind: KindInt},
	{Tag: TagCFICode, Name: "CFICode", Kind: KindString},
	{Tag: TagPartySubID, Name: "PartySubID", Kind: KindString},
	{Tag: TagNoPartySubIDs, Name: "NoPartySubIDs", Kind: KindInt, NumInGroup: true},
	{Tag: TagPartySubIDType, Name: "PartySubIDType", Kind: KindInt},
	{Tag: TagQtyType, Name: "QtyType", Kind: KindInt},
	{Tag: TagCalculatedCcyLastQty, Name: "CalculatedCcyLastQty", Kind: KindFloat},
	{Tag: TagMarketSegmentID, Name: "MarketSegmentID", Kind: KindString},
	{Tag: TagTradePublishIndicator, Name: "TradePublishIndicator", Kind: KindInt},
}
