package templates

import "github.com/bjaus/fixgate"

// Counterparty tags outside the standard dictionary.
const (
	TagCopyMsgIndicator   fixgate.Tag = 797
	TagAggressorIndicator fixgate.Tag = 1057

	TagNoCompDealerQuotes    fixgate.Tag = 10009
	TagCompDealerID          fixgate.Tag = 10010
	TagCompDealerQuote       fixgate.Tag = 10011
	TagCompDealerParQuote    fixgate.Tag = 22485
	TagCompDealerQuoteStatus fixgate.Tag = 22486

	TagNoRefPrices    fixgate.Tag = 22078
	TagRefPrice       fixgate.Tag = 22079
	TagRefPriceType   fixgate.Tag = 22080
	TagRefPriceSource fixgate.Tag = 22081
)

var customFields = []fixgate.FieldDef{
	{Tag: TagCopyMsgIndicator, Name: "CopyMsgIndicator", Kind: fixgate.KindChar},
	{Tag: TagAggressorIndicator, Name: "AggressorIndicator", Kind: fixgate.KindChar},
	{Tag: TagNoCompDealerQuotes, Name: "NoCompDealerQuotes", Kind: fixgate.KindInt, NumInGroup: true},
	{Tag: TagCompDealerID, Name: "CompDealerID", Kind: fixgate.KindString},
	{Tag: TagCompDealerQuote, Name: "CompDealerQuote", Kind: fixgate.KindFloat},
	{Tag: TagCompDealerParQuote, Name: "CompDealerParQuote", Kind: fixgate.KindFloat},
	{Tag: TagCompDealerQuoteStatus, Name: "CompDealerQuoteStatus", Kind: fixgate.KindInt},
	{Tag: TagNoRefPrices, Name: "NoRefPrices", Kind: fixgate.KindInt, NumInGroup: true},
	{Tag: TagRefPrice, Name: "RefPrice", Kind: fixgate.KindFloat},
	{Tag: TagRefPriceType, Name: "RefPriceType", Kind: fixgate.KindInt},
	{Tag: TagRefPriceSource, Name: "RefPriceSource", Kind: fixgate.KindInt},
}

// Dictionary returns the standard dictionary extended with the counterparty
// tags used by the bundled templates.
func Dictionary() *fixgate.Dictionary {
	d, err := fixgate.StandardDictionary().Extend(customFields...)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	PartySubIDs = fixgate.NewGroupSpec("NoPartySubIDs", fixgate.TagNoPartySubIDs,
		[]fixgate.Tag{fixgate.TagPartySubID, fixgate.TagPartySubIDType})

	Parties = fixgate.NewGroupSpec("NoPartyIDs", fixgate.TagNoPartyIDs,
		[]fixgate.Tag{fixgate.TagPartyID, fixgate.TagPartyIDSource, fixgate.TagPartyRole},
		PartySubIDs)

	MDEntries = fixgate.NewGroupSpec("NoMDEntries", fixgate.TagNoMDEntries,
		[]fixgate.Tag{fixgate.TagMDEntryType, fixgate.TagMDEntryPx, fixgate.TagMDEntrySize,
			fixgate.TagMDEntryDate, fixgate.TagQuoteEntryID})

	CompDealerQuotes = fixgate.NewGroupSpec("NoCompDealerQuotes", TagNoCompDealerQuotes,
		[]fixgate.Tag{TagCompDealerID, TagCompDealerQuote, TagCompDealerParQuote, TagCompDealerQuoteStatus})

	RefPrices = fixgate.NewGroupSpec("NoRefPrices", TagNoRefPrices,
		[]fixgate.Tag{TagRefPrice, TagRefPriceType, TagRefPriceSource})
)

// GroupSpecs returns every top-level group the templates use, for
// Codec.DecodeMessage.
func GroupSpecs() []*fixgate.GroupSpec {
	return []*fixgate.GroupSpec{Parties, MDEntries, CompDealerQuotes, RefPrices}
}
