package domain

// PricingType is the pricing mechanism available for a datatoken.
type PricingType string

const (
	PricingFixed        PricingType = "fixed"
	PricingDispenser    PricingType = "dispenser"
	PricingNotSupported PricingType = "NOT_SUPPORTED"
)

// TokenInfo describes an ERC20 token taking part in a purchase.
// Decimals is zero for datatokens, whose decimals the subgraph does not report.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals,omitempty"`
}

// AccessDetails is the normalized ownership and pricing state of one service
// datatoken for one account.
//
// Price and fee amounts are kept as the strings the indexer returned. They are
// parsed into decimals only where arithmetic happens.
type AccessDetails struct {
	Type                    PricingType   `json:"type"`
	AddressOrID             string        `json:"addressOrId,omitempty"`
	Price                   string        `json:"price,omitempty"`
	TemplateID              *int          `json:"templateId,omitempty"`
	IsOwned                 bool          `json:"isOwned"`
	IsPurchasable           bool          `json:"isPurchasable"`
	ValidOrderTx            string        `json:"validOrderTx"`
	BaseToken               *TokenInfo    `json:"baseToken,omitempty"`
	Datatoken               *TokenInfo    `json:"datatoken,omitempty"`
	PublisherMarketOrderFee string        `json:"publisherMarketOrderFee,omitempty"`
	ValidProviderFees       *ProviderFees `json:"validProviderFees,omitempty"`
}

// IsSupported reports whether the details carry usable pricing fields.
func (d AccessDetails) IsSupported() bool {
	return d.Type == PricingFixed || d.Type == PricingDispenser
}

// AccessResult is one resolved slot: either Details or Err is set.
// A slot with Err is "unknown", which is different from "no access".
type AccessResult struct {
	Details *AccessDetails `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Known reports whether the slot was resolved successfully.
func (r AccessResult) Known() bool {
	return r.Err == nil && r.Details != nil
}
