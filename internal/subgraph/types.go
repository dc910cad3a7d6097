package subgraph

// TokenPriceResult is the data payload of the token price query.
type TokenPriceResult struct {
	Token *Token `json:"token"`
}

// Token is a datatoken as indexed by the subgraph.
// Numeric amounts arrive as strings and are kept that way.
type Token struct {
	ID                      string              `json:"id"`
	Symbol                  string              `json:"symbol"`
	Name                    string              `json:"name"`
	TemplateID              *int                `json:"templateId"`
	PublishMarketFeeAddress string              `json:"publishMarketFeeAddress"`
	PublishMarketFeeToken   string              `json:"publishMarketFeeToken"`
	PublishMarketFeeAmount  string              `json:"publishMarketFeeAmount"`
	Orders                  []Order             `json:"orders"`
	Dispensers              []Dispenser         `json:"dispensers"`
	FixedRateExchanges      []FixedRateExchange `json:"fixedRateExchanges"`
}

// Order is a past order for the queried account, newest first.
type Order struct {
	TX               string       `json:"tx"`
	ServiceIndex     int          `json:"serviceIndex"`
	CreatedTimestamp int64        `json:"createdTimestamp"`
	ProviderFee      string       `json:"providerFee"`
	Reuses           []OrderReuse `json:"reuses"`
}

// OrderReuse extends or transfers the validity of an order.
type OrderReuse struct {
	ID               string `json:"id"`
	Caller           string `json:"caller"`
	CreatedTimestamp int64  `json:"createdTimestamp"`
	TX               string `json:"tx"`
	Block            int64  `json:"block"`
}

// Dispenser hands out datatokens for free.
type Dispenser struct {
	ID         string    `json:"id"`
	Active     bool      `json:"active"`
	IsMinter   bool      `json:"isMinter"`
	MaxBalance string    `json:"maxBalance"`
	Token      TokenMeta `json:"token"`
}

// FixedRateExchange sells datatokens at a fixed price in a base token.
type FixedRateExchange struct {
	ID                   string    `json:"id"`
	ExchangeID           string    `json:"exchangeId"`
	Price                string    `json:"price"`
	PublishMarketSwapFee string    `json:"publishMarketSwapFee"`
	BaseToken            TokenMeta `json:"baseToken"`
	Datatoken            TokenMeta `json:"datatoken"`
	Active               bool      `json:"active"`
}

// TokenMeta is the token description embedded in exchanges and dispensers.
// Decimals is nil when the indexer omits it.
type TokenMeta struct {
	ID       string `json:"id,omitempty"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
}
