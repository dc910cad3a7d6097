package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderFees is the signed, time-bounded fee quote from a service provider.
type ProviderFees struct {
	ProviderFeeAddress string `json:"providerFeeAddress"`
	ProviderFeeToken   string `json:"providerFeeToken"`
	ProviderFeeAmount  string `json:"providerFeeAmount"`
	ProviderData       string `json:"providerData,omitempty"`
	V                  int    `json:"v,omitempty"`
	R                  string `json:"r,omitempty"`
	S                  string `json:"s,omitempty"`
	ValidUntil         int64  `json:"validUntil,omitempty"`
}

// ValidAt reports whether the fee quote is still valid at t.
func (p ProviderFees) ValidAt(t time.Time) bool {
	return p.ValidUntil != 0 && t.Unix() < p.ValidUntil
}

// UnmarshalJSON accepts numeric fields encoded either as JSON numbers or as strings,
// since indexers and providers disagree on the encoding. Empty strings and null
// read as unset.
func (p *ProviderFees) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProviderFeeAddress string          `json:"providerFeeAddress"`
		ProviderFeeToken   string          `json:"providerFeeToken"`
		ProviderFeeAmount  json.RawMessage `json:"providerFeeAmount"`
		ProviderData       string          `json:"providerData"`
		V                  json.RawMessage `json:"v"`
		R                  string          `json:"r"`
		S                  string          `json:"s"`
		ValidUntil         json.RawMessage `json:"validUntil"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	amount, err := lenientNumber(raw.ProviderFeeAmount)
	if err != nil {
		return fmt.Errorf("providerFeeAmount: %w", err)
	}
	if amount != "" {
		if _, err := decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("providerFeeAmount: %w", err)
		}
	}
	v, err := lenientInt(raw.V)
	if err != nil {
		return fmt.Errorf("v: %w", err)
	}
	validUntil, err := lenientInt(raw.ValidUntil)
	if err != nil {
		return fmt.Errorf("validUntil: %w", err)
	}

	*p = ProviderFees{
		ProviderFeeAddress: raw.ProviderFeeAddress,
		ProviderFeeToken:   raw.ProviderFeeToken,
		ProviderFeeAmount:  amount,
		ProviderData:       raw.ProviderData,
		V:                  int(v),
		R:                  raw.R,
		S:                  raw.S,
		ValidUntil:         validUntil,
	}
	return nil
}

// lenientNumber returns the text of a JSON number or numeric string.
// Absent, null and "" give "".
func lenientNumber(raw json.RawMessage) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func lenientInt(raw json.RawMessage) (int64, error) {
	text, err := lenientNumber(raw)
	if err != nil || text == "" {
		return 0, err
	}
	return strconv.ParseInt(text, 10, 64)
}

// FixedBuyQuote is the on-chain cost of buying one datatoken from a fixed-rate exchange,
// already converted from base units.
type FixedBuyQuote struct {
	BaseTokenAmount        string `json:"baseTokenAmount"`
	OceanFeeAmount         string `json:"oceanFeeAmount"`
	MarketFeeAmount        string `json:"marketFeeAmount"`
	ConsumeMarketFeeAmount string `json:"consumeMarketFeeAmount"`
}

// OrderPriceAndFees is computed right before an order is placed.
// Price is base price + publisher order fee + consume order fee.
// ProviderFee and OPCFee are paid in the same transaction but not advertised.
type OrderPriceAndFees struct {
	Price                       string       `json:"price"`
	PublisherMarketOrderFee     string       `json:"publisherMarketOrderFee"`
	PublisherMarketFixedSwapFee string       `json:"publisherMarketFixedSwapFee"`
	ConsumeMarketOrderFee       string       `json:"consumeMarketOrderFee"`
	ConsumeMarketFixedSwapFee   string       `json:"consumeMarketFixedSwapFee"`
	ConsumeMarketFeeAddress     string       `json:"consumeMarketFeeAddress"`
	ProviderFee                 ProviderFees `json:"providerFee"`
	OPCFee                      string       `json:"opcFee"`
}
