package domain

import "strings"

// Prices maps a price-index token id to lowercase currency code to spot rate.
// e.g. {"ocean-protocol": {"eur": 0.42}}
type Prices map[string]map[string]float64

// InitialPrices builds the zero-valued stub used before the first fetch succeeds.
func InitialPrices(tokenIDs, currencies []string) Prices {
	p := make(Prices, len(tokenIDs))
	for _, id := range tokenIDs {
		rates := make(map[string]float64, len(currencies))
		for _, c := range currencies {
			rates[strings.ToLower(c)] = 0
		}
		p[id] = rates
	}
	return p
}

// Rate returns the rate for tokenID in currency (case-insensitive).
func (p Prices) Rate(tokenID, currency string) (float64, bool) {
	rates, ok := p[tokenID]
	if !ok {
		return 0, false
	}
	r, ok := rates[strings.ToLower(currency)]
	return r, ok
}
