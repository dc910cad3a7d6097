package domain

import "github.com/shopspring/decimal"

// WalletBalances holds the balances relevant to a purchase, in whole units.
type WalletBalances struct {
	Account      string          `json:"account"`
	PaymentToken decimal.Decimal `json:"paymentToken"`
	Gas          decimal.Decimal `json:"gas"`
}
