// Package convert renders token prices in display currencies using spot rates.
// Results are for display only and must never feed on-chain amounts.
package convert

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/mtlprog/eventpass/internal/domain"
)

// Placeholder is returned whenever a price cannot be converted.
const Placeholder = "0.00"

// cryptoPrecision is the number of decimals kept for crypto-denominated amounts
// of at least one unit. Smaller amounts keep that many significant digits.
const cryptoPrecision = 6

var fiatSymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"RUB": "₽",
	"CAD": "CA$",
	"SGD": "S$",
	"HKD": "HK$",
	"AUD": "A$",
}

// Converter converts prices denominated in a payment token into display currencies.
type Converter struct {
	tokenIDs   map[string]string
	baseSymbol string
	printer    *message.Printer
}

// NewConverter creates a Converter. tokenIDs maps token symbols (e.g. "OCEAN") to
// their price-index ids; baseSymbol is the symbol prices are denominated in by default.
func NewConverter(tokenIDs map[string]string, baseSymbol string) *Converter {
	ids := make(map[string]string, len(tokenIDs))
	for sym, id := range tokenIDs {
		ids[strings.ToUpper(sym)] = id
	}
	return &Converter{
		tokenIDs:   ids,
		baseSymbol: strings.ToUpper(baseSymbol),
		printer:    message.NewPrinter(language.English),
	}
}

// Convert renders a price denominated in the base token in the target currency.
func (c *Converter) Convert(price, target string, rates domain.Prices) string {
	return c.ConvertSymbol(price, c.baseSymbol, target, rates)
}

// ConvertSymbol renders a price denominated in symbol in the target currency.
// A missing token id or rate, or an empty or zero price, yields Placeholder.
func (c *Converter) ConvertSymbol(price, symbol, target string, rates domain.Prices) string {
	if price == "" || price == "0" {
		return Placeholder
	}
	tokenID, ok := c.tokenIDs[strings.ToUpper(symbol)]
	if !ok {
		return Placeholder
	}
	rate, ok := rates.Rate(tokenID, target)
	if !ok {
		return Placeholder
	}
	amount, ok := parseFloat(price)
	if !ok {
		return Placeholder
	}

	return c.format(amount*rate, target)
}

// IsFiat reports whether code is an ISO 4217 currency.
func IsFiat(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

func (c *Converter) format(value float64, target string) string {
	code := strings.ToUpper(target)
	if !IsFiat(code) {
		return roundCrypto(value).String() + " " + code
	}

	amount := c.printer.Sprint(number.Decimal(value, number.Scale(2)))
	if sym, ok := fiatSymbols[code]; ok {
		return sym + amount
	}
	return code + " " + amount
}

func roundCrypto(value float64) decimal.Decimal {
	d := decimal.NewFromFloat(value)
	places := int32(cryptoPrecision)
	if abs := math.Abs(value); abs > 0 && abs < 1 {
		places = cryptoPrecision - 1 - int32(math.Floor(math.Log10(abs)))
	}
	return d.Round(places)
}

func parseFloat(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
