package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/eventpass/internal/domain"
)

// minGasReserve is the native balance a wallet must exceed to pay for the purchase transaction.
var minGasReserve = decimal.New(1, -3)

// Aggregator answers per-slot and aggregate questions over resolved access slots.
// It never performs I/O.
type Aggregator struct {
	slots []domain.AccessResult
}

// NewAggregator wraps slots, one per asset service.
func NewAggregator(slots []domain.AccessResult) *Aggregator {
	return &Aggregator{slots: slots}
}

// Len returns the number of slots.
func (a *Aggregator) Len() int {
	return len(a.slots)
}

func (a *Aggregator) details(index int) (*domain.AccessDetails, bool) {
	if index < 0 || index >= len(a.slots) || !a.slots[index].Known() {
		return nil, false
	}
	return a.slots[index].Details, true
}

// HasAccess reports whether the slot holds a proof of access.
func (a *Aggregator) HasAccess(index int) bool {
	d, ok := a.details(index)
	return ok && d.ValidOrderTx != ""
}

// ServicePrice returns the slot's price. ok is false when the slot is absent,
// unresolved or has no supported pricing, which is not the same as a price of "0".
func (a *Aggregator) ServicePrice(index int) (price string, ok bool) {
	d, found := a.details(index)
	if !found || !d.IsSupported() {
		return "", false
	}
	return d.Price, true
}

// IsAffordable reports whether the wallet can pay the slot price and still
// cover gas for the purchase transaction.
func (a *Aggregator) IsAffordable(index int, balances domain.WalletBalances) bool {
	price, ok := a.ServicePrice(index)
	if !ok {
		return false
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return false
	}
	return balances.PaymentToken.GreaterThanOrEqual(amount) && balances.Gas.GreaterThan(minGasReserve)
}

// ServicesWithAccess returns the details of every slot holding a proof of access.
func (a *Aggregator) ServicesWithAccess() []domain.AccessDetails {
	return lo.FilterMap(a.slots, func(r domain.AccessResult, _ int) (domain.AccessDetails, bool) {
		if !r.Known() || r.Details.ValidOrderTx == "" {
			return domain.AccessDetails{}, false
		}
		return *r.Details, true
	})
}

// TotalUnlocked counts slots holding a proof of access.
func (a *Aggregator) TotalUnlocked() int {
	return len(a.ServicesWithAccess())
}

// TotalSpent sums the whole-unit part of each unlocked slot's price.
// Fractions are dropped per slot, so ["10", "5.9"] totals 15.
// The total saturates at the int64 range.
func (a *Aggregator) TotalSpent() int64 {
	total := lo.Reduce(a.ServicesWithAccess(), func(acc decimal.Decimal, d domain.AccessDetails, _ int) decimal.Decimal {
		return acc.Add(domain.SafeParse(d.Price).Truncate(0))
	}, decimal.Zero)
	return domain.ClampInt64(total)
}
