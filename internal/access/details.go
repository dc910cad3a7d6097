package access

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/subgraph"
)

// detailsFromToken derives AccessDetails from indexed token facts.
// Ownership is derived from orders first; pricing from exchanges and dispensers second.
func detailsFromToken(token *subgraph.Token, timeout *int64, now time.Time) (domain.AccessDetails, error) {
	var details domain.AccessDetails

	if len(token.Orders) > 0 {
		order := token.Orders[0]
		details.ValidProviderFees = validProviderFees(order.ProviderFee, now)
		details.IsOwned = isOwned(order.CreatedTimestamp, timeout, now)
		if details.IsOwned {
			details.ValidOrderTx = proofOfAccess(order)
		}
	}

	if len(token.FixedRateExchanges) == 0 && len(token.Dispensers) == 0 {
		details.Type = domain.PricingNotSupported
		details.ValidProviderFees = nil
		return details, nil
	}

	if token.TemplateID == nil {
		return domain.AccessDetails{}, domain.Errorf(domain.KindIncompleteData, "token %s has no template id", token.ID)
	}
	details.TemplateID = token.TemplateID
	details.PublisherMarketOrderFee = token.PublishMarketFeeAmount

	if len(token.FixedRateExchanges) > 0 {
		return withFixedRate(details, token.FixedRateExchanges[0])
	}
	return withDispenser(details, token.ID, token.Dispensers[0])
}

// isOwned is true when an order exists and access is perpetual (timeout 0)
// or still inside the timeout window. Unknown timestamp or timeout means not owned.
func isOwned(createdTimestamp int64, timeout *int64, now time.Time) bool {
	if createdTimestamp == 0 || timeout == nil {
		return false
	}
	if *timeout == 0 {
		return true
	}
	return now.Unix()-createdTimestamp < *timeout
}

// proofOfAccess returns the latest reuse tx if the order was reused, else the order tx.
func proofOfAccess(order subgraph.Order) string {
	if len(order.Reuses) > 0 && order.Reuses[0].TX != "" {
		return order.Reuses[0].TX
	}
	return order.TX
}

// validProviderFees parses the order's provider fee and keeps it only while it is still valid.
func validProviderFees(raw string, now time.Time) *domain.ProviderFees {
	if raw == "" {
		return nil
	}
	var fees domain.ProviderFees
	if err := json.Unmarshal([]byte(raw), &fees); err != nil {
		slog.Debug("ignoring unparsable provider fee", "error", err)
		return nil
	}
	if !fees.ValidAt(now) {
		return nil
	}
	return &fees
}

func withFixedRate(details domain.AccessDetails, fixed subgraph.FixedRateExchange) (domain.AccessDetails, error) {
	if fixed.BaseToken.Name == "" || fixed.BaseToken.Symbol == "" || fixed.BaseToken.Decimals == nil ||
		fixed.Datatoken.Name == "" || fixed.Datatoken.Symbol == "" {
		return domain.AccessDetails{}, domain.Errorf(domain.KindIncompleteData, "exchange %s has incomplete token metadata", fixed.ExchangeID)
	}

	details.Type = domain.PricingFixed
	details.AddressOrID = fixed.ExchangeID
	details.Price = fixed.Price
	details.IsPurchasable = fixed.Active
	details.BaseToken = &domain.TokenInfo{
		Address:  fixed.BaseToken.Address,
		Name:     fixed.BaseToken.Name,
		Symbol:   fixed.BaseToken.Symbol,
		Decimals: *fixed.BaseToken.Decimals,
	}
	details.Datatoken = &domain.TokenInfo{
		Address: fixed.Datatoken.Address,
		Name:    fixed.Datatoken.Name,
		Symbol:  fixed.Datatoken.Symbol,
	}
	return details, nil
}

func withDispenser(details domain.AccessDetails, tokenID string, dispenser subgraph.Dispenser) (domain.AccessDetails, error) {
	if dispenser.Token.Name == "" || dispenser.Token.Symbol == "" {
		return domain.AccessDetails{}, domain.Errorf(domain.KindIncompleteData, "dispenser %s has incomplete token metadata", dispenser.ID)
	}

	address := dispenser.Token.ID
	if address == "" {
		address = tokenID
	}

	details.Type = domain.PricingDispenser
	details.AddressOrID = address
	details.Price = "0"
	details.IsPurchasable = dispenser.Active
	details.Datatoken = &domain.TokenInfo{
		Address: address,
		Name:    dispenser.Token.Name,
		Symbol:  dispenser.Token.Symbol,
	}
	return details, nil
}
