package pricing

import (
	"context"

	"github.com/mtlprog/eventpass/internal/config"
	"github.com/mtlprog/eventpass/internal/domain"
)

// FixedQuoter quotes the on-chain cost of one datatoken from a fixed-rate exchange.
type FixedQuoter interface {
	FixedBuyQuote(ctx context.Context, exchangeID, consumeMarketSwapFee string) (domain.FixedBuyQuote, error)
}

// ProviderInitializer fetches a signed provider fee for a service.
type ProviderInitializer interface {
	Initialize(ctx context.Context, did, serviceID, consumer, endpoint string) (domain.ProviderFees, error)
}

// Calculator assembles the full price of an order right before it is placed.
type Calculator struct {
	quoter   FixedQuoter
	provider ProviderInitializer
	fees     config.Fees
}

// NewCalculator creates a Calculator. All dependencies are required.
func NewCalculator(quoter FixedQuoter, provider ProviderInitializer, fees config.Fees) *Calculator {
	if quoter == nil {
		panic("pricing.NewCalculator: quoter is nil")
	}
	if provider == nil {
		panic("pricing.NewCalculator: provider is nil")
	}
	return &Calculator{quoter: quoter, provider: provider, fees: fees}
}

// OrderPriceAndFees prices an order of asset's service at serviceIndex for account.
// providerFees may be nil, in which case a still-valid fee from the last order is
// reused or a fresh one is requested from the provider.
// All amounts are assumed to be in the payment token.
func (c *Calculator) OrderPriceAndFees(ctx context.Context, asset domain.Asset, serviceIndex int, details domain.AccessDetails, account string, providerFees *domain.ProviderFees) (domain.OrderPriceAndFees, error) {
	if account == "" {
		return domain.OrderPriceAndFees{}, domain.Errorf(domain.KindIncompleteData, "no account to price the order for")
	}
	if serviceIndex < 0 || serviceIndex >= len(asset.Services) {
		return domain.OrderPriceAndFees{}, domain.Errorf(domain.KindIncompleteData, "asset %s has no service %d", asset.ID, serviceIndex)
	}
	if !details.IsSupported() {
		return domain.OrderPriceAndFees{}, domain.Errorf(domain.KindIncompleteData, "service %d has no supported pricing", serviceIndex)
	}

	result := domain.OrderPriceAndFees{
		Price:                       orZero(details.Price),
		PublisherMarketOrderFee:     orZero(c.fees.PublisherMarketOrderFee),
		PublisherMarketFixedSwapFee: "0",
		ConsumeMarketOrderFee:       orZero(c.fees.ConsumeMarketOrderFee),
		ConsumeMarketFixedSwapFee:   "0",
		ConsumeMarketFeeAddress:     c.fees.MarketFeeAddress,
		ProviderFee:                 domain.ProviderFees{ProviderFeeAmount: "0"},
		OPCFee:                      "0",
	}

	switch {
	case providerFees != nil:
		result.ProviderFee = *providerFees
	case details.ValidProviderFees != nil:
		result.ProviderFee = *details.ValidProviderFees
	default:
		svc := asset.Services[serviceIndex]
		fees, err := c.provider.Initialize(ctx, asset.ID, svc.ID, account, svc.ServiceEndpoint)
		if err != nil {
			return domain.OrderPriceAndFees{}, domain.NewError(domain.KindTransient, err)
		}
		result.ProviderFee = fees
	}

	if details.Type == domain.PricingFixed {
		quote, err := c.quoter.FixedBuyQuote(ctx, details.AddressOrID, c.fees.ConsumeMarketFixedSwapFee)
		if err != nil {
			return domain.OrderPriceAndFees{}, domain.NewError(domain.KindTransient, err)
		}
		result.Price = orZero(quote.BaseTokenAmount)
		result.OPCFee = orZero(quote.OceanFeeAmount)
		result.PublisherMarketFixedSwapFee = orZero(quote.MarketFeeAmount)
		result.ConsumeMarketFixedSwapFee = orZero(quote.ConsumeMarketFeeAmount)
	}

	result.Price = domain.SafeSum(result.Price, result.ConsumeMarketOrderFee, result.PublisherMarketOrderFee).String()

	return result, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
