package subgraph

import (
	"context"
	"fmt"
	"strings"
)

const tokenPriceQuery = `query TokenPriceQuery($datatokenId: ID!, $account: String) {
  token(id: $datatokenId) {
    id
    symbol
    name
    templateId
    publishMarketFeeAddress
    publishMarketFeeToken
    publishMarketFeeAmount
    orders(
      where: { payer: $account }
      orderBy: createdTimestamp
      orderDirection: desc
    ) {
      tx
      serviceIndex
      createdTimestamp
      providerFee
      reuses(orderBy: createdTimestamp, orderDirection: desc) {
        id
        caller
        createdTimestamp
        tx
        block
      }
    }
    dispensers {
      id
      active
      isMinter
      maxBalance
      token {
        id
        name
        symbol
      }
    }
    fixedRateExchanges {
      id
      exchangeId
      price
      publishMarketSwapFee
      baseToken {
        symbol
        name
        address
        decimals
      }
      datatoken {
        symbol
        name
        address
      }
      active
    }
  }
}`

// TokenPrice fetches the pricing and order facts for one datatoken and account.
// A nil Token in the result means the indexer does not know the datatoken.
func (c *Client) TokenPrice(ctx context.Context, chainID int64, datatokenID, account string) (*Token, error) {
	vars := map[string]any{
		"datatokenId": strings.ToLower(datatokenID),
		"account":     strings.ToLower(account),
	}

	var result TokenPriceResult
	if err := c.query(ctx, chainID, tokenPriceQuery, vars, &result); err != nil {
		return nil, fmt.Errorf("querying token price for %s: %w", datatokenID, err)
	}
	return result.Token, nil
}
