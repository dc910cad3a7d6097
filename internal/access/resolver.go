package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/subgraph"
)

// TokenSource queries indexed token facts.
type TokenSource interface {
	TokenPrice(ctx context.Context, chainID int64, datatokenID, account string) (*subgraph.Token, error)
}

// Resolver derives AccessDetails for datatokens on supported chains.
type Resolver struct {
	tokens      TokenSource
	supported   []int64
	concurrency int
	now         func() time.Time
}

// NewResolver creates a Resolver. concurrency bounds the per-service fan-out
// of ResolveServices; zero or less means unbounded.
func NewResolver(tokens TokenSource, supportedChainIDs []int64, concurrency int) *Resolver {
	if tokens == nil {
		panic("access.NewResolver: tokens is nil")
	}
	return &Resolver{
		tokens:      tokens,
		supported:   supportedChainIDs,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Resolve returns the access details of tokenAddress for account.
// Errors carry a domain.ErrorKind: unsupported_network, transient or incomplete_data.
func (r *Resolver) Resolve(ctx context.Context, chainID int64, tokenAddress string, timeout *int64, account string) (domain.AccessDetails, error) {
	if !lo.Contains(r.supported, chainID) {
		slog.Warn("network not supported, access query cancelled", "chainId", chainID)
		return domain.AccessDetails{}, domain.Errorf(domain.KindUnsupportedNetwork, "chain %d is not supported", chainID)
	}
	if tokenAddress == "" {
		return domain.AccessDetails{}, domain.Errorf(domain.KindIncompleteData, "service has no datatoken address")
	}

	token, err := r.tokens.TokenPrice(ctx, chainID, tokenAddress, account)
	if err != nil {
		if errors.Is(err, subgraph.ErrUnknownChain) {
			slog.Warn("no indexer configured for chain", "chainId", chainID)
			return domain.AccessDetails{}, domain.NewError(domain.KindUnsupportedNetwork, err)
		}
		slog.Warn("access query failed", "chainId", chainID, "datatoken", tokenAddress, "error", err)
		return domain.AccessDetails{}, domain.NewError(domain.KindTransient, err)
	}
	if token == nil {
		return domain.AccessDetails{}, domain.Errorf(domain.KindIncompleteData, "datatoken %s is not indexed", tokenAddress)
	}

	details, err := detailsFromToken(token, timeout, r.now())
	if err != nil {
		slog.Warn("incomplete access data", "chainId", chainID, "datatoken", tokenAddress, "error", err)
		return domain.AccessDetails{}, err
	}
	return details, nil
}

// ResolveServices resolves every service of asset concurrently and returns only
// once the whole batch is done. Slot i corresponds to asset.Services[i].
func (r *Resolver) ResolveServices(ctx context.Context, asset domain.Asset, account string) []domain.AccessResult {
	results := make([]domain.AccessResult, len(asset.Services))

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, svc := range asset.Services {
		g.Go(func() error {
			details, err := r.Resolve(ctx, asset.ChainID, svc.DatatokenAddress, svc.Timeout, account)
			if err != nil {
				results[i] = domain.AccessResult{Err: err}
				return nil
			}
			results[i] = domain.AccessResult{Details: &details}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
