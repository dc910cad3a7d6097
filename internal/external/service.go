package external

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mtlprog/eventpass/internal/domain"
)

// ErrHistoryDisabled is returned by History when no repository is configured.
var ErrHistoryDisabled = errors.New("rate history storage not configured")

// PriceFetcher fetches a full rate table.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, ids, currencies []string) (domain.Prices, error)
}

// Snapshot is one rate table together with the time it was fetched.
// A zero FetchedAt means the table still holds the initial zero stubs.
type Snapshot struct {
	Prices    domain.Prices `json:"prices"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Service keeps the latest spot-rate snapshot. Readers always see a complete
// table: a refresh replaces the whole snapshot or leaves it untouched.
type Service struct {
	fetcher    PriceFetcher
	repo       RateRepository
	ids        []string
	currencies []string
	snapshot   atomic.Pointer[Snapshot]
}

// NewService creates a Service seeded with zero-valued stubs. repo may be nil.
func NewService(fetcher PriceFetcher, repo RateRepository, ids, currencies []string) *Service {
	s := &Service{
		fetcher:    fetcher,
		repo:       repo,
		ids:        ids,
		currencies: currencies,
	}
	s.snapshot.Store(&Snapshot{Prices: domain.InitialPrices(ids, currencies)})
	return s
}

// Current returns the latest snapshot. The returned map must not be modified.
func (s *Service) Current() Snapshot {
	return *s.snapshot.Load()
}

// Prices returns the latest rate table. The returned map must not be modified.
func (s *Service) Prices() domain.Prices {
	return s.snapshot.Load().Prices
}

// Refresh fetches a new rate table and swaps it in. On failure the previous
// snapshot stays in place.
func (s *Service) Refresh(ctx context.Context) error {
	prices, err := s.fetcher.FetchPrices(ctx, s.ids, s.currencies)
	if err != nil {
		return fmt.Errorf("fetching spot rates: %w", err)
	}

	snap := &Snapshot{Prices: prices, FetchedAt: time.Now().UTC()}
	s.snapshot.Store(snap)

	if s.repo != nil {
		if err := s.repo.SaveSnapshot(ctx, snap.Prices, snap.FetchedAt); err != nil {
			return fmt.Errorf("storing spot rates: %w", err)
		}
	}
	return nil
}

// History returns stored rates for tokenID in currency, newest first.
func (s *Service) History(ctx context.Context, tokenID, currency string, limit int) ([]RateRecord, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.ListRates(ctx, tokenID, currency, limit)
}
