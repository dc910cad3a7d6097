package external

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtlprog/eventpass/internal/domain"
)

type mockFetcher struct {
	prices domain.Prices
	err    error
}

func (m *mockFetcher) FetchPrices(_ context.Context, _, _ []string) (domain.Prices, error) {
	return m.prices, m.err
}

type mockRateRepo struct {
	saved []domain.Prices
	err   error
}

func (m *mockRateRepo) SaveSnapshot(_ context.Context, prices domain.Prices, _ time.Time) error {
	m.saved = append(m.saved, prices)
	return m.err
}

func (m *mockRateRepo) ListRates(_ context.Context, tokenID, currency string, _ int) ([]RateRecord, error) {
	return []RateRecord{{TokenID: tokenID, Currency: currency, Rate: 0.4}}, nil
}

func TestServiceStartsWithStubs(t *testing.T) {
	svc := NewService(&mockFetcher{}, nil, []string{"ocean-protocol"}, []string{"EUR"})

	snap := svc.Current()
	if !snap.FetchedAt.IsZero() {
		t.Errorf("FetchedAt = %v, want zero", snap.FetchedAt)
	}
	if rate, ok := snap.Prices.Rate("ocean-protocol", "eur"); !ok || rate != 0 {
		t.Errorf("stub rate = %v, %v; want 0, true", rate, ok)
	}
}

func TestServiceRefreshSwapsSnapshot(t *testing.T) {
	fetcher := &mockFetcher{prices: domain.Prices{"ocean-protocol": {"eur": 0.42}}}
	repo := &mockRateRepo{}
	svc := NewService(fetcher, repo, []string{"ocean-protocol"}, []string{"EUR"})

	before := svc.Prices()
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rate, _ := svc.Prices().Rate("ocean-protocol", "EUR"); rate != 0.42 {
		t.Errorf("rate = %v, want 0.42", rate)
	}
	if svc.Current().FetchedAt.IsZero() {
		t.Error("FetchedAt not set after refresh")
	}
	if rate, _ := before.Rate("ocean-protocol", "EUR"); rate != 0 {
		t.Errorf("previous snapshot mutated: rate = %v", rate)
	}
	if len(repo.saved) != 1 {
		t.Errorf("saved snapshots = %d, want 1", len(repo.saved))
	}
}

func TestServiceRefreshFailureKeepsSnapshot(t *testing.T) {
	fetcher := &mockFetcher{prices: domain.Prices{"ocean-protocol": {"eur": 0.42}}}
	svc := NewService(fetcher, nil, []string{"ocean-protocol"}, []string{"EUR"})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	good := svc.Current()

	fetcher.err = errors.New("upstream down")
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from failed refresh")
	}

	if got := svc.Current(); !got.FetchedAt.Equal(good.FetchedAt) {
		t.Errorf("snapshot replaced after failure: %v", got.FetchedAt)
	}
	if rate, _ := svc.Prices().Rate("ocean-protocol", "eur"); rate != 0.42 {
		t.Errorf("rate = %v, want 0.42 kept", rate)
	}
}

func TestServiceRefreshReportsStorageError(t *testing.T) {
	fetcher := &mockFetcher{prices: domain.Prices{"ocean-protocol": {"eur": 0.42}}}
	repo := &mockRateRepo{err: errors.New("db down")}
	svc := NewService(fetcher, repo, []string{"ocean-protocol"}, []string{"EUR"})

	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected storage error")
	}
	if rate, _ := svc.Prices().Rate("ocean-protocol", "eur"); rate != 0.42 {
		t.Errorf("rate = %v, want fetched table in place despite storage error", rate)
	}
}

func TestServiceHistory(t *testing.T) {
	svc := NewService(&mockFetcher{}, nil, nil, nil)
	if _, err := svc.History(context.Background(), "ocean-protocol", "eur", 10); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("err = %v, want ErrHistoryDisabled", err)
	}

	svc = NewService(&mockFetcher{}, &mockRateRepo{}, nil, nil)
	records, err := svc.History(context.Background(), "ocean-protocol", "eur", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].TokenID != "ocean-protocol" {
		t.Errorf("records = %+v", records)
	}
}
