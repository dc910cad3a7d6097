// Package session holds the per-wallet view of one asset: its resolved access
// slots, refreshed on demand.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/pricing"
)

// ErrSuperseded is returned by Refresh when a newer refresh was issued before it finished.
// Its result is discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// AssetSource resolves an asset by DID.
type AssetSource interface {
	Resolve(ctx context.Context, did string) (domain.Asset, error)
}

// assetInvalidator is implemented by asset sources that cache assets.
type assetInvalidator interface {
	Invalidate(did string)
}

// SlotResolver resolves the access slots of every service of an asset.
type SlotResolver interface {
	ResolveServices(ctx context.Context, asset domain.Asset, account string) []domain.AccessResult
}

// State is an immutable view of a session.
type State struct {
	DID          string                `json:"did"`
	Account      string                `json:"account"`
	Asset        *domain.Asset         `json:"asset,omitempty"`
	Slots        []domain.AccessResult `json:"-"`
	Generation   uint64                `json:"generation"`
	RefreshToken string                `json:"refreshToken,omitempty"`
	Verifying    bool                  `json:"verifying"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Aggregator returns the price aggregator over the state's slots.
func (s State) Aggregator() *pricing.Aggregator {
	return pricing.NewAggregator(s.Slots)
}

// DatatokenForEvent returns the datatoken of a 1-based event id.
func (s State) DatatokenForEvent(eventID int) (domain.Datatoken, bool) {
	if s.Asset == nil || eventID < 1 || eventID > len(s.Asset.Datatokens) {
		return domain.Datatoken{}, false
	}
	return s.Asset.Datatokens[eventID-1], true
}

// ServiceForDatatoken returns the service sold through the datatoken at address and its index.
func (s State) ServiceForDatatoken(address string) (domain.Service, int, bool) {
	if s.Asset == nil || address == "" {
		return domain.Service{}, -1, false
	}
	return lo.FindIndexOf(s.Asset.Services, func(svc domain.Service) bool {
		return strings.EqualFold(svc.DatatokenAddress, address)
	})
}

// Session tracks one (asset, account) pair. Refreshes may overlap; each one
// takes a generation number and only the latest generation is applied.
type Session struct {
	did      string
	account  string
	assets   AssetSource
	resolver SlotResolver

	latest atomic.Uint64

	mu      sync.RWMutex
	state   State
	settled uint64
}

// New creates an empty session. Call Refresh to load it.
func New(did, account string, assets AssetSource, resolver SlotResolver) *Session {
	return &Session{
		did:      did,
		account:  account,
		assets:   assets,
		resolver: resolver,
		state:    State{DID: did, Account: account},
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	st.Verifying = s.latest.Load() != s.settled
	return st
}

// Refresh re-resolves the asset and all its access slots. The whole batch is
// resolved before anything is published. If another Refresh started after this
// one, the result is dropped and ErrSuperseded returned. A caching asset
// source is invalidated first so the asset itself is refetched.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	if inv, ok := s.assets.(assetInvalidator); ok {
		inv.Invalidate(s.did)
	}
	gen := s.latest.Add(1)
	token := uuid.NewString()

	state, err := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.latest.Load() {
		slog.Debug("dropping stale refresh", "did", s.did, "generation", gen)
		return State{}, ErrSuperseded
	}
	s.settled = gen
	if err != nil {
		return State{}, err
	}

	state.Generation = gen
	state.RefreshToken = token
	state.UpdatedAt = time.Now().UTC()
	s.state = state
	return state, nil
}

func (s *Session) load(ctx context.Context) (State, error) {
	if s.account == "" {
		return State{}, domain.Errorf(domain.KindIncompleteData, "no wallet account")
	}

	asset, err := s.assets.Resolve(ctx, s.did)
	if err != nil {
		return State{}, domain.NewError(domain.KindTransient, fmt.Errorf("resolving asset %s: %w", s.did, err))
	}

	slots := s.resolver.ResolveServices(ctx, asset, s.account)
	return State{
		DID:     s.did,
		Account: s.account,
		Asset:   &asset,
		Slots:   slots,
	}, nil
}
