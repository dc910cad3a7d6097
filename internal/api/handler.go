package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mtlprog/eventpass/internal/convert"
	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/external"
	"github.com/mtlprog/eventpass/internal/session"
)

// AccessResolver resolves the access details of a single datatoken.
type AccessResolver interface {
	Resolve(ctx context.Context, chainID int64, tokenAddress string, timeout *int64, account string) (domain.AccessDetails, error)
}

// RateSource serves the current spot-rate snapshot and its history.
type RateSource interface {
	Current() external.Snapshot
	History(ctx context.Context, tokenID, currency string, limit int) ([]external.RateRecord, error)
}

// BalanceReader reads wallet balances.
type BalanceReader interface {
	Balances(ctx context.Context, account string) (domain.WalletBalances, error)
}

// OrderPricer computes the full price of an order.
type OrderPricer interface {
	OrderPriceAndFees(ctx context.Context, asset domain.Asset, serviceIndex int, details domain.AccessDetails, account string, providerFees *domain.ProviderFees) (domain.OrderPriceAndFees, error)
}

// Deps are the services behind the handler. Balances and Orders may be nil
// when no chain RPC is configured; their endpoints then answer 503.
type Deps struct {
	Resolver   AccessResolver
	Sessions   *session.Manager
	Rates      RateSource
	Balances   BalanceReader
	Orders     OrderPricer
	Converter  *convert.Converter
	Currencies []string

	DefaultChainID int64
}

// Handler provides HTTP endpoints for access and pricing.
type Handler struct {
	deps Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// GetAccess handles GET /api/v1/access/{chainId}/{token}?account=&timeout=.
// Without {chainId} the default chain is used.
func (h *Handler) GetAccess(w http.ResponseWriter, r *http.Request) {
	chainID := h.deps.DefaultChainID
	if raw := r.PathValue("chainId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chain id")
			return
		}
		chainID = id
	}

	var timeout *int64
	if t := r.URL.Query().Get("timeout"); t != "" {
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid timeout, expected seconds")
			return
		}
		timeout = &n
	}

	details, err := h.deps.Resolver.Resolve(r.Context(), chainID, r.PathValue("token"), timeout, r.URL.Query().Get("account"))
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type slotResponse struct {
	Index     int                   `json:"index"`
	Details   *domain.AccessDetails `json:"details,omitempty"`
	Error     domain.ErrorKind      `json:"error,omitempty"`
	HasAccess bool                  `json:"hasAccess"`
	Price     *string               `json:"price"`
	Converted string                `json:"converted,omitempty"`
}

type accessResponse struct {
	session.State
	Currency            string         `json:"currency"`
	Slots               []slotResponse `json:"slots"`
	TotalUnlocked       int            `json:"totalUnlocked"`
	TotalSpent          int64          `json:"totalSpent"`
	TotalSpentConverted string         `json:"totalSpentConverted"`
}

// GetAssetAccess handles GET /api/v1/assets/{did}/access?account=&currency=.
// The session is loaded on first use; later calls return the last applied state.
func (h *Handler) GetAssetAccess(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	currency, ok := h.currency(w, r)
	if !ok {
		return
	}

	state, err := h.deps.Sessions.Load(r.Context(), r.PathValue("did"), account)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.accessResponse(state, currency))
}

// RefreshAsset handles POST /api/v1/assets/{did}/refresh?account=&currency=.
func (h *Handler) RefreshAsset(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	currency, ok := h.currency(w, r)
	if !ok {
		return
	}

	state, err := h.deps.Sessions.Refresh(r.Context(), r.PathValue("did"), account)
	if err != nil {
		if errors.Is(err, session.ErrSuperseded) {
			writeError(w, http.StatusConflict, "a newer refresh is in progress")
			return
		}
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.accessResponse(state, currency))
}

type affordableResponse struct {
	Index          int    `json:"index"`
	Price          string `json:"price"`
	Affordable     bool   `json:"affordable"`
	PaymentBalance string `json:"paymentBalance"`
	GasBalance     string `json:"gasBalance"`
}

// GetAffordable handles GET /api/v1/assets/{did}/services/{index}/affordable?account=.
func (h *Handler) GetAffordable(w http.ResponseWriter, r *http.Request) {
	if h.deps.Balances == nil {
		writeError(w, http.StatusServiceUnavailable, "chain access not configured")
		return
	}
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	state, index, ok := h.serviceSlot(w, r, account)
	if !ok {
		return
	}

	agg := state.Aggregator()
	price, ok := agg.ServicePrice(index)
	if !ok {
		writeKindError(w, slotError(state, index))
		return
	}

	balances, err := h.deps.Balances.Balances(r.Context(), account)
	if err != nil {
		slog.Error("failed to read wallet balances", "account", account, "error", err)
		writeKindError(w, domain.NewError(domain.KindTransient, err))
		return
	}

	writeJSON(w, http.StatusOK, affordableResponse{
		Index:          index,
		Price:          price,
		Affordable:     agg.IsAffordable(index, balances),
		PaymentBalance: balances.PaymentToken.String(),
		GasBalance:     balances.Gas.String(),
	})
}

// GetOrderPrice handles GET /api/v1/assets/{did}/services/{index}/order-price?account=.
func (h *Handler) GetOrderPrice(w http.ResponseWriter, r *http.Request) {
	if h.deps.Orders == nil {
		writeError(w, http.StatusServiceUnavailable, "chain access not configured")
		return
	}
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	state, index, ok := h.serviceSlot(w, r, account)
	if !ok {
		return
	}

	slot := state.Slots[index]
	if !slot.Known() {
		writeKindError(w, slotError(state, index))
		return
	}

	order, err := h.deps.Orders.OrderPriceAndFees(r.Context(), *state.Asset, index, *slot.Details, account, nil)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetPrices handles GET /api/v1/prices.
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Rates.Current())
}

// GetPriceHistory handles GET /api/v1/prices/history?tokenId=&currency=&limit=.
func (h *Handler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 1000
	q := r.URL.Query()
	tokenID := q.Get("tokenId")
	currency := q.Get("currency")
	if tokenID == "" || currency == "" {
		writeError(w, http.StatusBadRequest, "tokenId and currency are required")
		return
	}
	limit := 100
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	records, err := h.deps.Rates.History(r.Context(), tokenID, currency, limit)
	if err != nil {
		if errors.Is(err, external.ErrHistoryDisabled) {
			writeError(w, http.StatusServiceUnavailable, "rate history not configured")
			return
		}
		slog.Error("failed to list rate history", "tokenId", tokenID, "currency", currency, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []external.RateRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type convertResponse struct {
	Price     string `json:"price"`
	Symbol    string `json:"symbol"`
	Currency  string `json:"currency"`
	Converted string `json:"converted"`
	Fiat      bool   `json:"fiat"`
}

// Convert handles GET /api/v1/convert?price=&currency=&symbol=.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	currency, ok := h.currency(w, r)
	if !ok {
		return
	}
	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = "OCEAN"
	}
	price := q.Get("price")

	writeJSON(w, http.StatusOK, convertResponse{
		Price:     price,
		Symbol:    symbol,
		Currency:  currency,
		Converted: h.deps.Converter.ConvertSymbol(price, symbol, currency, h.deps.Rates.Current().Prices),
		Fiat:      convert.IsFiat(currency),
	})
}

// serviceSlot loads the session and validates the {index} path value against it.
func (h *Handler) serviceSlot(w http.ResponseWriter, r *http.Request, account string) (session.State, int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid service index")
		return session.State{}, 0, false
	}

	state, err := h.deps.Sessions.Load(r.Context(), r.PathValue("did"), account)
	if err != nil {
		writeKindError(w, err)
		return session.State{}, 0, false
	}
	if state.Asset == nil || index >= len(state.Slots) {
		writeError(w, http.StatusNotFound, "service not found")
		return session.State{}, 0, false
	}
	return state, index, true
}

func (h *Handler) accessResponse(state session.State, currency string) accessResponse {
	agg := state.Aggregator()
	rates := h.deps.Rates.Current().Prices

	slots := make([]slotResponse, len(state.Slots))
	for i, slot := range state.Slots {
		sr := slotResponse{Index: i, Details: slot.Details, HasAccess: agg.HasAccess(i)}
		if slot.Err != nil {
			sr.Error = domain.KindOf(slot.Err)
		}
		if price, ok := agg.ServicePrice(i); ok {
			sr.Price = &price
			sr.Converted = h.deps.Converter.Convert(price, currency, rates)
		}
		slots[i] = sr
	}

	spent := agg.TotalSpent()
	return accessResponse{
		State:               state,
		Currency:            currency,
		Slots:               slots,
		TotalUnlocked:       agg.TotalUnlocked(),
		TotalSpent:          spent,
		TotalSpentConverted: h.deps.Converter.Convert(strconv.FormatInt(spent, 10), currency, rates),
	}
}

func (h *Handler) currency(w http.ResponseWriter, r *http.Request) (string, bool) {
	currency := strings.ToUpper(r.URL.Query().Get("currency"))
	if currency == "" {
		if len(h.deps.Currencies) == 0 {
			writeError(w, http.StatusBadRequest, "currency is required")
			return "", false
		}
		return h.deps.Currencies[0], true
	}
	return currency, true
}

func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return "", false
	}
	return account, true
}

func slotError(state session.State, index int) error {
	if err := state.Slots[index].Err; err != nil {
		return err
	}
	return domain.Errorf(domain.KindIncompleteData, "service %d has no supported pricing", index)
}

// kindStatus maps an error kind to the HTTP status reported to clients.
var kindStatus = map[domain.ErrorKind]int{
	domain.KindUnsupportedNetwork: http.StatusUnprocessableEntity,
	domain.KindIncompleteData:     http.StatusBadGateway,
	domain.KindTransient:          http.StatusServiceUnavailable,
	domain.KindTransaction:        http.StatusConflict,
}

func writeKindError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		slog.Error("unclassified request failure", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
