package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/eventpass/internal/convert"
	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/external"
	"github.com/mtlprog/eventpass/internal/session"
)

type mockResolver struct {
	details     domain.AccessDetails
	err         error
	lastChainID int64
	lastTimeout *int64
	lastAccount string
}

func (m *mockResolver) Resolve(_ context.Context, chainID int64, _ string, timeout *int64, account string) (domain.AccessDetails, error) {
	m.lastChainID, m.lastTimeout, m.lastAccount = chainID, timeout, account
	return m.details, m.err
}

type mockAssets struct {
	asset domain.Asset
	err   error
}

func (m *mockAssets) Resolve(_ context.Context, _ string) (domain.Asset, error) {
	return m.asset, m.err
}

type mockSlots struct {
	slots []domain.AccessResult
	calls int
}

func (m *mockSlots) ResolveServices(_ context.Context, _ domain.Asset, _ string) []domain.AccessResult {
	m.calls++
	return m.slots
}

type mockRates struct {
	snapshot external.Snapshot
	history  []external.RateRecord
	err      error
}

func (m *mockRates) Current() external.Snapshot { return m.snapshot }

func (m *mockRates) History(_ context.Context, _, _ string, _ int) ([]external.RateRecord, error) {
	return m.history, m.err
}

type mockBalances struct {
	balances domain.WalletBalances
}

func (m *mockBalances) Balances(_ context.Context, _ string) (domain.WalletBalances, error) {
	return m.balances, nil
}

type mockOrders struct {
	lastIndex int
}

func (m *mockOrders) OrderPriceAndFees(_ context.Context, _ domain.Asset, index int, details domain.AccessDetails, _ string, _ *domain.ProviderFees) (domain.OrderPriceAndFees, error) {
	m.lastIndex = index
	return domain.OrderPriceAndFees{Price: details.Price, OPCFee: "0"}, nil
}

var testAsset = domain.Asset{
	ID:      "did:op:event",
	ChainID: 80001,
	Services: []domain.Service{
		{ID: "svc-1", DatatokenAddress: "0xdt1"},
		{ID: "svc-2", DatatokenAddress: "0xdt2"},
		{ID: "svc-3", DatatokenAddress: "0xdt3"},
	},
}

func testSlots() []domain.AccessResult {
	return []domain.AccessResult{
		{Details: &domain.AccessDetails{Type: domain.PricingFixed, Price: "10", ValidOrderTx: "0xA"}},
		{Details: &domain.AccessDetails{Type: domain.PricingFixed, Price: "40"}},
		{Err: domain.NewError(domain.KindTransient, errors.New("indexer timeout"))},
	}
}

type testEnv struct {
	mux      *http.ServeMux
	resolver *mockResolver
	slots    *mockSlots
	rates    *mockRates
	orders   *mockOrders
}

func newTestEnv(t *testing.T, deps func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		resolver: &mockResolver{},
		slots:    &mockSlots{slots: testSlots()},
		rates: &mockRates{snapshot: external.Snapshot{Prices: domain.Prices{
			"ocean-protocol": {"eur": 0.5},
		}}},
		orders: &mockOrders{},
	}
	d := Deps{
		Resolver: env.resolver,
		Sessions: session.NewManager(&mockAssets{asset: testAsset}, env.slots, time.Hour, 100),
		Rates:    env.rates,
		Balances: &mockBalances{balances: domain.WalletBalances{
			PaymentToken: decimal.NewFromInt(50),
			Gas:          decimal.RequireFromString("0.5"),
		}},
		Orders:     env.orders,
		Converter:  convert.NewConverter(map[string]string{"OCEAN": "ocean-protocol"}, "OCEAN"),
		Currencies: []string{"EUR"},

		DefaultChainID: 80001,
	}
	if deps != nil {
		deps(&d)
	}
	env.mux = NewMux(NewHandler(d), "secret-key")
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestGetAccessSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	env.resolver.details = domain.AccessDetails{Type: domain.PricingFixed, Price: "40", ValidOrderTx: "0xA"}

	w := env.do(t, http.MethodGet, "/api/v1/access/137/0xdt1?account=0xacc&timeout=86400")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	got := decode[domain.AccessDetails](t, w)
	if got.Price != "40" || got.ValidOrderTx != "0xA" {
		t.Errorf("details = %+v", got)
	}
	if env.resolver.lastChainID != 137 || env.resolver.lastTimeout == nil || *env.resolver.lastTimeout != 86400 {
		t.Errorf("resolver got chain %d timeout %v", env.resolver.lastChainID, env.resolver.lastTimeout)
	}
}

func TestGetAccessDefaultChain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.resolver.details = domain.AccessDetails{Type: domain.PricingDispenser, Price: "0"}

	w := env.do(t, http.MethodGet, "/api/v1/access/0xdt1?account=0xacc")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if env.resolver.lastChainID != 80001 {
		t.Errorf("resolver got chain %d, want default 80001", env.resolver.lastChainID)
	}
}

func TestGetAssetAccessDropsUnknownAsset(t *testing.T) {
	manager := session.NewManager(&mockAssets{err: errors.New("asset not found")}, &mockSlots{}, time.Hour, 100)
	env := newTestEnv(t, func(d *Deps) { d.Sessions = manager })

	for _, did := range []string{"did:op:junk1", "did:op:junk2", "did:op:junk3"} {
		if w := env.do(t, http.MethodGet, "/api/v1/assets/"+did+"/access?account=0xacc"); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", did, w.Code)
		}
	}
	if manager.Len() != 0 {
		t.Errorf("sessions kept = %d, want 0", manager.Len())
	}
}

func TestGetAccessErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"invalid chain id", "/api/v1/access/polygon/0xdt1", nil, http.StatusBadRequest},
		{"invalid timeout", "/api/v1/access/137/0xdt1?timeout=-1", nil, http.StatusBadRequest},
		{"unsupported network", "/api/v1/access/999/0xdt1", domain.Errorf(domain.KindUnsupportedNetwork, "no"), http.StatusUnprocessableEntity},
		{"incomplete data", "/api/v1/access/137/0xdt1", domain.Errorf(domain.KindIncompleteData, "no name"), http.StatusBadGateway},
		{"transient", "/api/v1/access/137/0xdt1", domain.Errorf(domain.KindTransient, "timeout"), http.StatusServiceUnavailable},
		{"unclassified", "/api/v1/access/137/0xdt1", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.resolver.err = tt.err
			if w := env.do(t, http.MethodGet, tt.target); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

type accessBody struct {
	Generation          uint64 `json:"generation"`
	RefreshToken        string `json:"refreshToken"`
	Currency            string `json:"currency"`
	TotalUnlocked       int    `json:"totalUnlocked"`
	TotalSpent          int64  `json:"totalSpent"`
	TotalSpentConverted string `json:"totalSpentConverted"`
	Slots               []struct {
		Index     int     `json:"index"`
		Error     string  `json:"error"`
		HasAccess bool    `json:"hasAccess"`
		Price     *string `json:"price"`
		Converted string  `json:"converted"`
	} `json:"slots"`
}

func TestGetAssetAccess(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/access?account=0xacc")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decode[accessBody](t, w)

	if body.Generation != 1 || body.RefreshToken == "" || body.Currency != "EUR" {
		t.Errorf("generation = %d, token = %q, currency = %q", body.Generation, body.RefreshToken, body.Currency)
	}
	if body.TotalUnlocked != 1 || body.TotalSpent != 10 || body.TotalSpentConverted != "€5.00" {
		t.Errorf("totals = %d, %d, %q", body.TotalUnlocked, body.TotalSpent, body.TotalSpentConverted)
	}
	if len(body.Slots) != 3 {
		t.Fatalf("slots = %d, want 3", len(body.Slots))
	}
	if !body.Slots[0].HasAccess || body.Slots[0].Price == nil || *body.Slots[0].Price != "10" {
		t.Errorf("slot 0 = %+v", body.Slots[0])
	}
	if body.Slots[1].Converted != "€20.00" {
		t.Errorf("slot 1 converted = %q, want €20.00", body.Slots[1].Converted)
	}
	if body.Slots[2].Price != nil || body.Slots[2].Error != "transient" {
		t.Errorf("unknown slot = %+v, want null price and transient error", body.Slots[2])
	}

	// Second read is served from the session without resolving again
	env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/access?account=0xacc")
	if env.slots.calls != 1 {
		t.Errorf("resolve calls = %d, want 1", env.slots.calls)
	}
}

func TestGetAssetAccessRequiresAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/access"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRefreshAssetRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.do(t, http.MethodPost, "/api/v1/assets/did:op:event/refresh?account=0xacc"); w.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", w.Code)
	}

	env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/access?account=0xacc")
	w := env.do(t, http.MethodPost, "/api/v1/assets/did:op:event/refresh?account=0xacc", "Authorization", "Bearer secret-key")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if body := decode[accessBody](t, w); body.Generation != 2 {
		t.Errorf("generation = %d, want 2", body.Generation)
	}
	if env.slots.calls != 2 {
		t.Errorf("resolve calls = %d, want 2", env.slots.calls)
	}
}

func TestGetAffordable(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/services/1/affordable?account=0xacc")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	got := decode[affordableResponse](t, w)
	if !got.Affordable || got.Price != "40" || got.PaymentBalance != "50" {
		t.Errorf("response = %+v", got)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/services/7/affordable?account=0xacc"); w.Code != http.StatusNotFound {
		t.Errorf("out of range status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/services/2/affordable?account=0xacc"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unknown slot status = %d, want 503", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/services/x/affordable?account=0xacc"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid index status = %d, want 400", w.Code)
	}
}

func TestGetAffordableWithoutChain(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Balances = nil })
	if w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/services/0/affordable?account=0xacc"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGetOrderPrice(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/assets/did:op:event/services/1/order-price?account=0xacc")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	got := decode[domain.OrderPriceAndFees](t, w)
	if got.Price != "40" || env.orders.lastIndex != 1 {
		t.Errorf("order = %+v, index = %d", got, env.orders.lastIndex)
	}
}

func TestGetPrices(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/prices")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[external.Snapshot](t, w)
	if rate, _ := got.Prices.Rate("ocean-protocol", "eur"); rate != 0.5 {
		t.Errorf("rate = %v, want 0.5", rate)
	}
}

func TestGetPriceHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.do(t, http.MethodGet, "/api/v1/prices/history?tokenId=ocean-protocol"); w.Code != http.StatusBadRequest {
		t.Errorf("missing currency status = %d, want 400", w.Code)
	}

	env.rates.err = external.ErrHistoryDisabled
	if w := env.do(t, http.MethodGet, "/api/v1/prices/history?tokenId=ocean-protocol&currency=eur"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d, want 503", w.Code)
	}

	env.rates.err = nil
	env.rates.history = nil
	w := env.do(t, http.MethodGet, "/api/v1/prices/history?tokenId=ocean-protocol&currency=eur&limit=5")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty history = %d %q, want 200 []", w.Code, w.Body.String())
	}
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/convert?price=40")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[convertResponse](t, w)
	if got.Converted != "€20.00" || got.Currency != "EUR" || !got.Fiat {
		t.Errorf("response = %+v", got)
	}

	got = decode[convertResponse](t, env.do(t, http.MethodGet, "/api/v1/convert?price=40&currency=usd"))
	if got.Converted != convert.Placeholder {
		t.Errorf("missing rate converted = %q, want placeholder", got.Converted)
	}
}
