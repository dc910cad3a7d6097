package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const tokenResponse = `{"data":{"token":{
	"id":"0xdt",
	"symbol":"TCKT-1",
	"name":"Ticket One",
	"templateId":2,
	"publishMarketFeeAmount":"0",
	"orders":[{"tx":"0xorder","serviceIndex":0,"createdTimestamp":1700000000,"providerFee":"","reuses":[]}],
	"dispensers":[],
	"fixedRateExchanges":[{"id":"0xfre-0x01","exchangeId":"0x01","price":"40","active":true,
		"baseToken":{"symbol":"OCEAN","name":"Ocean Token","address":"0xocean","decimals":18},
		"datatoken":{"symbol":"TCKT-1","name":"Ticket One","address":"0xdt"}}]
}}}`

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(map[int64]string{80001: url}, maxRetries, 10*time.Millisecond)
}

func TestTokenPriceSendsLowercasedVariables(t *testing.T) {
	var got graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != subgraphPath {
			t.Errorf("path = %q, want %q", r.URL.Path, subgraphPath)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tokenResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	token, err := client.TokenPrice(context.Background(), 80001, "0xDT", "0xACCOUNT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Variables["datatokenId"] != "0xdt" || got.Variables["account"] != "0xaccount" {
		t.Errorf("variables = %v, want lowercased", got.Variables)
	}
	if token == nil {
		t.Fatal("expected token, got nil")
	}
	if token.TemplateID == nil || *token.TemplateID != 2 {
		t.Errorf("TemplateID = %v, want 2", token.TemplateID)
	}
	if len(token.Orders) != 1 || token.Orders[0].CreatedTimestamp != 1700000000 {
		t.Errorf("orders = %+v", token.Orders)
	}
	fre := token.FixedRateExchanges[0]
	if fre.Price != "40" || fre.BaseToken.Decimals == nil || *fre.BaseToken.Decimals != 18 {
		t.Errorf("fixed rate exchange = %+v", fre)
	}
	if fre.Datatoken.Decimals != nil {
		t.Errorf("datatoken decimals = %v, want nil", *fre.Datatoken.Decimals)
	}
}

func TestTokenPriceUnknownToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"token":null}}`))
	}))
	defer server.Close()

	token, err := newTestClient(server.URL, 0).TokenPrice(context.Background(), 80001, "0xdt", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != nil {
		t.Errorf("token = %+v, want nil", token)
	}
}

func TestTokenPriceGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"indexing_error"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).TokenPrice(context.Background(), 80001, "0xdt", "")
	if err == nil {
		t.Fatal("expected error for GraphQL errors payload")
	}
}

func TestTokenPriceUnknownChain(t *testing.T) {
	client := NewClient(map[int64]string{}, 0, time.Millisecond)
	_, err := client.TokenPrice(context.Background(), 137, "0xdt", "")
	if !errors.Is(err, ErrUnknownChain) {
		t.Errorf("err = %v, want ErrUnknownChain", err)
	}
}

func TestClientRetryOn429(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(tokenResponse))
	}))
	defer server.Close()

	token, err := newTestClient(server.URL, 3).TokenPrice(context.Background(), 80001, "0xdt", "0xa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == nil {
		t.Fatal("expected token after retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientMaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).TokenPrice(context.Background(), 80001, "0xdt", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := attempts.Load(); got != 3 { // initial + 2 retries
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientNon429Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).TokenPrice(context.Background(), 80001, "0xdt", "")
	if err == nil {
		t.Fatal("expected error for 502, got nil")
	}
}

func TestEndpointTrimsTrailingSlash(t *testing.T) {
	client := NewClient(map[int64]string{137: "https://indexer.example.com/"}, 0, 0)
	got, err := client.Endpoint(137)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://indexer.example.com/subgraphs/name/oceanprotocol/ocean-subgraph" {
		t.Errorf("Endpoint = %q", got)
	}
}
