// Package provider talks to the service provider that gates access to datatoken services.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mtlprog/eventpass/internal/domain"
)

const initializePath = "/api/services/initialize"

// ErrNoProviderFee is returned when the provider response carries no fee quote.
var ErrNoProviderFee = errors.New("provider returned no fee")

// Client requests provider fee quotes.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a provider client.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

type initializeResponse struct {
	Datatoken   string               `json:"datatoken"`
	Nonce       json.Number          `json:"nonce"`
	ProviderFee *domain.ProviderFees `json:"providerFee"`
}

// Initialize asks the provider at endpoint for a signed fee to order serviceID of did for consumer.
func (c *Client) Initialize(ctx context.Context, did, serviceID, consumer, endpoint string) (domain.ProviderFees, error) {
	if endpoint == "" {
		return domain.ProviderFees{}, fmt.Errorf("service %s has no provider endpoint", serviceID)
	}

	q := url.Values{}
	q.Set("documentId", did)
	q.Set("serviceId", serviceID)
	q.Set("consumerAddress", consumer)
	q.Set("fileIndex", "0")
	u := strings.TrimRight(endpoint, "/") + initializePath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.ProviderFees{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProviderFees{}, fmt.Errorf("initializing %s: %w", serviceID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ProviderFees{}, fmt.Errorf("reading provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ProviderFees{}, fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, string(body))
	}

	var out initializeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.ProviderFees{}, fmt.Errorf("parsing provider response: %w", err)
	}
	if out.ProviderFee == nil {
		return domain.ProviderFees{}, ErrNoProviderFee
	}
	return *out.ProviderFee, nil
}
