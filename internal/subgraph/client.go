package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const subgraphPath = "/subgraphs/name/oceanprotocol/ocean-subgraph"

// ErrUnknownChain is returned when no indexer URL is configured for a chain.
var ErrUnknownChain = errors.New("no subgraph configured for chain")

// Client is a GraphQL client for the per-chain indexer deployments, with retry on 429.
type Client struct {
	urls       map[int64]string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new subgraph client. urls maps chain id to the deployment base URL.
func NewClient(urls map[int64]string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		urls:       urls,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Endpoint returns the GraphQL endpoint for chainID.
func (c *Client) Endpoint(chainID int64) (string, error) {
	base, ok := c.urls[chainID]
	if !ok || base == "" {
		return "", fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return strings.TrimRight(base, "/") + subgraphPath, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query runs a GraphQL query against chainID's indexer and unmarshals data into dest.
func (c *Client) query(ctx context.Context, chainID int64, query string, vars map[string]any, dest any) error {
	url, err := c.Endpoint(chainID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}

	body, err := c.post(ctx, url, payload)
	if err != nil {
		return err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", url, err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("subgraph error: %s", resp.Errors[0].Message)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("subgraph returned no data")
	}
	if err := json.Unmarshal(resp.Data, dest); err != nil {
		return fmt.Errorf("parsing data from %s: %w", url, err)
	}
	return nil
}

// post performs a POST request with retry on 429.
func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}

	return nil, lastErr
}
