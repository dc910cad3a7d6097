// Package aquarius resolves asset metadata documents (DDOs) from the metadata cache.
package aquarius

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

// ErrAssetNotFound is returned when the metadata cache has no document for a DID.
var ErrAssetNotFound = errors.New("asset not found")

// Client fetches DDOs from a metadata cache and keeps them for a short TTL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	cache      *ddoCache
}

// NewClient creates a metadata cache client. A ttl of zero disables caching.
func NewClient(baseURL string, ttl time.Duration, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		cache:      newDDOCache(ttl),
	}
}

// Resolve returns the asset identified by did.
func (c *Client) Resolve(ctx context.Context, did string) (domain.Asset, error) {
	if did == "" {
		return domain.Asset{}, fmt.Errorf("%w: empty did", ErrAssetNotFound)
	}
	if asset, ok := c.cache.get(did); ok {
		return asset, nil
	}

	body, err := c.get(ctx, c.baseURL+"/api/aquarius/assets/ddo/"+url.PathEscape(did))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("resolving %s: %w", did, err)
	}

	var doc ddo
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.Asset{}, fmt.Errorf("parsing DDO for %s: %w", did, err)
	}
	asset := doc.toAsset()
	if asset.ID == "" {
		asset.ID = did
	}

	c.cache.set(did, asset)
	return asset, nil
}

// Invalidate drops the cached document for did so the next Resolve refetches it.
func (c *Client) Invalidate(did string) {
	c.cache.delete(did)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusNotFound:
			return nil, ErrAssetNotFound
		case http.StatusTooManyRequests:
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
