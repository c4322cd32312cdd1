// Package upstream is the client for the search/collections API this server
// proxies. Discovery lists the collections an API key may search; search
// executes a query against one collection. Both calls are bounded by
// timeouts so a hung upstream never holds a request open indefinitely.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds upstream API configuration.
type Config struct {
	BaseURL           string        `env:"SEARCH_API_BASE_URL" envDefault:"https://api.searchmcp.io"`
	DefaultCollection string        `env:"DEFAULT_COLLECTION" envDefault:"default"`
	DiscoveryTimeout  time.Duration `env:"DISCOVERY_TIMEOUT" envDefault:"10s"`
	RequestTimeout    time.Duration `env:"UPSTREAM_REQUEST_TIMEOUT" envDefault:"30s"`
}

// Client calls the upstream API on behalf of one API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an upstream client bound to an API key.
func NewClient(cfg Config, apiKey string) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// BaseURL returns the upstream API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListCollections returns the collections accessible to the client's API key.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	body, err := c.do(ctx, c.baseURL+"/collections")
	if err != nil {
		return nil, err
	}

	var collections []Collection
	if err := json.Unmarshal(body, &collections); err != nil {
		return nil, errors.Join(ErrDecodeResponse, err)
	}
	return collections, nil
}

// Search executes a query against one collection and returns the raw
// upstream response. The response shape is owned by the upstream API and
// passed through untouched.
func (c *Client) Search(ctx context.Context, collectionID, query string, limit int, responseType string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if responseType != "" {
		params.Set("response_type", responseType)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/search?%s",
		c.baseURL, url.PathEscape(collectionID), params.Encode())

	body, err := c.do(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrUnexpectedStatus,
			fmt.Errorf("upstream returned status %d", resp.StatusCode))
	}
	return body, nil
}
