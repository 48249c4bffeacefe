// Package websearch augments chat context with external web search
// results.
//
// DESIGN: A raw user query is first refined into a search query by the
// LLM; refinement failure degrades to the raw query. The refined query
// goes to an external search API and the mapped results are cached in
// bounded TTL/LRU stores keyed by the normalized query. Plain search,
// deep search, and location lookups each own an independent cache - they
// never share eviction state.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// defaultRequestTimeout bounds one search API call.
	defaultRequestTimeout = 8 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large API responses (5MB).
	maxResponseSize = 5 * 1024 * 1024

	// subscriptionKeyHeader authenticates against the search API.
	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
)

// Result is one web search hit mapped from the vendor's native schema.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// ClientConfig configures the search API client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration

	// HTTPClient overrides the default client (testing, pooling).
	HTTPClient *http.Client
}

// Client calls the external web search API.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient creates a search API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{} // timeout via context, not client
	}
	return &Client{cfg: cfg, client: client}
}

// Search issues one GET against the search API and maps the native
// response schema into Results. Timeout and non-2xx responses fail with
// SearchProviderError.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s&count=%s",
		c.cfg.Endpoint, url.QueryEscape(query), strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &SearchProviderError{Err: err}
	}
	req.Header.Set(subscriptionKeyHeader, c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SearchProviderError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &SearchProviderError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SearchProviderError{Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	// Native schema: webPages.value[] with name/snippet/url.
	var results []Result
	gjson.GetBytes(body, "webPages.value").ForEach(func(_, hit gjson.Result) bool {
		results = append(results, Result{
			Title:   hit.Get("name").String(),
			Snippet: hit.Get("snippet").String(),
			URL:     hit.Get("url").String(),
		})
		return len(results) < count
	})
	return results, nil
}
