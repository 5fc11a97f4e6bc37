package smart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"labbot/pkg/logging"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultEndpointCacheTTL is how long discovered endpoints are reused for a base URL.
	// Capability statements are static for the duration of a test run.
	DefaultEndpointCacheTTL = 30 * time.Minute

	// MetadataPath is the capability statement path relative to the FHIR base URL.
	MetadataPath = "metadata"
)

// Client discovers SMART on FHIR OAuth endpoints from capability statements.
// Results are cached per base URL and concurrent lookups for the same base
// URL share a single fetch.
type Client struct {
	httpClient *http.Client
	cacheTTL   time.Duration

	cache *ttlcache.Cache[string, Endpoints]

	// singleflight group to deduplicate concurrent fetches
	group singleflight.Group
}

// ClientOption configures the discovery client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCacheTTL sets how long discovered endpoints are cached.
// A zero or negative TTL disables caching; lookups still share in-flight fetches.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// NewClient creates a new discovery client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		cacheTTL:   DefaultEndpointCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.cache = ttlcache.New[string, Endpoints](
		ttlcache.WithTTL[string, Endpoints](c.cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, Endpoints](),
	)

	return c
}

// DiscoverEndpoints returns the authorize and token endpoints advertised by
// the capability statement at {baseURL}/metadata.
func (c *Client) DiscoverEndpoints(ctx context.Context, baseURL string) (Endpoints, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	if endpoints, ok := c.cached(baseURL); ok {
		return endpoints, nil
	}

	result, err, shared := c.group.Do(baseURL, func() (interface{}, error) {
		// Double-check cache after acquiring singleflight lock
		if endpoints, ok := c.cached(baseURL); ok {
			return endpoints, nil
		}
		return c.doDiscover(ctx, baseURL)
	})
	if err != nil {
		return Endpoints{}, err
	}

	if shared {
		logging.Debug("Discovery", "Shared in-flight discovery for %s", baseURL)
	}
	return result.(Endpoints), nil
}

// doDiscover performs the actual HTTP fetch and parse of the capability statement.
func (c *Client) doDiscover(ctx context.Context, baseURL string) (Endpoints, error) {
	logging.Info("Discovery", "Discovering authorization endpoints from %s", baseURL)

	metadataURL := baseURL + "/" + MetadataPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Endpoints{}, fmt.Errorf("metadata request to %s failed: %w", metadataURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Endpoints{}, fmt.Errorf("metadata request to %s failed with status %d", metadataURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to read metadata response: %w", err)
	}

	endpoints, err := ParseCapabilityStatement(body)
	if err != nil {
		var malformedErr *MalformedCapabilityDocumentError
		if errors.As(err, &malformedErr) {
			malformedErr.BaseURL = baseURL
		}
		return Endpoints{}, err
	}

	c.store(baseURL, endpoints)
	return endpoints, nil
}

func (c *Client) cached(baseURL string) (Endpoints, bool) {
	if c.cacheTTL <= 0 {
		return Endpoints{}, false
	}
	item := c.cache.Get(baseURL)
	if item == nil {
		return Endpoints{}, false
	}
	return item.Value(), true
}

// store caches discovered endpoints. Failures are never cached.
func (c *Client) store(baseURL string, endpoints Endpoints) {
	if c.cacheTTL <= 0 {
		return
	}
	c.cache.Set(baseURL, endpoints, ttlcache.DefaultTTL)

	logging.Debug("Discovery", "Cached endpoints for %s: authorize=%s token=%s",
		baseURL, endpoints.AuthorizeURL, endpoints.TokenURL)
}

// ClearCache drops all cached endpoints.
func (c *Client) ClearCache() {
	c.cache.DeleteAll()
}
