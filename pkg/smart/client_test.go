package smart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"labbot/internal/testing/fixtures/fhir"
)

func newMetadataServer(t *testing.T, body func() []byte, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fhir/v0/r4/metadata" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write(body())
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with defaults", func(t *testing.T) {
		c := NewClient()
		if c.httpClient == nil {
			t.Error("expected httpClient to be set")
		}
		if c.cache == nil {
			t.Error("expected cache to be initialized")
		}
		if c.cacheTTL != DefaultEndpointCacheTTL {
			t.Errorf("expected cacheTTL to be %v, got %v", DefaultEndpointCacheTTL, c.cacheTTL)
		}
	})

	t.Run("applies options", func(t *testing.T) {
		customHTTP := &http.Client{Timeout: 10 * time.Second}

		c := NewClient(WithHTTPClient(customHTTP), WithCacheTTL(time.Minute))

		if c.httpClient != customHTTP {
			t.Error("expected custom httpClient to be set")
		}
		if c.cacheTTL != time.Minute {
			t.Errorf("expected cacheTTL to be 1m, got %v", c.cacheTTL)
		}
	})
}

func TestDiscoverEndpoints(t *testing.T) {
	t.Run("extracts authorize and token urls", func(t *testing.T) {
		server := newMetadataServer(t, func() []byte {
			return fhir.CapabilityStatement("https://idp.example.com/authorize", "https://idp.example.com/token")
		}, nil)

		c := NewClient(WithHTTPClient(server.Client()))
		endpoints, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if endpoints.AuthorizeURL != "https://idp.example.com/authorize" {
			t.Errorf("unexpected authorize url %q", endpoints.AuthorizeURL)
		}
		if endpoints.TokenURL != "https://idp.example.com/token" {
			t.Errorf("unexpected token url %q", endpoints.TokenURL)
		}
	})

	t.Run("tolerates trailing slash on base url", func(t *testing.T) {
		server := newMetadataServer(t, func() []byte {
			return fhir.CapabilityStatement("a", "t")
		}, nil)

		c := NewClient(WithHTTPClient(server.Client()))
		if _, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("returns error on non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(WithHTTPClient(server.Client()))
		_, err := c.DiscoverEndpoints(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected error for 503 response")
		}
	})

	t.Run("returns error for invalid json", func(t *testing.T) {
		server := newMetadataServer(t, func() []byte { return []byte("<html>") }, nil)

		c := NewClient(WithHTTPClient(server.Client()))
		_, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4")
		if err == nil {
			t.Fatal("expected error for invalid json")
		}
		if errors.Is(err, &MalformedCapabilityDocumentError{}) {
			t.Error("decode failures should not be reported as malformed documents")
		}
	})

	t.Run("malformed statement carries base url and step", func(t *testing.T) {
		server := newMetadataServer(t, func() []byte {
			return fhir.Mutate("a", "t", func(doc map[string]any) {
				ext := fhir.ServerRest(doc)["security"].(map[string]any)["extension"].([]any)
				ext[0].(map[string]any)["url"] = "http://example.com/other"
			})
		}, nil)

		c := NewClient(WithHTTPClient(server.Client()))
		_, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4")

		var malformedErr *MalformedCapabilityDocumentError
		if !errors.As(err, &malformedErr) {
			t.Fatalf("expected MalformedCapabilityDocumentError, got %v", err)
		}
		if malformedErr.Step != StepOAuthURIs {
			t.Errorf("expected step %q, got %q", StepOAuthURIs, malformedErr.Step)
		}
		if malformedErr.BaseURL != server.URL+"/fhir/v0/r4" {
			t.Errorf("expected base url to be recorded, got %q", malformedErr.BaseURL)
		}
	})
}

func TestDiscoverEndpoints_Caching(t *testing.T) {
	t.Run("caches successful lookups", func(t *testing.T) {
		var hits atomic.Int32
		server := newMetadataServer(t, func() []byte {
			return fhir.CapabilityStatement("a", "t")
		}, &hits)

		c := NewClient(WithHTTPClient(server.Client()))
		for i := 0; i < 3; i++ {
			if _, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if got := hits.Load(); got != 1 {
			t.Errorf("expected 1 metadata fetch, got %d", got)
		}
	})

	t.Run("does not cache failures", func(t *testing.T) {
		var hits atomic.Int32
		var healthy atomic.Bool
		server := newMetadataServer(t, func() []byte {
			if !healthy.Load() {
				return []byte(`{"resourceType":"CapabilityStatement"}`)
			}
			return fhir.CapabilityStatement("a", "t")
		}, &hits)

		c := NewClient(WithHTTPClient(server.Client()))
		if _, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4"); err == nil {
			t.Fatal("expected first lookup to fail")
		}

		healthy.Store(true)
		if _, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4"); err != nil {
			t.Fatalf("expected second lookup to succeed, got %v", err)
		}
		if got := hits.Load(); got != 2 {
			t.Errorf("expected 2 metadata fetches, got %d", got)
		}
	})

	t.Run("zero ttl disables caching", func(t *testing.T) {
		var hits atomic.Int32
		server := newMetadataServer(t, func() []byte {
			return fhir.CapabilityStatement("a", "t")
		}, &hits)

		c := NewClient(WithHTTPClient(server.Client()), WithCacheTTL(0))
		for i := 0; i < 2; i++ {
			if _, err := c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if got := hits.Load(); got != 2 {
			t.Errorf("expected 2 metadata fetches, got %d", got)
		}
	})

	t.Run("clear cache forces a new fetch", func(t *testing.T) {
		var hits atomic.Int32
		server := newMetadataServer(t, func() []byte {
			return fhir.CapabilityStatement("a", "t")
		}, &hits)

		c := NewClient(WithHTTPClient(server.Client()))
		_, _ = c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4")
		c.ClearCache()
		_, _ = c.DiscoverEndpoints(context.Background(), server.URL+"/fhir/v0/r4")

		if got := hits.Load(); got != 2 {
			t.Errorf("expected 2 metadata fetches, got %d", got)
		}
	})
}

func TestDiscoverEndpoints_ConcurrentLookupsShareFetch(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(fhir.CapabilityStatement("a", "t"))
	}))
	defer server.Close()

	c := NewClient(WithHTTPClient(server.Client()))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.DiscoverEndpoints(context.Background(), server.URL)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected concurrent lookups to share 1 fetch, got %d", got)
	}
}
