package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxIdleConns != 100 {
		t.Errorf("expected 100 max idle conns, got %d", cfg.MaxIdleConns)
	}
	if cfg.InsecureSkipVerify {
		t.Error("expected TLS verification enabled by default")
	}
}

func TestNewHTTPClient_Options(t *testing.T) {
	client := NewHTTPClient(
		WithTimeout(5*time.Second),
		WithMaxIdleConns(10),
		WithoutKeepAlives(),
	)

	if client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", client.Timeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("expected *http.Transport")
	}
	if transport.MaxIdleConns != 10 {
		t.Errorf("expected 10 max idle conns, got %d", transport.MaxIdleConns)
	}
	if !transport.DisableKeepAlives {
		t.Error("expected keep-alives disabled")
	}
}

func TestNewHTTPClient_CustomTransport(t *testing.T) {
	rt := http.RoundTripper(&http.Transport{})
	client := NewHTTPClient(WithTransport(rt))

	if client.Transport != rt {
		t.Error("expected custom transport to be used")
	}
}

func TestNewHTTPClientWithTimeout_Roundtrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClientWithTimeout(2 * time.Second)
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWithCheckRedirect(t *testing.T) {
	called := false
	client := NewHTTPClient(WithCheckRedirect(func(req *http.Request, via []*http.Request) error {
		called = true
		return http.ErrUseLastResponse
	}))

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer target.Close()

	resp, err := client.Get(target.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if !called {
		t.Error("expected redirect policy to be consulted")
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected redirect not followed, got %d", resp.StatusCode)
	}
}
