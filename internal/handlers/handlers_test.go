package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"workspace-search/internal/aggregator"
	"workspace-search/internal/common/logging"
	"workspace-search/internal/config"
	"workspace-search/internal/crypto"
	"workspace-search/internal/providers"
	"workspace-search/internal/storage"
	"workspace-search/internal/token"
)

const testStateSecret = "state-signing-secret-at-least-32-chars"

type fixture struct {
	handler *Handler
	server  *httptest.Server
	store   storage.Store
	signer  *token.StateSigner
	manager *token.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokenEndpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`))
	}))
	t.Cleanup(tokenEndpoint.Close)

	descriptor := &providers.Descriptor{
		Name:     "workprov",
		ClientID: "client-id", ClientSecret: "client-secret",
		AuthURL:  "https://auth.example.com/authorize",
		TokenURL: tokenEndpoint.URL,
		Scopes:   []string{"search"},
		Search: func(ctx context.Context, client *http.Client, accessToken string, metadata map[string]string, query string) ([]providers.SearchResult, error) {
			return []providers.SearchResult{{Source: "workprov", Title: "hit for " + query}}, nil
		},
	}

	registry := providers.NewRegistry(&config.Config{})
	registry.Register(descriptor)

	cipher, err := crypto.NewCipher("test-encryption-key")
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	store := storage.NewEncryptedStore(storage.NewMemoryStore(), cipher)

	logger := logging.NewDefaultLogger()
	manager := token.NewManager(registry, store, tokenEndpoint.Client(), "http://localhost:9000", logger)
	signer := token.NewStateSigner(testStateSecret)
	agg := aggregator.New(registry, manager, http.DefaultClient, time.Second, logger)
	dispatcher := aggregator.NewDispatcher(agg, http.DefaultClient, 2, logger)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	handler := New(registry, manager, signer, agg, dispatcher, store, logger)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &fixture{handler: handler, server: server, store: store, signer: signer, manager: manager}
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestHome(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "workprov") {
		t.Error("expected provider listed on home page")
	}
	if !strings.Contains(string(body), token.StatusUnauthorized) {
		t.Error("expected unauthorized status shown")
	}
}

func TestAuthorize_RedirectsWithSignedState(t *testing.T) {
	f := newFixture(t)

	resp, err := noRedirectClient().Get(f.server.URL + "/authorize-workprov")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("bad location header: %v", err)
	}
	if location.Host != "auth.example.com" {
		t.Errorf("redirected to %q", location.Host)
	}

	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("missing state parameter")
	}
	if err := f.signer.Verify(state, "workprov"); err != nil {
		t.Errorf("state does not verify: %v", err)
	}
}

func TestAuthorize_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	resp, err := noRedirectClient().Get(f.server.URL + "/authorize-nope")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCallback_CompletesAuthorization(t *testing.T) {
	f := newFixture(t)

	state, _ := f.signer.Issue("workprov")
	resp, err := http.Get(f.server.URL + "/workprov-authorization-success?code=the-code&state=" + url.QueryEscape(state))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	cred, found, err := storage.GetCredential(context.Background(), f.store, "workprov")
	if err != nil || !found {
		t.Fatalf("expected stored credential, got (%v, %v)", found, err)
	}
	if cred.AccessToken != "at-1" {
		t.Errorf("token = %q", cred.AccessToken)
	}
}

func TestCallback_RejectsBadState(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		query string
	}{
		{"missing state", "?code=c"},
		{"garbage state", "?code=c&state=not-a-jwt"},
		{"state for other provider", "?code=c&state=" + mustIssue(t, f.signer, "other")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.server.URL + "/workprov-authorization-success" + tt.query)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}

			_, found, _ := storage.GetCredential(context.Background(), f.store, "workprov")
			if found {
				t.Error("no credential may be stored after a rejected callback")
			}
		})
	}
}

func mustIssue(t *testing.T, signer *token.StateSigner, provider string) string {
	t.Helper()
	state, err := signer.Issue(provider)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	return url.QueryEscape(state)
}

func TestCallback_ProviderDenied(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/workprov-authorization-success?error=access_denied")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func seedCredential(t *testing.T, f *fixture) {
	t.Helper()
	err := storage.PutCredential(context.Background(), f.store, &storage.Credential{
		Provider:    "workprov",
		AccessToken: "seeded-token",
	})
	if err != nil {
		t.Fatalf("failed to seed credential: %v", err)
	}
}

func TestSearch_Synchronous(t *testing.T) {
	f := newFixture(t)
	seedCredential(t, f)

	resp, err := http.Get(f.server.URL + "/search?q=roadmap")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "title: hit for roadmap") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/search")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearch_BackgroundAckAndDelivery(t *testing.T) {
	f := newFixture(t)
	seedCredential(t, f)

	delivered := make(chan string, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		delivered <- string(body)
	}))
	defer callback.Close()

	form := url.Values{
		"text":         {"roadmap"},
		"response_url": {callback.URL},
	}
	resp, err := http.PostForm(f.server.URL+"/search", form)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var ack map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("ack not json: %v", err)
	}
	if ack["response_type"] != "ephemeral" {
		t.Errorf("ack response_type = %q", ack["response_type"])
	}

	select {
	case payload := <-delivered:
		if !strings.Contains(payload, "hit for roadmap") {
			t.Errorf("unexpected delivery: %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for background delivery")
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var payload map[string]string
	json.NewDecoder(resp.Body).Decode(&payload)
	if payload["status"] != "ok" {
		t.Errorf("status field = %q", payload["status"])
	}
}
