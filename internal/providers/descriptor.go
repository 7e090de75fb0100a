// Package providers defines the per-provider adapters: where to send a user
// for authorization, how to exchange and refresh tokens, and how to run a
// search against the provider's API.
//
// Each adapter classifies its own failures. An upstream that explicitly
// rejects the credential yields an authentication error; everything else
// (network faults, malformed bodies, non-auth HTTP errors) yields an
// upstream error. Callers decide what to do with each class.
package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"

	"workspace-search/internal/common/errors"
	"workspace-search/internal/config"
)

// TokenGrant is a provider's token response in normalized form. ExpiresIn
// is seconds from issuance; zero means the token does not expire.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Scope        string
}

// SearchFunc runs one search call against a provider. The metadata map
// carries provider-specific values captured at authorization time, such as
// the Confluence cloud id.
type SearchFunc func(ctx context.Context, client *http.Client, accessToken string, metadata map[string]string, query string) ([]SearchResult, error)

// Descriptor declares everything the rest of the service needs to know
// about one provider.
type Descriptor struct {
	Name         string
	ClientID     string
	ClientSecret string

	AuthURL  string
	TokenURL string
	Scopes   []string

	// AuthExtras are provider-specific query parameters appended to the
	// authorization redirect (offline access, audience, user scopes).
	AuthExtras url.Values

	// ParseToken decodes the provider's token endpoint response. Nil means
	// the standard OAuth2 JSON shape.
	ParseToken func(body []byte) (*TokenGrant, error)

	// PostExchange runs after a successful code exchange and returns
	// metadata to persist alongside the credential. Nil when the provider
	// needs none.
	PostExchange func(ctx context.Context, client *http.Client, grant *TokenGrant) (map[string]string, error)

	Search SearchFunc
}

// SupportsRefresh reports whether the provider issues refresh tokens at
// all. Providers that do not (Slack) can only be re-authorized by a user.
func (d *Descriptor) SupportsRefresh() bool {
	return d.Name != NameSlack
}

// ParseStandardToken decodes the common OAuth2 token response shape.
func ParseStandardToken(body []byte) (*TokenGrant, error) {
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.UpstreamError("failed to parse token response", err)
	}
	if resp.AccessToken == "" {
		return nil, errors.UpstreamError("no access token in response", nil)
	}
	return &TokenGrant{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		Scope:        resp.Scope,
	}, nil
}

// Provider names as they appear in routes, storage keys and logs.
const (
	NameGoogle    = "google"
	NameAtlassian = "atlassian"
	NameSlack     = "slack"
)

// Registry holds the descriptors for all configured providers.
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry builds descriptors for every provider with a client
// registration in the configuration. Unconfigured providers are simply
// absent.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{descriptors: make(map[string]*Descriptor)}

	if cfg.Google.Configured() {
		r.Register(NewGoogle(cfg.Google))
	}
	if cfg.Atlassian.Configured() {
		r.Register(NewAtlassian(cfg.Atlassian))
	}
	if cfg.Slack.Configured() {
		r.Register(NewSlack(cfg.Slack))
	}

	return r
}

// Register adds a descriptor to the registry.
func (r *Registry) Register(d *Descriptor) {
	r.descriptors[d.Name] = d
}

// Get returns the descriptor for a provider name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns the registered provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
