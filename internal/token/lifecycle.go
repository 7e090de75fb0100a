// Package token owns the credential lifecycle: exchanging authorization
// codes, deriving expiry, refreshing expired tokens and handing out valid
// access tokens to the search layer.
package token

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"workspace-search/internal/circuitbreaker"
	"workspace-search/internal/common/errors"
	"workspace-search/internal/common/logging"
	"workspace-search/internal/providers"
	"workspace-search/internal/storage"
)

// Credential lifecycle states as reported by Status.
const (
	StatusUnauthorized = "unauthorized"
	StatusValid        = "valid"
	StatusExpired      = "expired"
)

// Manager drives the token lifecycle for every registered provider.
//
// Refreshes are serialized per provider so concurrent searches that both
// hit an expired token trigger one refresh, not two.
type Manager struct {
	registry *providers.Registry
	store    storage.Store
	client   *http.Client
	baseURL  string
	logger   logging.Logger
	now      func() time.Time

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	breakers map[string]*circuitbreaker.GoBreakerAdapter
}

// NewManager creates a lifecycle manager. baseURL is the externally
// reachable address used to build OAuth redirect URIs.
func NewManager(registry *providers.Registry, store storage.Store, client *http.Client, baseURL string, logger logging.Logger) *Manager {
	return &Manager{
		registry: registry,
		store:    store,
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
		breakers: make(map[string]*circuitbreaker.GoBreakerAdapter),
	}
}

func (m *Manager) providerLock(provider string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[provider]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[provider] = lock
	}
	return lock
}

func (m *Manager) breaker(provider string) *circuitbreaker.GoBreakerAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[provider]
	if !ok {
		b = circuitbreaker.NewGoBreaker("oauth-"+provider, circuitbreaker.OAuthConfig, m.logger)
		m.breakers[provider] = b
	}
	return b
}

// RedirectURI returns the callback address registered with the provider.
func (m *Manager) RedirectURI(provider string) string {
	return fmt.Sprintf("%s/%s-authorization-success", m.baseURL, provider)
}

// AuthorizationURL builds the provider's consent page URL for the given
// signed state token.
func (m *Manager) AuthorizationURL(provider, state string) (string, error) {
	d, ok := m.registry.Get(provider)
	if !ok {
		return "", errors.NotFoundError("provider " + provider)
	}

	params := url.Values{
		"client_id":     {d.ClientID},
		"redirect_uri":  {m.RedirectURI(provider)},
		"response_type": {"code"},
		"state":         {state},
	}
	if len(d.Scopes) > 0 {
		params.Set("scope", strings.Join(d.Scopes, " "))
	}
	for key, values := range d.AuthExtras {
		for _, v := range values {
			params.Add(key, v)
		}
	}

	return d.AuthURL + "?" + params.Encode(), nil
}

// Exchange trades an authorization code for tokens and persists the new
// credential. Expiry is derived from the moment the response is received
// plus the provider's expires_in; the provider's absolute timestamps are
// never trusted.
func (m *Manager) Exchange(ctx context.Context, provider, code string) error {
	d, ok := m.registry.Get(provider)
	if !ok {
		return errors.NotFoundError("provider " + provider)
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {m.RedirectURI(provider)},
		"client_id":     {d.ClientID},
		"client_secret": {d.ClientSecret},
	}

	body, status, err := m.postTokenEndpoint(ctx, provider, d.TokenURL, form)
	if err != nil {
		return errors.AuthExchangeError("token endpoint unreachable", err)
	}
	if status != http.StatusOK {
		return errors.AuthExchangeError(fmt.Sprintf("token endpoint returned status %d", status), nil)
	}

	issuedAt := m.now()
	grant, err := m.parseGrant(d, body)
	if err != nil {
		return errors.AuthExchangeError("failed to parse token response", err)
	}

	var metadata map[string]string
	if d.PostExchange != nil {
		metadata, err = d.PostExchange(ctx, m.client, grant)
		if err != nil {
			return errors.AuthExchangeError("post-exchange lookup failed", err)
		}
	}

	cred := &storage.Credential{
		Provider:     provider,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    expiryFrom(issuedAt, grant.ExpiresIn),
		Scope:        grant.Scope,
		Metadata:     metadata,
	}
	if err := storage.PutCredential(ctx, m.store, cred); err != nil {
		return err
	}

	m.logger.Info("credential authorized",
		logging.String("provider", provider),
		logging.Bool("has_refresh_token", grant.RefreshToken != ""),
	)
	return nil
}

// Refresh renews an expired credential using its refresh token. On any
// failure the stored credential is left exactly as it was.
func (m *Manager) Refresh(ctx context.Context, provider string) error {
	lock := m.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	return m.refreshLocked(ctx, provider)
}

// refreshExpired refreshes only if the credential is still expired once
// the provider lock is held. Concurrent callers that all saw the same
// expired token queue on the lock; the first refreshes, the rest find a
// fresh credential and skip the network round trip.
func (m *Manager) refreshExpired(ctx context.Context, provider string) error {
	lock := m.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	if cred, found, err := storage.GetCredential(ctx, m.store, provider); err == nil && found && !cred.Expired(m.now()) {
		return nil
	}
	return m.refreshLocked(ctx, provider)
}

func (m *Manager) refreshLocked(ctx context.Context, provider string) error {
	d, ok := m.registry.Get(provider)
	if !ok {
		return errors.NotFoundError("provider " + provider)
	}

	cred, found, err := storage.GetCredential(ctx, m.store, provider)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFoundError("credential for " + provider)
	}
	if cred.RefreshToken == "" {
		return errors.RefreshError(errors.RefreshNoToken, nil)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {d.ClientID},
		"client_secret": {d.ClientSecret},
	}

	body, status, err := m.postTokenEndpoint(ctx, provider, d.TokenURL, form)
	if err != nil {
		return errors.RefreshError(errors.RefreshNetwork, err)
	}
	if status >= 400 && status < 500 {
		m.logger.Warn("refresh token rejected",
			logging.String("provider", provider),
			logging.Int("status", status),
		)
		return errors.RefreshError(errors.RefreshUpstreamRejected, nil)
	}
	if status != http.StatusOK {
		return errors.RefreshError(errors.RefreshNetwork,
			fmt.Errorf("token endpoint returned status %d", status))
	}

	issuedAt := m.now()
	grant, err := m.parseGrant(d, body)
	if err != nil {
		return errors.RefreshError(errors.RefreshNetwork, err)
	}

	// Providers may rotate the refresh token; keep the old one when they don't
	refreshToken := grant.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}
	scope := grant.Scope
	if scope == "" {
		scope = cred.Scope
	}

	updated := &storage.Credential{
		Provider:     provider,
		AccessToken:  grant.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiryFrom(issuedAt, grant.ExpiresIn),
		Scope:        scope,
		Metadata:     cred.Metadata,
	}
	if err := storage.PutCredential(ctx, m.store, updated); err != nil {
		return err
	}

	m.logger.Info("credential refreshed", logging.String("provider", provider))
	return nil
}

// GetValidAccessToken returns an access token guaranteed fresh at the time
// of the check, refreshing first when the stored one has expired. The
// returned metadata is the provider-specific context captured at
// authorization time.
func (m *Manager) GetValidAccessToken(ctx context.Context, provider string) (string, map[string]string, error) {
	cred, err := m.loadCredential(ctx, provider)
	if err != nil {
		return "", nil, err
	}

	if !cred.Expired(m.now()) {
		return cred.AccessToken, cred.Metadata, nil
	}

	if err := m.refreshExpired(ctx, provider); err != nil {
		return "", nil, err
	}

	cred, err = m.loadCredential(ctx, provider)
	if err != nil {
		return "", nil, err
	}
	return cred.AccessToken, cred.Metadata, nil
}

// Status reports the lifecycle state of a provider's credential.
func (m *Manager) Status(ctx context.Context, provider string) string {
	cred, err := m.loadCredential(ctx, provider)
	if err != nil {
		return StatusUnauthorized
	}
	if cred.Expired(m.now()) {
		return StatusExpired
	}
	return StatusValid
}

// RefreshIfExpiring proactively refreshes a credential that expires within
// the horizon. Credentials without a refresh path are left alone.
func (m *Manager) RefreshIfExpiring(ctx context.Context, provider string, horizon time.Duration) error {
	d, ok := m.registry.Get(provider)
	if !ok || !d.SupportsRefresh() {
		return nil
	}

	cred, err := m.loadCredential(ctx, provider)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return nil
		}
		return err
	}
	if cred.ExpiresAt.IsZero() || !cred.Expired(m.now().Add(horizon)) {
		return nil
	}

	return m.Refresh(ctx, provider)
}

// loadCredential reads and assembles a provider's credential. A credential
// that cannot be decrypted is reported as absent; the only way out of that
// state is a fresh authorization.
func (m *Manager) loadCredential(ctx context.Context, provider string) (*storage.Credential, error) {
	cred, found, err := storage.GetCredential(ctx, m.store, provider)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeDecryption) {
			m.logger.Warn("stored credential undecryptable, treating as absent",
				logging.String("provider", provider),
			)
			return nil, errors.NotFoundError("credential for " + provider)
		}
		return nil, err
	}
	if !found || cred.AccessToken == "" {
		return nil, errors.NotFoundError("credential for " + provider)
	}
	return cred, nil
}

// postTokenEndpoint posts a form to the provider's token endpoint behind
// that provider's circuit breaker.
func (m *Manager) postTokenEndpoint(ctx context.Context, provider, tokenURL string, form url.Values) ([]byte, int, error) {
	var body []byte
	var status int

	err := m.breaker(provider).Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return errors.InternalError("failed to create token request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return errors.ConnectionError("token request failed", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.ConnectionError("failed to read token response", err)
		}
		status = resp.StatusCode

		// 4xx means a rejected grant, not a broken endpoint
		if status >= 400 && status < 500 {
			return errors.AuthError(fmt.Sprintf("token endpoint returned status %d", status))
		}
		if status >= 500 {
			return errors.UpstreamError(fmt.Sprintf("token endpoint returned status %d", status), nil)
		}
		return nil
	})

	if err != nil && status == 0 {
		return nil, 0, err
	}
	return body, status, nil
}

func (m *Manager) parseGrant(d *providers.Descriptor, body []byte) (*providers.TokenGrant, error) {
	if d.ParseToken != nil {
		return d.ParseToken(body)
	}
	return providers.ParseStandardToken(body)
}

// expiryFrom derives the absolute expiry from issuance time and the
// provider's expires_in. Zero expires_in means the token never expires.
func expiryFrom(issuedAt time.Time, expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return issuedAt.Add(time.Duration(expiresIn) * time.Second)
}
