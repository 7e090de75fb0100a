// Package aggregator fans a query out to every authorized provider,
// collects whatever comes back and renders it for the user. One provider's
// failure, hang or expired token never affects another's results.
package aggregator

import (
	"context"
	"net/http"
	"sync"
	"time"

	"workspace-search/internal/circuitbreaker"
	"workspace-search/internal/common/errors"
	"workspace-search/internal/common/logging"
	"workspace-search/internal/providers"
)

// TokenSource is the slice of the token lifecycle the aggregator needs.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, provider string) (string, map[string]string, error)
	Refresh(ctx context.Context, provider string) error
}

// Outcome is one provider's contribution to a search.
type Outcome struct {
	Provider string
	Results  []providers.SearchResult
	Err      error
	// Skipped means the provider was never searched because no valid
	// credential exists for it.
	Skipped bool
}

// Aggregator runs concurrent searches across providers.
type Aggregator struct {
	registry *providers.Registry
	tokens   TokenSource
	client   *http.Client
	timeout  time.Duration
	logger   logging.Logger

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.GoBreakerAdapter
}

// New creates an aggregator. timeout bounds each individual upstream call,
// not the whole search.
func New(registry *providers.Registry, tokens TokenSource, client *http.Client, timeout time.Duration, logger logging.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		tokens:   tokens,
		client:   client,
		timeout:  timeout,
		logger:   logger,
		breakers: make(map[string]*circuitbreaker.GoBreakerAdapter),
	}
}

func (a *Aggregator) breaker(provider string) *circuitbreaker.GoBreakerAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.breakers[provider]
	if !ok {
		b = circuitbreaker.NewGoBreaker("search-"+provider, circuitbreaker.SearchConfig, a.logger)
		a.breakers[provider] = b
	}
	return b
}

// Search fans the query out to all registered providers and blocks until
// every one has produced an outcome. Providers without a credential are
// skipped, not failed.
func (a *Aggregator) Search(ctx context.Context, query string) map[string]Outcome {
	names := a.registry.Names()
	outcomes := make([]Outcome, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			outcomes[i] = a.searchProvider(ctx, name, query)
		}(i, name)
	}
	wg.Wait()

	byProvider := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			a.logger.Warn("provider search failed",
				logging.String("provider", o.Provider),
				logging.String("error", o.Err.Error()),
			)
		}
		byProvider[o.Provider] = o
	}
	return byProvider
}

// searchProvider runs one provider's search with the single-retry policy:
// if the upstream explicitly rejects the token, refresh once and try one
// more time. Any other failure, and any failure of the retry itself, is
// final for this search.
func (a *Aggregator) searchProvider(ctx context.Context, name, query string) Outcome {
	d, ok := a.registry.Get(name)
	if !ok {
		return Outcome{Provider: name, Skipped: true}
	}

	accessToken, metadata, err := a.tokens.GetValidAccessToken(ctx, name)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return Outcome{Provider: name, Skipped: true}
		}
		a.logger.Warn("provider excluded from search",
			logging.String("provider", name),
			logging.String("error", err.Error()),
		)
		return Outcome{Provider: name, Err: err}
	}

	results, err := a.callSearch(ctx, d, accessToken, metadata, query)
	if err == nil {
		return Outcome{Provider: name, Results: results}
	}
	if !errors.IsType(err, errors.ErrTypeAuth) {
		return Outcome{Provider: name, Err: err}
	}

	// The token looked valid locally but the upstream disagreed; refresh
	// and retry exactly once.
	a.logger.Info("token rejected mid-search, refreshing",
		logging.String("provider", name),
	)
	if refreshErr := a.tokens.Refresh(ctx, name); refreshErr != nil {
		return Outcome{Provider: name, Err: refreshErr}
	}
	accessToken, metadata, err = a.tokens.GetValidAccessToken(ctx, name)
	if err != nil {
		return Outcome{Provider: name, Err: err}
	}

	results, err = a.callSearch(ctx, d, accessToken, metadata, query)
	if err != nil {
		// The retry budget is spent. A rejection of a token we just
		// refreshed is a provider fault, not a credential problem.
		if errors.IsType(err, errors.ErrTypeAuth) {
			err = errors.UpstreamError("provider rejected a freshly refreshed token", err)
		}
		return Outcome{Provider: name, Err: err}
	}
	return Outcome{Provider: name, Results: results}
}

func (a *Aggregator) callSearch(ctx context.Context, d *providers.Descriptor, accessToken string, metadata map[string]string, query string) ([]providers.SearchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var results []providers.SearchResult
	err := a.breaker(d.Name).Execute(callCtx, func() error {
		var searchErr error
		results, searchErr = d.Search(callCtx, a.client, accessToken, metadata, query)
		return searchErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
