// Package handlers implements the HTTP surface: the home page, the OAuth
// authorization round trips, the search endpoint and the health check.
package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"workspace-search/internal/aggregator"
	"workspace-search/internal/common/logging"
	"workspace-search/internal/providers"
	"workspace-search/internal/storage"
	"workspace-search/internal/token"
)

// Handler bundles the dependencies behind every route.
type Handler struct {
	registry   *providers.Registry
	manager    *token.Manager
	signer     *token.StateSigner
	aggregator *aggregator.Aggregator
	dispatcher *aggregator.Dispatcher
	store      storage.Store
	logger     logging.Logger
}

// New creates the handler set.
func New(
	registry *providers.Registry,
	manager *token.Manager,
	signer *token.StateSigner,
	agg *aggregator.Aggregator,
	dispatcher *aggregator.Dispatcher,
	store storage.Store,
	logger logging.Logger,
) *Handler {
	return &Handler{
		registry:   registry,
		manager:    manager,
		signer:     signer,
		aggregator: agg,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>Workspace Search</title></head>
<body>
<h1>Workspace Search</h1>
<h2>Connected sources</h2>
<ul>
{{range .Providers}}
  <li>{{.Name}}: {{.Status}} &mdash; <a href="/authorize-{{.Name}}">authorize</a></li>
{{end}}
</ul>
<h2>Search</h2>
<form action="/search" method="post">
  <input type="text" name="text" placeholder="query" />
  <button type="submit">Search</button>
</form>
</body>
</html>`))

type providerView struct {
	Name   string
	Status string
}

// Home shows each provider's credential state and a search form.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	var views []providerView
	for _, name := range h.registry.Names() {
		views = append(views, providerView{
			Name:   name,
			Status: h.manager.Status(r.Context(), name),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, map[string]interface{}{"Providers": views}); err != nil {
		h.logger.Error("failed to render home page", err)
	}
}

// Authorize starts the OAuth flow: issue a signed state token and redirect
// the user to the provider's consent page.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if _, ok := h.registry.Get(provider); !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	state, err := h.signer.Issue(provider)
	if err != nil {
		h.logger.Error("failed to issue state token", err, logging.String("provider", provider))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	authURL, err := h.manager.AuthorizationURL(provider, state)
	if err != nil {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the OAuth flow. The provider redirects here with a
// code and our state token; a verified state and a successful exchange
// leave a fresh credential in the store.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("authorization denied",
			logging.String("provider", provider),
			logging.String("error", errParam),
		)
		http.Error(w, "authorization denied: "+errParam, http.StatusBadRequest)
		return
	}

	if err := h.signer.Verify(query.Get("state"), provider); err != nil {
		h.logger.Warn("state verification failed", logging.String("provider", provider))
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	if err := h.manager.Exchange(r.Context(), provider, code); err != nil {
		h.logger.Error("code exchange failed", err, logging.String("provider", provider))
		http.Error(w, "authorization failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s authorization successful. You can close this window.\n", provider)
}

// Search runs a workspace-wide search. With a response_url the work is
// queued and acknowledged immediately, slash-command style; without one
// the search runs synchronously and the text comes back in the response.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query, responseURL := searchParams(r)
	if query == "" {
		http.Error(w, "missing search query", http.StatusBadRequest)
		return
	}

	if responseURL != "" {
		jobID, ok := h.dispatcher.Enqueue(query, responseURL)
		if !ok {
			http.Error(w, "search queue is full, try again shortly", http.StatusServiceUnavailable)
			return
		}
		h.logger.Info("search queued",
			logging.String("job_id", jobID),
			logging.String("query", query),
		)
		writeJSON(w, http.StatusOK, map[string]string{
			"response_type": "ephemeral",
			"text":          "Searching your workspace...",
		})
		return
	}

	outcomes := h.aggregator.Search(r.Context(), query)
	text := aggregator.Format(outcomes, h.registry.Names())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, text)
}

// searchParams pulls the query and callback URL out of either a form post
// or the query string.
func searchParams(r *http.Request) (query, responseURL string) {
	if r.Method == http.MethodPost {
		r.ParseForm()
		query = r.PostFormValue("text")
		if query == "" {
			query = r.PostFormValue("q")
		}
		responseURL = r.PostFormValue("response_url")
	}
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	return strings.TrimSpace(query), responseURL
}

// Health reports whether the credential store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
