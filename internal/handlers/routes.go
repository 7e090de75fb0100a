package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lucsky/cuid"

	"workspace-search/internal/common/logging"
)

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestLogging)

	r.HandleFunc("/", h.Home).Methods(http.MethodGet)
	r.HandleFunc("/authorize-{provider}", h.Authorize).Methods(http.MethodGet)
	r.HandleFunc("/{provider}-authorization-success", h.Callback).Methods(http.MethodGet)
	r.HandleFunc("/search", h.Search).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	return r
}

// requestLogging tags each request with an id and logs its outcome.
func (h *Handler) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := cuid.Slug()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		h.logger.Debug("request handled",
			logging.String("request_id", requestID),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", recorder.status),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
