// Package alertapi serves the alert dashboard HTTP API.
package alertapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/alertdash/internal/alert"
	"github.com/linnemanlabs/alertdash/internal/dashboard"
	"github.com/linnemanlabs/alertdash/internal/summary"
)

// DashboardService defines the business operations alertapi needs.
type DashboardService interface {
	Ingest(ctx context.Context, records []alert.Record) (*dashboard.IngestResult, error)
	Get(ctx context.Context, id string) (*alert.Record, bool, error)
	Summarize(ctx context.Context) (*summary.Result, error)
	SummarizeRecords(ctx context.Context, records []alert.Record) (*summary.Result, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	svc       DashboardService
	writeAuth func(http.Handler) http.Handler
}

// Option configures an API.
type Option func(*API)

// WithWriteAuth guards the endpoints that modify the dataset with mw.
func WithWriteAuth(mw func(http.Handler) http.Handler) Option {
	return func(a *API) { a.writeAuth = mw }
}

// New creates a new API handler.
func New(logger log.Logger, svc DashboardService, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("dashboard service is required"))
	}
	a := &API{
		logger: logger,
		svc:    svc,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if a.writeAuth != nil {
				r.Use(a.writeAuth)
			}
			r.Post("/alerts", a.handleIngest)
		})
		r.Get("/alerts/{id}", a.handleGetAlert)

		r.Get("/summary", a.handleSummary)
		r.Post("/summary", a.handleSummarizeBatch)
		r.Get("/summary/{view}", a.handleSummaryView)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v before the status line goes out; encode failures are
// served as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: "internal error"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
