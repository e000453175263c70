package alertapi

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/alertdash/internal/summary"
)

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, ok := a.summarize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSummaryView(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("alertdash.summary.view", view))

	if !slices.Contains(summary.Views(), view) {
		writeError(w, http.StatusNotFound, "unknown view "+view)
		return
	}

	res, ok := a.summarize(w, r)
	if !ok {
		return
	}
	table, _ := res.View(view)
	writeJSON(w, http.StatusOK, table)
}

// handleSummarizeBatch aggregates the posted records without storing them.
func (a *API) handleSummarizeBatch(w http.ResponseWriter, r *http.Request) {
	records, ok := a.decodeBody(w, r)
	if !ok {
		return
	}

	res, err := a.svc.SummarizeRecords(r.Context(), records)
	if err != nil {
		if errors.Is(err, summary.ErrInvalidRecord) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "failed to summarize batch", "records", len(records))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *API) summarize(w http.ResponseWriter, r *http.Request) (*summary.Result, bool) {
	res, err := a.svc.Summarize(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to summarize dataset")
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("alertdash.summary.total", res.Total))
	return res, true
}
