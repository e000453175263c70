package alertapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/alertdash/internal/alert"
	"github.com/linnemanlabs/alertdash/internal/dashboard"
	"github.com/linnemanlabs/alertdash/internal/summary"
)

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	records, ok := a.decodeBody(w, r)
	if !ok {
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("alertdash.ingest.records", len(records)))

	res, err := a.svc.Ingest(r.Context(), records)
	switch {
	case err == nil:
	case errors.Is(err, summary.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, dashboard.ErrReadOnly):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		a.logger.Error(r.Context(), err, "failed to ingest alerts", "records", len(records))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span.SetAttributes(attribute.Int("alertdash.ingest.accepted", len(res.IDs)))
	writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("alertdash.alert.id", id))

	rec, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get alert", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// decodeBody reads a record batch from the request body. On failure it
// writes the response and returns false.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request) ([]alert.Record, bool) {
	records, err := alert.DecodeRecords(r.Body)
	if err == nil {
		return records, true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
	return nil, false
}
