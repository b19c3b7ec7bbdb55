package handlers

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/api/middleware"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
	"github.com/rs/zerolog"
)

// ReportSource produces the reconciled report of a day.
type ReportSource interface {
	Report(ctx context.Context, date civil.Date) (*reconcile.Report, error)
}

// ReconciliationHandler handles reconciliation endpoints.
type ReconciliationHandler struct {
	reports ReportSource
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler. Requests
// without a date use today in loc.
func NewReconciliationHandler(reports ReportSource, loc *time.Location, now func() time.Time, log zerolog.Logger) *ReconciliationHandler {
	if now == nil {
		now = time.Now
	}
	return &ReconciliationHandler{reports: reports, loc: loc, now: now, log: log}
}

// GetReport handles GET /api/reconciliation?date=YYYY-MM-DD
func (h *ReconciliationHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Report(r.Context(), date)
	if err != nil {
		h.log.Error().Err(err).Str("date", date.String()).Msg("Failed to build reconciliation report")
		middleware.WriteDomainError(w, err, "Failed to build reconciliation report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// dateParam reads the optional date query parameter, writing a 400 when it
// is malformed.
func (h *ReconciliationHandler) dateParam(w http.ResponseWriter, r *http.Request) (civil.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return domain.Today(h.now(), h.loc), true
	}

	date, err := reconcile.ParseDate(raw)
	if err != nil {
		middleware.WriteDomainError(w, err, "Invalid date")
		return civil.Date{}, false
	}
	return date, true
}
