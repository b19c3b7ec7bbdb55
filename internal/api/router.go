// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/api/handlers"
	"github.com/dvloznov/academy-cashbook/internal/api/middleware"
	"github.com/dvloznov/academy-cashbook/internal/jobs"
	"github.com/rs/zerolog"
)

// Deps are the services the router exposes.
type Deps struct {
	Reports  handlers.ReportSource
	Ledger   handlers.MovementLedger
	Closings jobs.Publisher
	Jobs     jobs.JobStore
	Location *time.Location
	Now      func() time.Time
}

// NewRouter builds the API routes wrapped in the standard middleware chain.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	reconciliationHandler := handlers.NewReconciliationHandler(deps.Reports, deps.Location, now, log)
	movementsHandler := handlers.NewMovementsHandler(deps.Ledger, log)
	closingsHandler := handlers.NewClosingsHandler(deps.Closings, deps.Location, now, log)
	jobsHandler := handlers.NewJobsHandler(deps.Jobs, log)

	mux := http.NewServeMux()

	// Reconciliation endpoints
	mux.HandleFunc("GET /api/reconciliation", reconciliationHandler.GetReport)

	// Cash movement endpoints
	mux.HandleFunc("GET /api/registers/{registerId}/movements", func(w http.ResponseWriter, r *http.Request) {
		movementsHandler.ListMovements(w, r, r.PathValue("registerId"))
	})
	mux.HandleFunc("POST /api/registers/{registerId}/movements", func(w http.ResponseWriter, r *http.Request) {
		movementsHandler.RecordMovement(w, r, r.PathValue("registerId"))
	})
	mux.HandleFunc("DELETE /api/movements/{id}", func(w http.ResponseWriter, r *http.Request) {
		movementsHandler.VoidMovement(w, r, r.PathValue("id"))
	})

	// Closing endpoints
	mux.HandleFunc("POST /api/closings", closingsHandler.EnqueueClose)

	// Jobs endpoints
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJob(w, r, r.PathValue("id"))
	})

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(log, mux)
}
