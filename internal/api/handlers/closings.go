package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/academy-cashbook/internal/api/middleware"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/jobs"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
	"github.com/rs/zerolog"
)

// ClosingsHandler enqueues day-close jobs.
type ClosingsHandler struct {
	publisher jobs.Publisher
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// NewClosingsHandler creates a new closings handler.
func NewClosingsHandler(publisher jobs.Publisher, loc *time.Location, now func() time.Time, log zerolog.Logger) *ClosingsHandler {
	if now == nil {
		now = time.Now
	}
	return &ClosingsHandler{publisher: publisher, loc: loc, now: now, log: log}
}

// EnqueueClose handles POST /api/closings. The body is optional; without
// a date, today in the business time zone is closed.
func (h *ClosingsHandler) EnqueueClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string `json:"date"`
		RequestedBy string `json:"requested_by"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date := domain.Today(h.now(), h.loc)
	if req.Date != "" {
		d, err := reconcile.ParseDate(req.Date)
		if err != nil {
			middleware.WriteDomainError(w, err, "Invalid date")
			return
		}
		date = d
	}

	job := &jobs.CloseDayJob{Date: date, RequestedBy: req.RequestedBy}
	if err := h.publisher.PublishCloseDay(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("date", date.String()).Msg("Failed to enqueue day-close job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue day-close job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("date", date.String()).Msg("Day-close job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"date":   date.String(),
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteDomainError(w, err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if raw := query.Get("date"); raw != "" {
		date, err := reconcile.ParseDate(raw)
		if err != nil {
			middleware.WriteDomainError(w, err, "Invalid date")
			return
		}
		filter.Date = &date
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
