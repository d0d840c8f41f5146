package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	mw "github.com/docsense/docsense/internal/api/middleware"
	"github.com/docsense/docsense/internal/api/response"
	"github.com/docsense/docsense/internal/jobs"
	"github.com/docsense/docsense/internal/store"
	"github.com/docsense/docsense/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// JobQuerier is what the job endpoints need from the job service.
type JobQuerier interface {
	GetJobStatus(ctx context.Context, jobID uuid.UUID, requesterID uuid.UUID) (*models.AnalysisJob, error)
	ListUserJobs(ctx context.Context, requesterID uuid.UUID, limit int) ([]*models.AnalysisJob, error)
}

// jobSummary is the list-view shape: no result payload, no error detail.
type jobSummary struct {
	ID          uuid.UUID  `json:"id"`
	DocumentID  int64      `json:"document_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := svc.GetJobStatus(r.Context(), jobID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
			return
		case errors.Is(err, jobs.ErrForbidden):
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Job belongs to another user", nil)
			return
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		if limit > 100 {
			limit = 100
		}

		jobList, err := svc.ListUserJobs(r.Context(), userID, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		summaries := make([]jobSummary, 0, len(jobList))
		for _, job := range jobList {
			summaries = append(summaries, jobSummary{
				ID:          job.ID,
				DocumentID:  job.DocumentID,
				Status:      job.Status,
				CreatedAt:   job.CreatedAt,
				CompletedAt: job.CompletedAt,
			})
		}

		response.Collection(w, summaries, response.ListMeta{Limit: limit, Count: len(summaries)})
	}
}
