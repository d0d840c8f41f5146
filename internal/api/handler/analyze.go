// Package handler contains one file per HTTP endpoint group. Handlers
// depend on narrow interfaces so tests can stub them without the full
// service graph.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	mw "github.com/docsense/docsense/internal/api/middleware"
	"github.com/docsense/docsense/internal/api/response"
	"github.com/docsense/docsense/pkg/models"
	"github.com/google/uuid"
)

// AnalysisRequester is what the analyze endpoint needs from the job service.
type AnalysisRequester interface {
	GetLatestValidAnalysis(ctx context.Context, documentID int64) (*models.AnalysisJob, bool)
	CreateJob(ctx context.Context, documentID int64, createdBy uuid.UUID) (*models.AnalysisJob, error)
}

type analyzeResponse struct {
	JobID       uuid.UUID  `json:"job_id"`
	DocumentID  int64      `json:"document_id"`
	Status      string     `json:"status"`
	Cached      bool       `json:"cached"`
	Summary     string     `json:"summary,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/ai/analyze.
//
// A still-valid completed analysis is returned directly with 200; otherwise
// a new job is created and 202 tells the caller to poll.
func NewAnalyzeHandler(svc AnalysisRequester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user identity", nil)
			return
		}

		var req struct {
			DocumentID int64 `json:"document_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.DocumentID <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "document_id must be a positive integer", nil)
			return
		}

		if cached, hit := svc.GetLatestValidAnalysis(r.Context(), req.DocumentID); hit {
			resp := analyzeResponse{
				JobID:       cached.ID,
				DocumentID:  cached.DocumentID,
				Status:      cached.Status,
				Cached:      true,
				CompletedAt: cached.CompletedAt,
			}
			if cached.Result != nil {
				resp.Summary = cached.Result.Summary
				resp.Keywords = cached.Result.Keywords
			}
			response.JSON(w, resp)
			return
		}

		job, err := svc.CreateJob(r.Context(), req.DocumentID, userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create analysis job", nil)
			return
		}

		response.Accepted(w, analyzeResponse{
			JobID:      job.ID,
			DocumentID: job.DocumentID,
			Status:     job.Status,
			Cached:     false,
		})
	}
}
