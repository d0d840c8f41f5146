package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Analysis is the output of a summarization run: a short summary plus an
// ordered keyword list.
type Analysis struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// AnalysisJob tracks one asynchronous document analysis. The API returns a
// job id on POST /api/v1/ai/analyze; the client polls GET /api/v1/jobs/{id}
// until status is completed or failed.
//
// DocumentTimestamp is the content-version fingerprint captured from Mayan
// at creation time. It is nil when the document had no processed version
// yet; such a job can never be served from cache later.
type AnalysisJob struct {
	ID                uuid.UUID  `db:"id"                 json:"id"`
	DocumentID        int64      `db:"document_id"        json:"document_id"`
	DocumentTimestamp *string    `db:"document_timestamp" json:"-"`
	Status            string     `db:"status"             json:"status"`
	Result            *Analysis  `db:"-"                  json:"result,omitempty"`
	ErrorMessage      *string    `db:"error_message"      json:"error,omitempty"`
	CreatedBy         uuid.UUID  `db:"created_by"         json:"-"`
	CreatedAt         time.Time  `db:"created_at"         json:"created_at"`
	CompletedAt       *time.Time `db:"completed_at"       json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *AnalysisJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
