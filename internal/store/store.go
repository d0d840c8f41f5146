package store

import (
	"context"
	"errors"
	"time"

	"github.com/docsense/docsense/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	CreateAnalysisJob(ctx context.Context, job *models.AnalysisJob) error
	GetAnalysisJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	LatestCompletedJob(ctx context.Context, documentID int64) (*models.AnalysisJob, error)
	ListJobsByCreator(ctx context.Context, createdBy uuid.UUID, limit int) ([]*models.AnalysisJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type jobUpdateParams struct {
	Result       *models.Analysis
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

// WithResult attaches the analysis output to a completed transition.
func WithResult(result models.Analysis) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Result = &result
	}
}

// WithErrorMessage attaches a failure description to a failed transition.
func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}
