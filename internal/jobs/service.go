// Package jobs orchestrates asynchronous document analysis: job creation,
// the worker pool that drives jobs through their lifecycle, cache-validity
// lookups, and job queries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docsense/docsense/internal/cache"
	"github.com/docsense/docsense/internal/config"
	"github.com/docsense/docsense/internal/mayan"
	"github.com/docsense/docsense/internal/store"
	"github.com/docsense/docsense/pkg/models"
	"github.com/google/uuid"
)

// ErrForbidden is returned when a requester asks about a job they do not own.
var ErrForbidden = errors.New("job does not belong to requester")

// statusTTL bounds how long the Redis status mirror outlives a job update.
// Postgres stays authoritative; the mirror is a read-side shortcut.
const statusTTL = 30 * time.Minute

// terminalWriteTimeout bounds the terminal status write. It uses a fresh
// context so an expired job deadline cannot leave the row stuck in
// processing.
const terminalWriteTimeout = 10 * time.Second

// Service orchestrates analysis jobs over a bounded worker pool.
type Service struct {
	store            store.Store
	cache            cache.Cache
	provider         mayan.Client
	engine           models.AIEngine
	inferenceTimeout time.Duration
	deadline         time.Duration
	workers          int

	queue chan uuid.UUID
	wg    sync.WaitGroup
}

// NewService creates a new job Service. Call Start to launch the workers.
func NewService(st store.Store, ca cache.Cache, provider mayan.Client, engine models.AIEngine, cfg config.JobsConfig, inferenceTimeout time.Duration) *Service {
	return &Service{
		store:            st,
		cache:            ca,
		provider:         provider,
		engine:           engine,
		inferenceTimeout: inferenceTimeout,
		deadline:         cfg.Deadline,
		workers:          cfg.MaxConcurrent,
		queue:            make(chan uuid.UUID, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// the queue is closed via Stop.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	slog.Info("job workers started", "workers", s.workers, "queue_size", cap(s.queue))
}

// Stop closes the queue and waits for in-flight jobs to finish. The HTTP
// server must be shut down first so nothing enqueues after the close.
func (s *Service) Stop() {
	close(s.queue)
	s.wg.Wait()
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-s.queue:
			if !ok {
				return
			}
			s.processJob(jobID)
		}
	}
}

// CreateJob persists a pending job for the document and enqueues it for
// processing. It returns immediately; the caller polls for completion.
//
// The document's content-version timestamp is captured at creation time so
// the finished result can later be matched against the live document. If
// the provider cannot be reached the job is still created, with no
// timestamp: it will run, but its result will never satisfy a cache check.
func (s *Service) CreateJob(ctx context.Context, documentID int64, createdBy uuid.UUID) (*models.AnalysisJob, error) {
	var docTimestamp *string
	ts, err := s.provider.GetContentVersionTimestamp(ctx, documentID)
	if err != nil {
		slog.Warn("could not capture document timestamp at job creation",
			"document_id", documentID, "error", err)
	} else if ts != "" {
		docTimestamp = &ts
	}

	job := &models.AnalysisJob{
		ID:                uuid.New(),
		DocumentID:        documentID,
		DocumentTimestamp: docTimestamp,
		Status:            models.JobStatusPending,
		CreatedBy:         createdBy,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.store.CreateAnalysisJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, statusTTL)

	select {
	case s.queue <- job.ID:
	default:
		// Queue full. The job stays pending; a future retention sweep or
		// manual requeue deals with it rather than blocking the request.
		slog.Error("job queue full, job left pending", "job_id", job.ID, "document_id", documentID)
	}

	return job, nil
}

// GetLatestValidAnalysis returns the most recent completed analysis for the
// document if it is still valid: the document's current content-version
// timestamp must equal the one captured when the job was created. Any
// provider failure or mismatch reads as a miss, forcing a fresh analysis.
func (s *Service) GetLatestValidAnalysis(ctx context.Context, documentID int64) (*models.AnalysisJob, bool) {
	currentTS, err := s.provider.GetContentVersionTimestamp(ctx, documentID)
	if err != nil {
		slog.Warn("cache check: provider unavailable", "document_id", documentID, "error", err)
		return nil, false
	}
	if currentTS == "" {
		return nil, false
	}

	job, err := s.store.LatestCompletedJob(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		slog.Error("cache check: store lookup failed", "document_id", documentID, "error", err)
		return nil, false
	}

	if job.DocumentTimestamp == nil || *job.DocumentTimestamp != currentTS {
		return nil, false
	}
	return job, true
}

// GetJobStatus returns a job visible to the requester. Jobs created by
// other users read as ErrForbidden, not ErrNotFound, so the caller can
// distinguish the two.
func (s *Service) GetJobStatus(ctx context.Context, jobID uuid.UUID, requesterID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.store.GetAnalysisJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != requesterID {
		return nil, ErrForbidden
	}
	return job, nil
}

// ListUserJobs returns the requester's jobs, most recent first.
func (s *Service) ListUserJobs(ctx context.Context, requesterID uuid.UUID, limit int) ([]*models.AnalysisJob, error) {
	return s.store.ListJobsByCreator(ctx, requesterID, limit)
}

// CleanupOldJobs deletes terminal jobs created before cutoff.
func (s *Service) CleanupOldJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.store.DeleteJobsBefore(ctx, cutoff)
}

// processJob drives one job through its lifecycle. The whole run is bounded
// by the configured job deadline; the engine call additionally by the
// inference timeout. It recovers from panics and always lands the job in a
// terminal state once processing has begun.
func (s *Service) processJob(jobID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deadline)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in processJob", "error", r, "job_id", jobID)
			s.failJob(jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := s.store.GetAnalysisJob(ctx, jobID)
	if err != nil {
		slog.Error("loading job for processing", "job_id", jobID, "error", err)
		return
	}
	if job.Status != models.JobStatusPending {
		slog.Warn("skipping job not in pending state", "job_id", jobID, "status", job.Status)
		return
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing); err != nil {
		slog.Error("marking job processing", "job_id", jobID, "error", err)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, statusTTL)

	text, err := s.provider.GetExtractedText(ctx, job.DocumentID)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("fetching document content: %v", err))
		return
	}

	inferCtx, inferCancel := context.WithTimeout(ctx, s.inferenceTimeout)
	result, err := s.engine.Summarize(inferCtx, text)
	inferCancel()
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("analyzing document: %v", err))
		return
	}

	writeCtx, writeCancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer writeCancel()

	if err := s.store.UpdateJobStatus(writeCtx, jobID, models.JobStatusCompleted, store.WithResult(result)); err != nil {
		slog.Error("marking job completed", "job_id", jobID, "error", err)
		return
	}
	_ = s.cache.SetJobStatus(writeCtx, jobID, models.JobStatusCompleted, statusTTL)

	slog.Info("job completed", "job_id", jobID, "document_id", job.DocumentID)
}

// failJob lands the job in failed with the given message.
func (s *Service) failJob(jobID uuid.UUID, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg)); err != nil {
		slog.Error("marking job failed", "job_id", jobID, "error", err)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, statusTTL)

	slog.Warn("job failed", "job_id", jobID, "error", msg)
}
