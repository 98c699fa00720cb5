package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
)

// Workers is the slice of the pool the manager drives: waking claim loops on
// submit and interrupting in-flight runs on cancel.
type Workers interface {
	Wake()
	Interrupt(jobID string)
}

// Manager owns the generation job lifecycle on the API side: idempotent
// submission, lookup, and cancellation. Execution belongs to the worker pool.
type Manager struct {
	jobs    *repo.JobRepo
	hub     *Hub
	workers Workers
}

func NewManager(jobs *repo.JobRepo, hub *Hub) *Manager {
	return &Manager{jobs: jobs, hub: hub}
}

// AttachWorkers points the manager at the colocated pool. Without one,
// submissions wait for the next poll and cancellation stays flag-driven.
func (m *Manager) AttachWorkers(w Workers) {
	m.workers = w
}

// Submit creates a pending job, or returns the live job already carrying the
// same fingerprint. The bool reports whether a new job was created.
// Terminal jobs never block resubmission: regenerating a finished artifact
// always creates a fresh job.
func (m *Manager) Submit(ctx context.Context, notebookID string, artifactType model.ArtifactType, params model.JobParams) (*model.GenerationJob, bool, error) {
	if !artifactType.Valid() {
		return nil, false, fmt.Errorf("%w: unknown artifact type %q", appErr.ErrInvalid, artifactType)
	}
	params = NormalizeParams(params)
	now := time.Now().Unix()
	job := &model.GenerationJob{
		ID:                uuid.NewString(),
		NotebookID:        notebookID,
		ArtifactType:      artifactType,
		Params:            params,
		ParamsFingerprint: Fingerprint(artifactType, params),
		Status:            model.JobStatusPending,
		Ctime:             now,
		Mtime:             now,
	}
	err := m.jobs.Create(ctx, job)
	if err == nil {
		logutil.GetLogger(ctx).Info("generation job submitted",
			zap.String("job_id", job.ID),
			zap.String("notebook_id", notebookID),
			zap.String("artifact_type", string(artifactType)))
		m.hub.Publish(Event{JobID: job.ID, NotebookID: notebookID, ArtifactType: artifactType, Status: job.Status})
		if m.workers != nil {
			m.workers.Wake()
		}
		return job, true, nil
	}
	if !errors.Is(err, appErr.ErrConflict) {
		return nil, false, err
	}
	existing, getErr := m.jobs.GetInflight(ctx, notebookID, job.ParamsFingerprint)
	if getErr != nil {
		if errors.Is(getErr, appErr.ErrNotFound) {
			// the colliding job finished between insert and lookup, retry once
			if retryErr := m.jobs.Create(ctx, job); retryErr == nil {
				if m.workers != nil {
					m.workers.Wake()
				}
				return job, true, nil
			}
		}
		return nil, false, getErr
	}
	return existing, false, nil
}

func (m *Manager) Get(ctx context.Context, notebookID, id string) (*model.GenerationJob, error) {
	return m.jobs.GetByID(ctx, notebookID, id)
}

// Lookup resolves a job without notebook scoping so handlers can check
// ownership through the owning notebook first.
func (m *Manager) Lookup(ctx context.Context, id string) (*model.GenerationJob, error) {
	return m.jobs.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, notebookID string, artifactType string, limit, offset int) ([]model.GenerationJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return m.jobs.ListByNotebook(ctx, notebookID, artifactType, limit, offset)
}

// Cancel requests cooperative cancellation. A pending job finalizes to error
// immediately; a processing job on this instance is interrupted through the
// pool, otherwise it runs until its worker checks the flag at the next
// suspension point. Cancelling a terminal job fails with ErrJobTerminal.
func (m *Manager) Cancel(ctx context.Context, notebookID, id string) (*model.GenerationJob, error) {
	job, err := m.jobs.RequestCancel(ctx, notebookID, id)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusProcessing && m.workers != nil {
		m.workers.Interrupt(id)
	}
	if job.Status == model.JobStatusPending {
		finalized, err := m.jobs.FinalizeCancelledPending(ctx, id, time.Now().Unix())
		if err != nil {
			return nil, err
		}
		if finalized {
			m.hub.Publish(Event{
				JobID: id, NotebookID: notebookID, ArtifactType: job.ArtifactType,
				Status: model.JobStatusError, Error: appErr.ErrJobCancelled.Error(),
			})
		}
	}
	return m.jobs.GetByID(ctx, notebookID, id)
}
