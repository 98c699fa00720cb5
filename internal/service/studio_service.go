package service

import (
	"context"
	"fmt"

	"github.com/notebase-ai/notebase/internal/artifact"
	"github.com/notebase-ai/notebase/internal/filestore"
	"github.com/notebase-ai/notebase/internal/jobs"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

// StudioService fronts the generation job manager and renders finished
// artifacts into exportable files.
type StudioService struct {
	manager *jobs.Manager
	store   filestore.Store
}

func NewStudioService(manager *jobs.Manager, store filestore.Store) *StudioService {
	return &StudioService{manager: manager, store: store}
}

func (s *StudioService) Submit(ctx context.Context, notebookID string, artifactType model.ArtifactType, params model.JobParams) (*model.GenerationJob, bool, error) {
	return s.manager.Submit(ctx, notebookID, artifactType, params)
}

func (s *StudioService) Get(ctx context.Context, notebookID, jobID string) (*model.GenerationJob, error) {
	return s.manager.Get(ctx, notebookID, jobID)
}

// Lookup finds a job by id alone; callers verify notebook ownership before
// returning it.
func (s *StudioService) Lookup(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	return s.manager.Lookup(ctx, jobID)
}

func (s *StudioService) List(ctx context.Context, notebookID, artifactType string, limit, offset int) ([]model.GenerationJob, error) {
	return s.manager.List(ctx, notebookID, artifactType, limit, offset)
}

func (s *StudioService) Cancel(ctx context.Context, notebookID, jobID string) (*model.GenerationJob, error) {
	return s.manager.Cancel(ctx, notebookID, jobID)
}

// Export renders a ready artifact as markdown, stores the file, and returns
// its URL. Workers already store slide decks and infographics on completion;
// exporting re-renders so the endpoint also covers mindmaps and overwrites
// idempotently.
func (s *StudioService) Export(ctx context.Context, notebookID, jobID, baseURL string) (string, error) {
	job, err := s.manager.Get(ctx, notebookID, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != model.JobStatusReady {
		return "", fmt.Errorf("%w: job is %s, only ready jobs export", appErr.ErrInvalid, job.Status)
	}
	body, err := artifact.RenderDocument(job.ArtifactType, job.Result)
	if err != nil {
		return "", err
	}
	key := jobs.DocumentKey(notebookID, jobID)
	if err := s.store.Save(ctx, key, filestore.BytesReader(body), int64(len(body))); err != nil {
		return "", err
	}
	return s.store.URL(key, baseURL), nil
}
