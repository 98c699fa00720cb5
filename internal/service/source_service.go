package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/indexer"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
)

type SourceService struct {
	sources *repo.SourceRepo
	indexer *indexer.Indexer
}

func NewSourceService(sources *repo.SourceRepo, ix *indexer.Indexer) *SourceService {
	return &SourceService{sources: sources, indexer: ix}
}

type AddSourceRequest struct {
	Title   string
	Kind    model.SourceKind
	RawText string
	URL     string
}

// Add registers a source and kicks ingestion in the background; callers see
// it in pending status until the indexer publishes a version.
func (s *SourceService) Add(ctx context.Context, notebookID string, req AddSourceRequest) (*model.Source, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown source kind %q", appErr.ErrInvalid, req.Kind)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: source title is required", appErr.ErrInvalid)
	}
	if strings.TrimSpace(req.RawText) == "" && req.Kind != model.SourceKindImage {
		return nil, fmt.Errorf("%w: source text is required", appErr.ErrInvalid)
	}
	now := time.Now().Unix()
	src := &model.Source{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Title:      title,
		Kind:       req.Kind,
		RawText:    req.RawText,
		URL:        strings.TrimSpace(req.URL),
		Status:     model.SourceStatusPending,
		IsActive:   true,
		Version:    0,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, err
	}
	s.kickIngestion(src.ID)
	return src, nil
}

func (s *SourceService) Get(ctx context.Context, notebookID, id string) (*model.Source, error) {
	return s.sources.GetByID(ctx, notebookID, id)
}

// Find looks a source up by id alone. Handlers use it to resolve the owning
// notebook before checking ownership.
func (s *SourceService) Find(ctx context.Context, id string) (*model.Source, error) {
	return s.sources.Get(ctx, id)
}

func (s *SourceService) List(ctx context.Context, notebookID string) ([]model.Source, error) {
	return s.sources.ListByNotebook(ctx, notebookID)
}

// Update changes source metadata. Toggling is_active changes retrieval scope
// immediately; no re-ingestion happens.
func (s *SourceService) Update(ctx context.Context, notebookID, id string, title *string, isActive *bool) (*model.Source, error) {
	src, err := s.sources.GetByID(ctx, notebookID, id)
	if err != nil {
		return nil, err
	}
	if title != nil && strings.TrimSpace(*title) != "" {
		src.Title = strings.TrimSpace(*title)
	}
	if isActive != nil {
		src.IsActive = *isActive
	}
	src.Mtime = time.Now().Unix()
	if err := s.sources.Update(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// Reingest replaces the source text and rebuilds its chunk set under a new
// version. Readers keep the previous version until the new one is published.
func (s *SourceService) Reingest(ctx context.Context, notebookID, id, rawText string) (*model.Source, error) {
	if _, err := s.sources.GetByID(ctx, notebookID, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rawText) != "" {
		// stage the new text before the background pipeline reads it
		if err := s.sources.UpdateRawText(ctx, notebookID, id, rawText, time.Now().Unix()); err != nil {
			return nil, err
		}
	}
	s.kickIngestion(id)
	return s.sources.GetByID(ctx, notebookID, id)
}

func (s *SourceService) Delete(ctx context.Context, notebookID, id string) error {
	return s.sources.Delete(ctx, notebookID, id)
}

func (s *SourceService) kickIngestion(sourceID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if err := s.indexer.Process(ctx, sourceID); err != nil {
			logutil.GetLogger(ctx).Error("background ingestion failed",
				zap.String("source_id", sourceID), zap.Error(err))
		}
	}()
}
