package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
)

const maxTitleChars = 255

type NotebookService struct {
	notebooks *repo.NotebookRepo
	sources   *repo.SourceRepo
}

func NewNotebookService(notebooks *repo.NotebookRepo, sources *repo.SourceRepo) *NotebookService {
	return &NotebookService{notebooks: notebooks, sources: sources}
}

func (s *NotebookService) Create(ctx context.Context, userID, title, description string) (*model.Notebook, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled notebook"
	}
	if len(title) > maxTitleChars {
		title = title[:maxTitleChars]
	}
	now := time.Now().Unix()
	nb := &model.Notebook{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.notebooks.Create(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

func (s *NotebookService) Get(ctx context.Context, userID, id string) (*model.Notebook, error) {
	return s.notebooks.GetByID(ctx, userID, id)
}

func (s *NotebookService) List(ctx context.Context, userID string, limit, offset uint) ([]model.Notebook, error) {
	if limit == 0 || limit > 100 {
		limit = 20
	}
	return s.notebooks.List(ctx, userID, limit, offset)
}

func (s *NotebookService) Update(ctx context.Context, userID, id, title, description string) (*model.Notebook, error) {
	nb, err := s.notebooks.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(title); t != "" {
		nb.Title = t
	}
	if description != "" {
		nb.Description = strings.TrimSpace(description)
	}
	nb.Mtime = time.Now().Unix()
	if err := s.notebooks.Update(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

func (s *NotebookService) Delete(ctx context.Context, userID, id string) error {
	return s.notebooks.Delete(ctx, userID, id)
}

// CheckOwnership verifies the notebook belongs to the user, the guard every
// nested route goes through.
func (s *NotebookService) CheckOwnership(ctx context.Context, userID, notebookID string) error {
	_, err := s.notebooks.GetByID(ctx, userID, notebookID)
	if appErr.IsNotFound(err) {
		return appErr.ErrNotFound
	}
	return err
}
