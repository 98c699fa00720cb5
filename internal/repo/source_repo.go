package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/dbutil"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

var sourceFields = []string{
	"id", "notebook_id", "title", "kind", "raw_text", "url",
	"status", "status_msg", "is_active", "version", "ctime", "mtime",
}

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func scanSource(rows *sql.Rows) (*model.Source, error) {
	var src model.Source
	var rawText, url sql.NullString
	if err := rows.Scan(&src.ID, &src.NotebookID, &src.Title, &src.Kind, &rawText, &url,
		&src.Status, &src.StatusMsg, &src.IsActive, &src.Version, &src.Ctime, &src.Mtime); err != nil {
		return nil, err
	}
	src.RawText = rawText.String
	src.URL = url.String
	return &src, nil
}

func (r *SourceRepo) Create(ctx context.Context, src *model.Source) error {
	data := map[string]interface{}{
		"id":          src.ID,
		"notebook_id": src.NotebookID,
		"title":       src.Title,
		"kind":        string(src.Kind),
		"raw_text":    src.RawText,
		"url":         src.URL,
		"status":      src.Status,
		"status_msg":  src.StatusMsg,
		"is_active":   src.IsActive,
		"version":     src.Version,
		"ctime":       src.Ctime,
		"mtime":       src.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("sources", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SourceRepo) GetByID(ctx context.Context, notebookID, id string) (*model.Source, error) {
	where := map[string]interface{}{
		"id":          id,
		"notebook_id": notebookID,
	}
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanSource(rows)
}

// Get loads a source without notebook scoping, for background workers that
// hold only the source id.
func (r *SourceRepo) Get(ctx context.Context, id string) (*model.Source, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanSource(rows)
}

func (r *SourceRepo) ListByNotebook(ctx context.Context, notebookID string) ([]model.Source, error) {
	where := map[string]interface{}{
		"notebook_id": notebookID,
		"_orderby":    "ctime asc",
	}
	return r.list(ctx, where)
}

// ListActive returns the ready, active sources used as retrieval scope.
func (r *SourceRepo) ListActive(ctx context.Context, notebookID string) ([]model.Source, error) {
	where := map[string]interface{}{
		"notebook_id": notebookID,
		"is_active":   true,
		"status":      model.SourceStatusReady,
		"_orderby":    "ctime asc",
	}
	return r.list(ctx, where)
}

func (r *SourceRepo) ListByStatus(ctx context.Context, status string, limit uint) ([]model.Source, error) {
	where := map[string]interface{}{
		"status":   status,
		"_orderby": "mtime asc",
		"_limit":   []uint{0, limit},
	}
	return r.list(ctx, where)
}

func (r *SourceRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Source, error) {
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func (r *SourceRepo) Update(ctx context.Context, src *model.Source) error {
	where := map[string]interface{}{
		"id":          src.ID,
		"notebook_id": src.NotebookID,
	}
	update := map[string]interface{}{
		"title":     src.Title,
		"is_active": src.IsActive,
		"mtime":     src.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("sources", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *SourceRepo) Delete(ctx context.Context, notebookID, id string) error {
	where := map[string]interface{}{
		"id":          id,
		"notebook_id": notebookID,
	}
	sqlStr, args, err := builder.BuildDelete("sources", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// UpdateRawText stages replacement text for a re-ingestion and resets the
// source to pending. The version bump happens when the pipeline picks it up.
func (r *SourceRepo) UpdateRawText(ctx context.Context, notebookID, id, rawText string, mtime int64) error {
	const query = `
		UPDATE sources SET raw_text = $1, status = 'pending', status_msg = '', mtime = $2
		WHERE id = $3 AND notebook_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, rawText, mtime, id, notebookID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// BeginIngest bumps the source version and moves it to processing, returning
// the new version. Chunks are written under that version so readers keep
// seeing the previous consistent set until the swap.
func (r *SourceRepo) BeginIngest(ctx context.Context, id, rawText string, mtime int64) (int64, error) {
	const query = `
		UPDATE sources
		SET version = version + 1, raw_text = $1,
		    status = 'processing', status_msg = '', mtime = $2
		WHERE id = $3
		RETURNING version
	`
	var version int64
	if err := r.db.QueryRowContext(ctx, query, rawText, mtime, id).Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErr.ErrNotFound
		}
		return 0, err
	}
	return version, nil
}

// MarkReady publishes a version: only flips when the source is still on that
// version, so a racing re-ingest cannot be overwritten by a stale finisher.
func (r *SourceRepo) MarkReady(ctx context.Context, id string, version, mtime int64) error {
	const query = `
		UPDATE sources SET status = 'ready', status_msg = '', mtime = $1
		WHERE id = $2 AND version = $3 AND status = 'processing'
	`
	result, err := r.db.ExecContext(ctx, query, mtime, id, version)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrConflict
	}
	return nil
}

func (r *SourceRepo) MarkError(ctx context.Context, id string, version int64, msg string, mtime int64) error {
	const query = `
		UPDATE sources SET status = 'error', status_msg = $1, mtime = $2
		WHERE id = $3 AND version = $4 AND status = 'processing'
	`
	_, err := r.db.ExecContext(ctx, query, msg, mtime, id, version)
	return err
}

// ResetStale requeues sources stuck in processing past the cutoff.
func (r *SourceRepo) ResetStale(ctx context.Context, cutoff, now int64) (int64, error) {
	const query = `
		UPDATE sources SET status = 'pending', mtime = $1
		WHERE status = 'processing' AND mtime < $2
	`
	result, err := r.db.ExecContext(ctx, query, now, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
