package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/dbutil"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

var notebookFields = []string{"id", "user_id", "title", "description", "ctime", "mtime"}

type NotebookRepo struct {
	db *sql.DB
}

func NewNotebookRepo(db *sql.DB) *NotebookRepo {
	return &NotebookRepo{db: db}
}

func (r *NotebookRepo) Create(ctx context.Context, nb *model.Notebook) error {
	data := map[string]interface{}{
		"id":          nb.ID,
		"user_id":     nb.UserID,
		"title":       nb.Title,
		"description": nb.Description,
		"ctime":       nb.Ctime,
		"mtime":       nb.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("notebooks", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *NotebookRepo) GetByID(ctx context.Context, userID, id string) (*model.Notebook, error) {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("notebooks", where, notebookFields)
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
	var nb model.Notebook
	if err := rows.Scan(&nb.ID, &nb.UserID, &nb.Title, &nb.Description, &nb.Ctime, &nb.Mtime); err != nil {
		return nil, err
	}
	return &nb, nil
}

// Get loads a notebook without user scoping, for background workers.
func (r *NotebookRepo) Get(ctx context.Context, id string) (*model.Notebook, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("notebooks", where, notebookFields)
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
	var nb model.Notebook
	if err := rows.Scan(&nb.ID, &nb.UserID, &nb.Title, &nb.Description, &nb.Ctime, &nb.Mtime); err != nil {
		return nil, err
	}
	return &nb, nil
}

func (r *NotebookRepo) List(ctx context.Context, userID string, limit, offset uint) ([]model.Notebook, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "mtime desc",
		"_limit":   []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("notebooks", where, notebookFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notebook
	for rows.Next() {
		var nb model.Notebook
		if err := rows.Scan(&nb.ID, &nb.UserID, &nb.Title, &nb.Description, &nb.Ctime, &nb.Mtime); err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

func (r *NotebookRepo) Update(ctx context.Context, nb *model.Notebook) error {
	where := map[string]interface{}{
		"id":      nb.ID,
		"user_id": nb.UserID,
	}
	update := map[string]interface{}{
		"title":       nb.Title,
		"description": nb.Description,
		"mtime":       nb.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("notebooks", where, update)
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

func (r *NotebookRepo) Delete(ctx context.Context, userID, id string) error {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("notebooks", where)
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

func (r *NotebookRepo) Touch(ctx context.Context, id string) error {
	const query = `UPDATE notebooks SET mtime = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().Unix(), id)
	return err
}
