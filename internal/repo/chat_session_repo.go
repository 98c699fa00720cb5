package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/dbutil"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

var sessionFields = []string{"id", "notebook_id", "user_id", "title", "ctime", "mtime"}

type ChatSessionRepo struct {
	db *sql.DB
}

func NewChatSessionRepo(db *sql.DB) *ChatSessionRepo {
	return &ChatSessionRepo{db: db}
}

func (r *ChatSessionRepo) Create(ctx context.Context, s *model.ChatSession) error {
	data := map[string]interface{}{
		"id":          s.ID,
		"notebook_id": s.NotebookID,
		"user_id":     s.UserID,
		"title":       s.Title,
		"ctime":       s.Ctime,
		"mtime":       s.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_sessions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChatSessionRepo) GetByID(ctx context.Context, userID, id string) (*model.ChatSession, error) {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("chat_sessions", where, sessionFields)
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
	var s model.ChatSession
	if err := rows.Scan(&s.ID, &s.NotebookID, &s.UserID, &s.Title, &s.Ctime, &s.Mtime); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ChatSessionRepo) ListByNotebook(ctx context.Context, userID, notebookID string) ([]model.ChatSession, error) {
	where := map[string]interface{}{
		"notebook_id": notebookID,
		"user_id":     userID,
		"_orderby":    "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("chat_sessions", where, sessionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChatSession
	for rows.Next() {
		var s model.ChatSession
		if err := rows.Scan(&s.ID, &s.NotebookID, &s.UserID, &s.Title, &s.Ctime, &s.Mtime); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) SetTitle(ctx context.Context, id, title string) error {
	const query = `UPDATE chat_sessions SET title = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, title, id)
	return err
}

func (r *ChatSessionRepo) Touch(ctx context.Context, id string, mtime int64) error {
	const query = `UPDATE chat_sessions SET mtime = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, mtime, id)
	return err
}

func (r *ChatSessionRepo) Delete(ctx context.Context, userID, id string) error {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("chat_sessions", where)
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
