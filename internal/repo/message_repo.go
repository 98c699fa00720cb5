package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/notebase-ai/notebase/internal/model"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	citations := msg.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	raw, err := json.Marshal(citations)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO messages (id, session_id, role, content, citations, grounded, interrupted, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		msg.ID, msg.SessionID, msg.Role, msg.Content, raw, msg.Grounded, msg.Interrupted, msg.Ctime)
	return err
}

func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Message, error) {
	const query = `
		SELECT id, session_id, role, content, citations, grounded, interrupted, ctime
		FROM messages WHERE session_id = $1 ORDER BY ctime ASC, id ASC
	`
	return r.query(ctx, query, sessionID)
}

// ListRecent returns the newest limit messages in chronological order, the
// window sent back to the model as conversation history.
func (r *MessageRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	const query = `
		SELECT id, session_id, role, content, citations, grounded, interrupted, ctime
		FROM (
			SELECT id, session_id, role, content, citations, grounded, interrupted, ctime
			FROM messages WHERE session_id = $1 ORDER BY ctime DESC, id DESC LIMIT $2
		) sub ORDER BY ctime ASC, id ASC
	`
	return r.query(ctx, query, sessionID, limit)
}

func (r *MessageRepo) query(ctx context.Context, query string, args ...interface{}) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		var msg model.Message
		var raw []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &raw,
			&msg.Grounded, &msg.Interrupted, &msg.Ctime); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &msg.Citations); err != nil {
				return nil, err
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (r *MessageRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM messages WHERE session_id = $1`
	_, err := r.db.ExecContext(ctx, query, sessionID)
	return err
}
