package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/notebase-ai/notebase/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch writes one version's chunks. Rows carry the source version so a
// re-ingestion never touches the set a reader may be scoring against.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO source_chunks (id, source_id, source_version, ordinal, content, token_count, embedding) VALUES `)
	args := make([]interface{}, 0, len(chunks)*7)
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, c.ID, c.SourceID, c.SourceVersion, c.Ordinal, c.Text, c.TokenCount,
			pgvector.NewVector(c.Embedding))
	}
	sb.WriteString(` ON CONFLICT (source_id, source_version, ordinal) DO NOTHING`)
	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *ChunkRepo) ListByVersion(ctx context.Context, sourceID string, version int64) ([]model.Chunk, error) {
	const query = `
		SELECT id, source_id, source_version, ordinal, content, token_count
		FROM source_chunks
		WHERE source_id = $1 AND source_version = $2
		ORDER BY ordinal
	`
	rows, err := r.db.QueryContext(ctx, query, sourceID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceVersion, &c.Ordinal, &c.Text, &c.TokenCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*model.Chunk, error) {
	const query = `
		SELECT id, source_id, source_version, ordinal, content, token_count
		FROM source_chunks WHERE id = $1
	`
	var c model.Chunk
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.SourceID, &c.SourceVersion, &c.Ordinal, &c.Text, &c.TokenCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteOldVersions prunes chunk sets other than the source's current one.
func (r *ChunkRepo) DeleteOldVersions(ctx context.Context, sourceID string, keepVersion int64) (int64, error) {
	const query = `DELETE FROM source_chunks WHERE source_id = $1 AND source_version <> $2`
	result, err := r.db.ExecContext(ctx, query, sourceID, keepVersion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Search returns nearest-neighbour candidates by cosine similarity across the
// notebook's ready, active sources, restricted to each source's current
// version. sourceIDs narrows the scope when non-empty.
func (r *ChunkRepo) Search(ctx context.Context, notebookID string, sourceIDs []string, query []float32, limit int) ([]model.RetrievalResult, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT c.id, c.source_id, s.title, c.ordinal, c.content,
		       1 - (c.embedding <=> $1) AS similarity
		FROM source_chunks c
		JOIN sources s ON s.id = c.source_id AND s.version = c.source_version
		WHERE s.notebook_id = $2
		  AND s.status = 'ready' AND s.is_active
		  AND c.embedding IS NOT NULL
	`)
	args := []interface{}{pgvector.NewVector(query), notebookID}
	if len(sourceIDs) > 0 {
		placeholders := make([]string, 0, len(sourceIDs))
		for _, id := range sourceIDs {
			args = append(args, id)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		fmt.Fprintf(&sb, " AND c.source_id IN (%s)", strings.Join(placeholders, ", "))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY c.embedding <=> $1 LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RetrievalResult
	for rows.Next() {
		var res model.RetrievalResult
		if err := rows.Scan(&res.ChunkID, &res.SourceID, &res.SourceTitle, &res.Ordinal, &res.Text, &res.Similarity); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
