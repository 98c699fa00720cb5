package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/dbutil"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

const jobColumns = `id, notebook_id, artifact_type, params, params_fingerprint,
	status, result, error, cancel_requested, ctime, mtime`

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

func scanJob(row interface{ Scan(...interface{}) error }) (*model.GenerationJob, error) {
	var job model.GenerationJob
	var params []byte
	var result []byte
	if err := row.Scan(&job.ID, &job.NotebookID, &job.ArtifactType, &params, &job.ParamsFingerprint,
		&job.Status, &result, &job.Error, &job.CancelRequested, &job.Ctime, &job.Mtime); err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, err
		}
	}
	job.Result = result
	return &job, nil
}

// Create inserts a new job. The partial unique index on (notebook_id,
// params_fingerprint) over non-terminal rows enforces submission idempotency;
// a collision surfaces as ErrConflict and the caller returns the live job.
func (r *JobRepo) Create(ctx context.Context, job *model.GenerationJob) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO generation_jobs (id, notebook_id, artifact_type, params, params_fingerprint,
			status, error, cancel_requested, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, '', FALSE, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.NotebookID, string(job.ArtifactType), params, job.ParamsFingerprint,
		job.Status, job.Ctime, job.Mtime)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// Get looks a job up without notebook scoping. Callers resolve ownership
// through the job's notebook before acting on it.
func (r *JobRepo) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) GetByID(ctx context.Context, notebookID, id string) (*model.GenerationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1 AND notebook_id = $2`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id, notebookID))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetInflight finds the live (non-terminal) job carrying a fingerprint.
func (r *JobRepo) GetInflight(ctx context.Context, notebookID, fingerprint string) (*model.GenerationJob, error) {
	const query = `
		SELECT ` + jobColumns + ` FROM generation_jobs
		WHERE notebook_id = $1 AND params_fingerprint = $2 AND status IN ('pending', 'processing')
	`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, notebookID, fingerprint))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) ListByNotebook(ctx context.Context, notebookID string, artifactType string, limit, offset int) ([]model.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE notebook_id = $1`
	args := []interface{}{notebookID}
	if artifactType != "" {
		query += ` AND artifact_type = $2`
		args = append(args, artifactType)
	}
	args = append(args, limit, offset)
	query += ` ORDER BY ctime DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// ClaimNext atomically moves the oldest pending job to processing and returns
// it. SKIP LOCKED lets concurrent workers claim distinct jobs without
// serializing on each other. Returns nil when the queue is empty.
func (r *JobRepo) ClaimNext(ctx context.Context, now int64) (*model.GenerationJob, error) {
	const query = `
		UPDATE generation_jobs SET status = 'processing', mtime = $1
		WHERE id = (
			SELECT id FROM generation_jobs
			WHERE status = 'pending'
			ORDER BY ctime
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns
	job, err := scanJob(r.db.QueryRowContext(ctx, query, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MarkReady finishes a job with its artifact payload. The status guard keeps
// terminal states immutable: a late or duplicate finisher becomes a no-op.
func (r *JobRepo) MarkReady(ctx context.Context, id string, result json.RawMessage, now int64) error {
	const query = `
		UPDATE generation_jobs SET status = 'ready', result = $1, error = '', mtime = $2
		WHERE id = $3 AND status = 'processing'
	`
	return r.finish(ctx, query, result, now, id)
}

func (r *JobRepo) MarkError(ctx context.Context, id, msg string, now int64) error {
	const query = `
		UPDATE generation_jobs SET status = 'error', error = $1, mtime = $2
		WHERE id = $3 AND status IN ('pending', 'processing')
	`
	return r.finish(ctx, query, msg, now, id)
}

func (r *JobRepo) finish(ctx context.Context, query string, payload interface{}, now int64, id string) error {
	result, err := r.db.ExecContext(ctx, query, payload, now, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrJobTerminal
	}
	return nil
}

// RequestCancel flags a non-terminal job. Pending jobs are finalized straight
// to error; processing jobs are cancelled cooperatively by their worker.
func (r *JobRepo) RequestCancel(ctx context.Context, notebookID, id string) (*model.GenerationJob, error) {
	const query = `
		UPDATE generation_jobs SET cancel_requested = TRUE
		WHERE id = $1 AND notebook_id = $2 AND status IN ('pending', 'processing')
		RETURNING ` + jobColumns
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id, notebookID))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrJobTerminal
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FinalizeCancelledPending moves a cancel-flagged pending job straight to
// its terminal error state. Returns false when a worker won the race and the
// job is already processing, in which case the worker observes the flag.
func (r *JobRepo) FinalizeCancelledPending(ctx context.Context, id string, now int64) (bool, error) {
	const query = `
		UPDATE generation_jobs SET status = 'error', error = 'cancelled', mtime = $1
		WHERE id = $2 AND status = 'pending' AND cancel_requested
	`
	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *JobRepo) CancelRequested(ctx context.Context, id string) (bool, error) {
	const query = `SELECT cancel_requested FROM generation_jobs WHERE id = $1`
	var flagged bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&flagged); err != nil {
		if err == sql.ErrNoRows {
			return false, appErr.ErrNotFound
		}
		return false, err
	}
	return flagged, nil
}

// ReapStale finalizes jobs whose worker died mid-processing. Generation is
// not resumable, so a silent claim past the deadline goes to error rather
// than back to the queue.
func (r *JobRepo) ReapStale(ctx context.Context, cutoff, now int64) (int64, error) {
	const query = `
		UPDATE generation_jobs SET status = 'error', error = 'worker lost', mtime = $1
		WHERE status = 'processing' AND mtime < $2
	`
	result, err := r.db.ExecContext(ctx, query, now, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
