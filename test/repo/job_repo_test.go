package repo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
	"github.com/notebase-ai/notebase/test/testutil"
)

func createTestNotebook(t *testing.T, db *sql.DB) *model.Notebook {
	t.Helper()
	notebooks := repo.NewNotebookRepo(db)
	now := time.Now().Unix()
	nb := &model.Notebook{
		ID:     uuid.NewString(),
		UserID: "user-" + uuid.NewString()[:8],
		Title:  "test notebook",
		Ctime:  now,
		Mtime:  now,
	}
	require.NoError(t, notebooks.Create(context.Background(), nb))
	t.Cleanup(func() {
		_ = notebooks.Delete(context.Background(), nb.UserID, nb.ID)
	})
	return nb
}

func newTestJob(notebookID, fingerprint string) *model.GenerationJob {
	now := time.Now().Unix()
	return &model.GenerationJob{
		ID:                uuid.NewString(),
		NotebookID:        notebookID,
		ArtifactType:      model.ArtifactMindmap,
		Params:            model.JobParams{},
		ParamsFingerprint: fingerprint,
		Status:            model.JobStatusPending,
		Ctime:             now,
		Mtime:             now,
	}
}

func TestJobRepoInflightUniqueness(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	nb := createTestNotebook(t, db)
	jobs := repo.NewJobRepo(db)
	ctx := context.Background()
	fingerprint := uuid.NewString()[:32]

	first := newTestJob(nb.ID, fingerprint)
	require.NoError(t, jobs.Create(ctx, first))

	// a second pending job with the same fingerprint hits the partial index
	duplicate := newTestJob(nb.ID, fingerprint)
	require.ErrorIs(t, jobs.Create(ctx, duplicate), appErr.ErrConflict)

	inflight, err := jobs.GetInflight(ctx, nb.ID, fingerprint)
	require.NoError(t, err)
	require.Equal(t, first.ID, inflight.ID)

	// still blocked while the job is processing
	claimed, err := jobs.ClaimNext(ctx, time.Now().Unix())
	require.NoError(t, err)
	require.Equal(t, first.ID, claimed.ID)
	require.Equal(t, model.JobStatusProcessing, claimed.Status)
	require.ErrorIs(t, jobs.Create(ctx, duplicate), appErr.ErrConflict)

	// a terminal job stops blocking resubmission
	require.NoError(t, jobs.MarkReady(ctx, first.ID, []byte(`{"nodes":[]}`), time.Now().Unix()))
	require.NoError(t, jobs.Create(ctx, duplicate))
}

func TestJobRepoTerminalStateIsImmutable(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	nb := createTestNotebook(t, db)
	jobs := repo.NewJobRepo(db)
	ctx := context.Background()

	job := newTestJob(nb.ID, uuid.NewString()[:32])
	require.NoError(t, jobs.Create(ctx, job))
	claimed, err := jobs.ClaimNext(ctx, time.Now().Unix())
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	require.NoError(t, jobs.MarkError(ctx, job.ID, "model kept emitting prose", time.Now().Unix()))

	require.ErrorIs(t, jobs.MarkReady(ctx, job.ID, []byte(`{}`), time.Now().Unix()), appErr.ErrJobTerminal)
	require.ErrorIs(t, jobs.MarkError(ctx, job.ID, "again", time.Now().Unix()), appErr.ErrJobTerminal)
	_, err = jobs.RequestCancel(ctx, nb.ID, job.ID)
	require.ErrorIs(t, err, appErr.ErrJobTerminal)

	final, err := jobs.GetByID(ctx, nb.ID, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusError, final.Status)
	require.Equal(t, "model kept emitting prose", final.Error)
}

func TestJobRepoCancelPending(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	nb := createTestNotebook(t, db)
	jobs := repo.NewJobRepo(db)
	ctx := context.Background()

	job := newTestJob(nb.ID, uuid.NewString()[:32])
	require.NoError(t, jobs.Create(ctx, job))

	marked, err := jobs.RequestCancel(ctx, nb.ID, job.ID)
	require.NoError(t, err)
	require.True(t, marked.CancelRequested)

	finalized, err := jobs.FinalizeCancelledPending(ctx, job.ID, time.Now().Unix())
	require.NoError(t, err)
	require.True(t, finalized)

	final, err := jobs.GetByID(ctx, nb.ID, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusError, final.Status)

	// nothing pending is left for the workers
	requested, err := jobs.CancelRequested(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, requested)
}

func TestJobRepoReapStale(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	nb := createTestNotebook(t, db)
	jobs := repo.NewJobRepo(db)
	ctx := context.Background()

	job := newTestJob(nb.ID, uuid.NewString()[:32])
	require.NoError(t, jobs.Create(ctx, job))
	past := time.Now().Add(-time.Hour).Unix()
	claimed, err := jobs.ClaimNext(ctx, past)
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	reaped, err := jobs.ReapStale(ctx, time.Now().Add(-30*time.Minute).Unix(), time.Now().Unix())
	require.NoError(t, err)
	require.GreaterOrEqual(t, reaped, int64(1))

	refreshed, err := jobs.GetByID(ctx, nb.ID, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusError, refreshed.Status)
	require.Equal(t, "worker lost", refreshed.Error)

	// reaping is terminal, the job cannot be reclaimed
	_, err = jobs.RequestCancel(ctx, nb.ID, job.ID)
	require.ErrorIs(t, err, appErr.ErrJobTerminal)
}
