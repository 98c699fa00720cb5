package jobs_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/artifact"
	"github.com/notebase-ai/notebase/internal/config"
	"github.com/notebase-ai/notebase/internal/jobs"
	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/repo"
	"github.com/notebase-ai/notebase/test/testutil"
)

const cyclicMindmap = `{"title":"loop","nodes":[{"id":"n1","label":"a"},{"id":"n2","label":"b"}],` +
	`"edges":[{"source":"n1","target":"n2"},{"source":"n2","target":"n1"}]}`

const validMindmap = `{"title":"ok","nodes":[{"id":"n1","label":"root"},{"id":"n2","label":"leaf"}],` +
	`"edges":[{"source":"n1","target":"n2"}]}`

// scriptedGenerator replays canned model replies in order, repeating the
// last one, and records the user prompts it saw.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	calls   int
	prompts []string
}

func (s *scriptedGenerator) Generate(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerateOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.Role == ai.RoleUser {
			s.prompts = append(s.prompts, m.Content)
		}
	}
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return s.replies[idx], nil
}

func (s *scriptedGenerator) GenerateStream(ctx context.Context, msgs []ai.ChatMessage, opts ai.GenerateOptions, fn ai.StreamFunc) (string, error) {
	return s.Generate(ctx, msgs, opts)
}

func (s *scriptedGenerator) ModelName() string { return "scripted" }

func (s *scriptedGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedGenerator) sawPrompt(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prompts {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

// recordingRetriever returns canned hits and remembers the last query.
type recordingRetriever struct {
	mu    sync.Mutex
	query string
	hits  []model.RetrievalResult
}

func (r *recordingRetriever) Retrieve(ctx context.Context, notebookID string, sourceIDs []string, query string, topK int) ([]model.RetrievalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query = query
	return r.hits, nil
}

func (r *recordingRetriever) lastQuery() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query
}

func unitVec(axis int) []float32 {
	vec := make([]float32, 1536)
	vec[axis%1536] = 1
	return vec
}

type workerEnv struct {
	jobRepo *repo.JobRepo
	manager *jobs.Manager
	nb      *model.Notebook
}

// setupWorker publishes one ready source with two chunks and starts a
// single-worker pool against it.
func setupWorker(t *testing.T, gen *scriptedGenerator, rt jobs.ContextRetriever) *workerEnv {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	notebookRepo := repo.NewNotebookRepo(db)
	sourceRepo := repo.NewSourceRepo(db)
	chunkRepo := repo.NewChunkRepo(db)
	jobRepo := repo.NewJobRepo(db)

	now := time.Now().Unix()
	nb := &model.Notebook{
		ID:     uuid.NewString(),
		UserID: "user-" + uuid.NewString()[:8],
		Title:  "worker test",
		Ctime:  now,
		Mtime:  now,
	}
	require.NoError(t, notebookRepo.Create(ctx, nb))
	t.Cleanup(func() { _ = notebookRepo.Delete(context.Background(), nb.UserID, nb.ID) })

	src := &model.Source{
		ID:         uuid.NewString(),
		NotebookID: nb.ID,
		Title:      "doc",
		Kind:       model.SourceKindText,
		RawText:    "alpha beta",
		Status:     model.SourceStatusPending,
		IsActive:   true,
		Ctime:      now,
		Mtime:      now,
	}
	require.NoError(t, sourceRepo.Create(ctx, src))
	version, err := sourceRepo.BeginIngest(ctx, src.ID, src.RawText, now)
	require.NoError(t, err)
	require.NoError(t, chunkRepo.InsertBatch(ctx, []model.Chunk{
		{ID: uuid.NewString(), SourceID: src.ID, SourceVersion: version, Ordinal: 0,
			Text: "alpha facts", TokenCount: 2, Embedding: unitVec(0)},
		{ID: uuid.NewString(), SourceID: src.ID, SourceVersion: version, Ordinal: 1,
			Text: "beta facts", TokenCount: 2, Embedding: unitVec(1)},
	}))
	require.NoError(t, sourceRepo.MarkReady(ctx, src.ID, version, now))

	hub := jobs.NewHub()
	manager := jobs.NewManager(jobRepo, hub)
	pool := jobs.NewWorkerPool(jobRepo, notebookRepo, sourceRepo, chunkRepo, rt,
		artifact.NewGenerators(artifact.Limits{}), gen, hub, nil,
		config.JobsConfig{
			Workers:              1,
			PerNotebookCalls:     1,
			ProviderCallsPerSec:  100,
			PollIntervalSeconds:  1,
			ValidationRetryLimit: 1,
		}, "")
	manager.AttachWorkers(pool)

	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = pool.Run(runCtx) }()

	return &workerEnv{jobRepo: jobRepo, manager: manager, nb: nb}
}

func waitTerminal(t *testing.T, env *workerEnv, jobID string) *model.GenerationJob {
	t.Helper()
	var got *model.GenerationJob
	require.Eventually(t, func() bool {
		job, err := env.jobRepo.GetByID(context.Background(), env.nb.ID, jobID)
		if err != nil || !model.JobStatusTerminal(job.Status) {
			return false
		}
		got = job
		return true
	}, 10*time.Second, 50*time.Millisecond)
	return got
}

func TestWorkerRetriesInvalidMindmapOnce(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{cyclicMindmap, validMindmap}}
	env := setupWorker(t, gen, nil)

	job, created, err := env.manager.Submit(context.Background(), env.nb.ID,
		model.ArtifactMindmap, model.JobParams{Title: "retry once"})
	require.NoError(t, err)
	require.True(t, created)

	final := waitTerminal(t, env, job.ID)
	require.Equal(t, model.JobStatusReady, final.Status)
	require.Equal(t, 2, gen.callCount())

	var result model.MindmapResult
	require.NoError(t, json.Unmarshal(final.Result, &result))
	require.Len(t, result.Nodes, 2)
}

func TestWorkerFailsWhenRetryStaysInvalid(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{cyclicMindmap, cyclicMindmap}}
	env := setupWorker(t, gen, nil)

	job, created, err := env.manager.Submit(context.Background(), env.nb.ID,
		model.ArtifactMindmap, model.JobParams{Title: "never valid"})
	require.NoError(t, err)
	require.True(t, created)

	final := waitTerminal(t, env, job.ID)
	require.Equal(t, model.JobStatusError, final.Status)
	require.Contains(t, final.Error, "structural validation failed")
	require.Equal(t, 2, gen.callCount())
}

func TestWorkerRanksMaterialForFocusTopic(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{validMindmap}}
	rt := &recordingRetriever{hits: []model.RetrievalResult{{
		ChunkID: "c1", SourceID: "s1", SourceTitle: "doc",
		Ordinal: 0, Text: "ranked passage", Similarity: 0.9,
	}}}
	env := setupWorker(t, gen, rt)

	job, created, err := env.manager.Submit(context.Background(), env.nb.ID,
		model.ArtifactMindmap, model.JobParams{FocusTopic: "photosynthesis"})
	require.NoError(t, err)
	require.True(t, created)

	final := waitTerminal(t, env, job.ID)
	require.Equal(t, model.JobStatusReady, final.Status)
	require.Equal(t, "photosynthesis", rt.lastQuery())
	// the prompt carries the ranked chunks, not the full source dump
	require.True(t, gen.sawPrompt("ranked passage"))
	require.False(t, gen.sawPrompt("alpha facts"))
}
