package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/artifact"
	"github.com/notebase-ai/notebase/internal/config"
	"github.com/notebase-ai/notebase/internal/filestore"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
)

const (
	// materialBudget bounds how many characters of chunk text one job feeds
	// to the model.
	materialBudget = 32000
	// artifactTopK sizes the retrieval for focus-topic jobs, wider than chat
	// since an artifact summarizes rather than answers.
	artifactTopK = 24
	jobTimeout   = 10 * time.Minute
)

// ContextRetriever ranks notebook chunks against a query. Satisfied by
// *retriever.Retriever.
type ContextRetriever interface {
	Retrieve(ctx context.Context, notebookID string, sourceIDs []string, query string, topK int) ([]model.RetrievalResult, error)
}

// WorkerPool claims pending jobs and runs them to a terminal state. Provider
// pressure is bounded twice: a shared token bucket across all workers and a
// per-notebook concurrency cap.
type WorkerPool struct {
	jobs       *repo.JobRepo
	notebooks  *repo.NotebookRepo
	sources    *repo.SourceRepo
	chunks     *repo.ChunkRepo
	retriever  ContextRetriever
	generators map[model.ArtifactType]artifact.Generator
	gen        ai.IGenerator
	hub        *Hub
	store      filestore.Store
	limiter    *rate.Limiter
	cfg        config.JobsConfig
	language   string
	wake       chan struct{}

	mu          sync.Mutex
	perNotebook map[string]*semaphore.Weighted
	running     map[string]context.CancelFunc
}

func NewWorkerPool(
	jobRepo *repo.JobRepo,
	notebooks *repo.NotebookRepo,
	sources *repo.SourceRepo,
	chunks *repo.ChunkRepo,
	rt ContextRetriever,
	generators map[model.ArtifactType]artifact.Generator,
	gen ai.IGenerator,
	hub *Hub,
	store filestore.Store,
	cfg config.JobsConfig,
	language string,
) *WorkerPool {
	return &WorkerPool{
		jobs:        jobRepo,
		notebooks:   notebooks,
		sources:     sources,
		chunks:      chunks,
		retriever:   rt,
		generators:  generators,
		gen:         gen,
		hub:         hub,
		store:       store,
		limiter:     rate.NewLimiter(rate.Limit(cfg.ProviderCallsPerSec), cfg.ProviderCallsPerSec),
		cfg:         cfg,
		language:    language,
		wake:        make(chan struct{}, 1),
		perNotebook: map[string]*semaphore.Weighted{},
		running:     map[string]context.CancelFunc{},
	}
}

// Wake nudges an idle claim loop so a freshly submitted job does not wait
// out the poll interval.
func (w *WorkerPool) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Interrupt cancels a job running on this instance. Jobs held by other
// instances fall back to the cancel_requested flag checked between
// suspension points.
func (w *WorkerPool) Interrupt(jobID string) {
	w.mu.Lock()
	cancel, ok := w.running[jobID]
	w.mu.Unlock()
	if ok {
		cancel()
	}
}

func (w *WorkerPool) track(jobID string, cancel context.CancelFunc) {
	w.mu.Lock()
	w.running[jobID] = cancel
	w.mu.Unlock()
}

func (w *WorkerPool) untrack(jobID string) {
	w.mu.Lock()
	delete(w.running, jobID)
	w.mu.Unlock()
}

// Run blocks until ctx is done, keeping cfg.Workers claim loops alive.
func (w *WorkerPool) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		eg.Go(func() error {
			return w.loop(ctx)
		})
	}
	return eg.Wait()
}

func (w *WorkerPool) loop(ctx context.Context) error {
	interval := time.Duration(w.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for {
		job, err := w.jobs.ClaimNext(ctx, time.Now().Unix())
		if err != nil {
			logutil.GetLogger(ctx).Error("failed to claim job", zap.Error(err))
		}
		if job != nil {
			w.execute(ctx, job)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		case <-time.After(interval):
		}
	}
}

func (w *WorkerPool) execute(parent context.Context, job *model.GenerationJob) {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()
	w.track(job.ID, cancel)
	defer w.untrack(job.ID)
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", job.ID),
		zap.String("notebook_id", job.NotebookID),
		zap.String("artifact_type", string(job.ArtifactType)))

	sem := w.notebookSem(job.NotebookID)
	if err := sem.Acquire(ctx, 1); err != nil {
		w.fail(ctx, job, err)
		return
	}
	defer sem.Release(1)

	result, err := w.runJob(ctx, job)
	if err != nil {
		// an interrupt from Cancel surfaces as context.Canceled, confirm
		// against the flag so the job records the cancellation
		if errors.Is(err, context.Canceled) && parent.Err() == nil {
			if flagged, flagErr := w.jobs.CancelRequested(parent, job.ID); flagErr == nil && flagged {
				err = appErr.ErrJobCancelled
			}
		}
		logger.Error("generation job failed", zap.Error(err))
		// finalize on the parent so a blown job deadline cannot block it
		w.fail(parent, job, err)
		return
	}
	result = w.storeDocument(parent, job, result)
	if err := w.jobs.MarkReady(parent, job.ID, result, time.Now().Unix()); err != nil {
		// a cooperative cancel or reaper got there first, the terminal state wins
		logger.Warn("could not finalize job", zap.Error(err))
		return
	}
	logger.Info("generation job ready")
	w.hub.Publish(Event{
		JobID: job.ID, NotebookID: job.NotebookID, ArtifactType: job.ArtifactType,
		Status: model.JobStatusReady, Result: result,
	})
}

func (w *WorkerPool) runJob(ctx context.Context, job *model.GenerationJob) (json.RawMessage, error) {
	gen, ok := w.generators[job.ArtifactType]
	if !ok {
		return nil, fmt.Errorf("%w: no generator for %q", appErr.ErrInvalid, job.ArtifactType)
	}
	if err := w.checkCancelled(ctx, job.ID); err != nil {
		return nil, err
	}
	nb, err := w.notebooks.Get(ctx, job.NotebookID)
	if err != nil {
		return nil, err
	}
	material, err := w.buildMaterial(ctx, job)
	if err != nil {
		return nil, err
	}
	in := artifact.Input{
		NotebookTitle: nb.Title,
		Context:       material,
		Params:        job.Params,
		Language:      w.pickLanguage(job.Params.Language),
	}

	attempts := 1 + w.cfg.ValidationRetryLimit
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := w.checkCancelled(ctx, job.ID); err != nil {
			return nil, err
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		result, err := gen.Generate(ctx, w.gen, in)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, appErr.ErrJobValidation) {
			return nil, err
		}
		logutil.GetLogger(ctx).Warn("artifact failed structural validation, re-prompting",
			zap.String("job_id", job.ID), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

// DocumentKey is where a job's rendered document lives in the file store.
func DocumentKey(notebookID, jobID string) string {
	return fmt.Sprintf("artifacts/%s/%s.md", notebookID, jobID)
}

// storeDocument renders slide decks and infographics to markdown and saves
// them, recording the file path on the result. Mindmaps stay JSON-only; a
// store failure downgrades to the bare result rather than failing the job.
func (w *WorkerPool) storeDocument(ctx context.Context, job *model.GenerationJob, result json.RawMessage) json.RawMessage {
	if w.store == nil || job.ArtifactType == model.ArtifactMindmap {
		return result
	}
	body, err := artifact.RenderDocument(job.ArtifactType, result)
	if err != nil {
		logutil.GetLogger(ctx).Warn("could not render artifact document",
			zap.String("job_id", job.ID), zap.Error(err))
		return result
	}
	key := DocumentKey(job.NotebookID, job.ID)
	if err := w.store.Save(ctx, key, filestore.BytesReader(body), int64(len(body))); err != nil {
		logutil.GetLogger(ctx).Warn("could not store artifact document",
			zap.String("job_id", job.ID), zap.String("key", key), zap.Error(err))
		return result
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(result, &fields); err != nil {
		return result
	}
	fields["file_path"] = key
	annotated, err := json.Marshal(fields)
	if err != nil {
		return result
	}
	return annotated
}

// buildMaterial renders the job's source scope as sectioned chunk text,
// truncated at the material budget. A focus topic routes through the
// retriever so the model sees the ranked chunks instead of everything;
// otherwise, and when nothing clears the similarity floor, the full
// in-scope content is used.
func (w *WorkerPool) buildMaterial(ctx context.Context, job *model.GenerationJob) (string, error) {
	if topic := strings.TrimSpace(job.Params.FocusTopic); topic != "" && w.retriever != nil {
		material, err := w.retrievedMaterial(ctx, job, topic)
		if err != nil {
			return "", err
		}
		if material != "" {
			return material, nil
		}
	}
	sources, err := w.sources.ListActive(ctx, job.NotebookID)
	if err != nil {
		return "", err
	}
	if len(job.Params.SourceIDs) > 0 {
		want := make(map[string]struct{}, len(job.Params.SourceIDs))
		for _, id := range job.Params.SourceIDs {
			want[id] = struct{}{}
		}
		filtered := sources[:0]
		for _, s := range sources {
			if _, ok := want[s.ID]; ok {
				filtered = append(filtered, s)
			}
		}
		sources = filtered
	}
	if len(sources) == 0 {
		return "", fmt.Errorf("%w: notebook has no ready sources in scope", appErr.ErrInvalid)
	}

	var sb strings.Builder
	for _, src := range sources {
		chunks, err := w.chunks.ListByVersion(ctx, src.ID, src.Version)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "## %s\n\n", src.Title)
		for _, c := range chunks {
			if sb.Len()+len(c.Text) > materialBudget {
				return sb.String(), nil
			}
			sb.WriteString(c.Text)
			sb.WriteString("\n\n")
		}
	}
	return sb.String(), nil
}

// retrievedMaterial ranks chunks against the focus topic and lays them out
// the same sectioned way, grouped by source.
func (w *WorkerPool) retrievedMaterial(ctx context.Context, job *model.GenerationJob, topic string) (string, error) {
	hits, err := w.retriever.Retrieve(ctx, job.NotebookID, job.Params.SourceIDs, topic, artifactTopK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	var sb strings.Builder
	lastSource := ""
	for _, h := range hits {
		if h.SourceID != lastSource {
			fmt.Fprintf(&sb, "## %s\n\n", h.SourceTitle)
			lastSource = h.SourceID
		}
		if sb.Len()+len(h.Text) > materialBudget {
			break
		}
		sb.WriteString(h.Text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func (w *WorkerPool) checkCancelled(ctx context.Context, jobID string) error {
	flagged, err := w.jobs.CancelRequested(ctx, jobID)
	if err != nil {
		return err
	}
	if flagged {
		return appErr.ErrJobCancelled
	}
	return nil
}

func (w *WorkerPool) fail(ctx context.Context, job *model.GenerationJob, cause error) {
	msg := cause.Error()
	if errors.Is(cause, appErr.ErrJobCancelled) {
		msg = appErr.ErrJobCancelled.Error()
	}
	if err := w.jobs.MarkError(ctx, job.ID, msg, time.Now().Unix()); err != nil {
		logutil.GetLogger(ctx).Warn("could not mark job error",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	w.hub.Publish(Event{
		JobID: job.ID, NotebookID: job.NotebookID, ArtifactType: job.ArtifactType,
		Status: model.JobStatusError, Error: msg,
	})
}

func (w *WorkerPool) pickLanguage(jobLang string) string {
	if strings.TrimSpace(jobLang) != "" {
		return jobLang
	}
	return w.language
}

func (w *WorkerPool) notebookSem(notebookID string) *semaphore.Weighted {
	w.mu.Lock()
	defer w.mu.Unlock()
	sem, ok := w.perNotebook[notebookID]
	if !ok {
		limit := w.cfg.PerNotebookCalls
		if limit <= 0 {
			limit = 2
		}
		sem = semaphore.NewWeighted(int64(limit))
		w.perNotebook[notebookID] = sem
	}
	return sem
}
