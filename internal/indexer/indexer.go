package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/chunker"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
)

type Config struct {
	Concurrency int
	BatchSize   int
	RetryBudget int
}

// Indexer runs the ingestion pipeline: chunk the source text, embed the
// chunks in ordinal order, write the new version's chunk set and publish it.
// Re-running the same (source, version) is idempotent.
type Indexer struct {
	chunker  *chunker.Chunker
	embedder ai.IEmbedder
	sources  *repo.SourceRepo
	chunks   *repo.ChunkRepo
	sem      *semaphore.Weighted
	retry    ai.RetryConfig
	batch    int

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(ck *chunker.Chunker, embedder ai.IEmbedder, sources *repo.SourceRepo, chunks *repo.ChunkRepo, cfg Config) *Indexer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if max := embedder.MaxBatchSize(); max > 0 && cfg.BatchSize > max {
		cfg.BatchSize = max
	}
	return &Indexer{
		chunker:  ck,
		embedder: embedder,
		sources:  sources,
		chunks:   chunks,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		retry:    ai.DefaultRetry(cfg.RetryBudget),
		batch:    cfg.BatchSize,
		inflight: map[string]struct{}{},
	}
}

// Process ingests one source end to end. Concurrent calls for the same
// source collapse into the first one; concurrency across sources is bounded
// by the configured limit.
func (ix *Indexer) Process(ctx context.Context, sourceID string) error {
	ix.mu.Lock()
	if _, busy := ix.inflight[sourceID]; busy {
		ix.mu.Unlock()
		return nil
	}
	ix.inflight[sourceID] = struct{}{}
	ix.mu.Unlock()
	defer func() {
		ix.mu.Lock()
		delete(ix.inflight, sourceID)
		ix.mu.Unlock()
	}()

	if err := ix.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer ix.sem.Release(1)

	src, err := ix.sources.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	version, err := ix.sources.BeginIngest(ctx, src.ID, src.RawText, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := ix.ingestVersion(ctx, src, version); err != nil {
		logutil.GetLogger(ctx).Error("source ingestion failed",
			zap.String("source_id", src.ID), zap.Int64("version", version), zap.Error(err))
		if markErr := ix.sources.MarkError(ctx, src.ID, version, err.Error(), time.Now().Unix()); markErr != nil {
			logutil.GetLogger(ctx).Error("failed to mark source error", zap.Error(markErr))
		}
		return fmt.Errorf("%w: %v", appErr.ErrIngestion, err)
	}
	logutil.GetLogger(ctx).Info("source ingested",
		zap.String("source_id", src.ID), zap.Int64("version", version))
	return nil
}

func (ix *Indexer) ingestVersion(ctx context.Context, src *model.Source, version int64) error {
	pieces, err := ix.chunker.Split(src.RawText, src.Kind)
	if err != nil {
		return err
	}
	chunks := make([]model.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, model.Chunk{
			ID:            uuid.NewString(),
			SourceID:      src.ID,
			SourceVersion: version,
			Ordinal:       p.Ordinal,
			Text:          p.Text,
			TokenCount:    p.TokenCount,
		})
	}
	if err := ix.embedChunks(ctx, chunks); err != nil {
		return err
	}
	if err := ix.chunks.InsertBatch(ctx, chunks); err != nil {
		return err
	}
	if err := ix.sources.MarkReady(ctx, src.ID, version, time.Now().Unix()); err != nil {
		return err
	}
	if _, err := ix.chunks.DeleteOldVersions(ctx, src.ID, version); err != nil {
		// the new version is already live, stale rows only cost space
		logutil.GetLogger(ctx).Warn("failed to prune old chunk versions",
			zap.String("source_id", src.ID), zap.Error(err))
	}
	return nil
}

// embedChunks fills the embedding of each chunk, batched in ordinal order.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []model.Chunk) error {
	for start := 0; start < len(chunks); start += ix.batch {
		end := start + ix.batch
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		var vectors [][]float32
		err := ai.WithRetry(ctx, ix.retry, "embed chunk batch", func() error {
			var embedErr error
			vectors, embedErr = ix.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", chunks[start].Ordinal, chunks[end-1].Ordinal, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed chunks %d-%d: count mismatch, got %d want %d",
				chunks[start].Ordinal, chunks[end-1].Ordinal, len(vectors), len(texts))
		}
		for i := range vectors {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}
