package retriever

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/config"
	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/repo"
)

// candidateFactor oversamples the nearest-neighbour query so the similarity
// floor and per-source cap can still fill top-k.
const candidateFactor = 4

type Retriever struct {
	embedder ai.IEmbedder
	chunks   *repo.ChunkRepo
	cfg      config.RetrievalConfig
	retry    ai.RetryConfig
}

func New(embedder ai.IEmbedder, chunks *repo.ChunkRepo, cfg config.RetrievalConfig, retry ai.RetryConfig) *Retriever {
	return &Retriever{embedder: embedder, chunks: chunks, cfg: cfg, retry: retry}
}

// Retrieve embeds the query and returns up to topK scored chunks from the
// notebook's ready, active sources. An empty sourceIDs means the whole
// notebook; topK <= 0 falls back to the configured default.
func (r *Retriever) Retrieve(ctx context.Context, notebookID string, sourceIDs []string, query string, topK int) ([]model.RetrievalResult, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	var vectors [][]float32
	err := ai.WithRetry(ctx, r.retry, "embed query", func() error {
		var embedErr error
		vectors, embedErr = r.embedder.EmbedBatch(ctx, []string{query})
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embed query: provider returned no vector")
	}

	candidates, err := r.chunks.Search(ctx, notebookID, sourceIDs, vectors[0], topK*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	selected := selectTop(candidates, selectOptions{
		topK:          topK,
		minSimilarity: r.cfg.MinSimilarity,
		tieEpsilon:    r.cfg.TieEpsilon,
	})
	logutil.GetLogger(ctx).Debug("retrieval done",
		zap.String("notebook_id", notebookID),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)))
	return selected, nil
}
