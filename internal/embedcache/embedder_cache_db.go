package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/repo"
)

// WrapDBCacheToEmbedder adds the persistent cache tier, keyed by model name
// and content hash so re-ingesting unchanged text never re-embeds it.
func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	hits := 0
	for i, text := range texts {
		_, contentHash := buildCacheKey(d.next.ModelName(), text)
		values, ok, err := d.repo.Get(ctx, d.next.ModelName(), contentHash)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = values
			hits++
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hits (db)",
			zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	computed, err := d.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for j, i := range missIdx {
		_, contentHash := buildCacheKey(d.next.ModelName(), texts[i])
		if err := d.repo.Save(ctx, &model.EmbeddingCache{
			ModelName:   d.next.ModelName(),
			ContentHash: contentHash,
			Embedding:   computed[j],
			Ctime:       now,
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
		out[i] = computed[j]
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}

func (d *dbEmbedder) MaxBatchSize() int {
	if d == nil || d.next == nil {
		return 0
	}
	return d.next.MaxBatchSize()
}
