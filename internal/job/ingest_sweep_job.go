package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/indexer"
	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/repo"
)

// IngestSweepJob picks up sources stuck in pending, typically because the
// process restarted between source creation and the background ingestion
// goroutine finishing.
type IngestSweepJob struct {
	sources   *repo.SourceRepo
	indexer   *indexer.Indexer
	batchSize uint
}

func NewIngestSweepJob(sources *repo.SourceRepo, ix *indexer.Indexer, batchSize uint) *IngestSweepJob {
	if batchSize == 0 {
		batchSize = 20
	}
	return &IngestSweepJob{sources: sources, indexer: ix, batchSize: batchSize}
}

func (j *IngestSweepJob) Name() string {
	return "ingest_sweep"
}

func (j *IngestSweepJob) Run(ctx context.Context) error {
	pending, err := j.sources.ListByStatus(ctx, model.SourceStatusPending, j.batchSize)
	if err != nil {
		return err
	}
	for _, src := range pending {
		if err := j.indexer.Process(ctx, src.ID); err != nil {
			logutil.GetLogger(ctx).Warn("sweep ingestion failed",
				zap.String("source_id", src.ID), zap.Error(err))
		}
	}
	return nil
}
