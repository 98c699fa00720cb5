package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/repo"
)

// StaleResetJob cleans up work orphaned by crashed workers: sources left in
// processing go back to pending for the next ingest sweep, while generation
// jobs whose claim went silent are finalized to error.
type StaleResetJob struct {
	sources           *repo.SourceRepo
	jobs              *repo.JobRepo
	staleAfterMinutes int
}

func NewStaleResetJob(sources *repo.SourceRepo, jobs *repo.JobRepo, staleAfterMinutes int) *StaleResetJob {
	if staleAfterMinutes <= 0 {
		staleAfterMinutes = 30
	}
	return &StaleResetJob{sources: sources, jobs: jobs, staleAfterMinutes: staleAfterMinutes}
}

func (j *StaleResetJob) Name() string {
	return "stale_reset"
}

func (j *StaleResetJob) Run(ctx context.Context) error {
	now := time.Now().Unix()
	cutoff := now - int64(j.staleAfterMinutes)*60
	resetSources, err := j.sources.ResetStale(ctx, cutoff, now)
	if err != nil {
		return err
	}
	reapedJobs, err := j.jobs.ReapStale(ctx, cutoff, now)
	if err != nil {
		return err
	}
	if resetSources > 0 || reapedJobs > 0 {
		logutil.GetLogger(ctx).Info("stale work cleaned up",
			zap.Int64("sources_reset", resetSources), zap.Int64("jobs_reaped", reapedJobs))
	}
	return nil
}
