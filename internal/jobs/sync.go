package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bahaipedia/server-scripts/internal/ingest"
)

// Runner performs one ingestion run.
type Runner interface {
	Run(ctx context.Context, opts ingest.Options) (*ingest.RunSummary, error)
}

// SyncJob runs ingestion with fixed options on every tick.
type SyncJob struct {
	runner Runner
	opts   ingest.Options
	logger *slog.Logger

	mu   sync.Mutex
	last *ingest.RunSummary
}

func NewSyncJob(runner Runner, opts ingest.Options, logger *slog.Logger) *SyncJob {
	return &SyncJob{runner: runner, opts: opts, logger: logger}
}

// Run performs one batch run. File failures are logged by the engine and left for the
// next tick; only run-level errors are returned.
func (j *SyncJob) Run(ctx context.Context) error {
	summary, err := j.runner.Run(ctx, j.opts)
	if summary != nil {
		j.mu.Lock()
		j.last = summary
		j.mu.Unlock()
	}
	if err != nil {
		return err
	}

	if summary.HasFailures() {
		j.logger.Warn("Sync run finished with failures",
			slog.String("run_id", summary.RunID),
			slog.Int("failed", summary.Failed))
	}
	return nil
}

// LastSummary returns the summary of the most recent run, or nil before the first.
func (j *SyncJob) LastSummary() *ingest.RunSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
