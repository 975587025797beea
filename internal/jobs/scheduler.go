// Package jobs runs ingestion periodically for watch mode. Every tick is a complete batch
// run; nothing is streamed.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often stale ledger entries are swept.
const DefaultCleanupInterval = 24 * time.Hour

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool

	syncInterval    time.Duration
	cleanupInterval time.Duration

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	syncJob    *SyncJob
	cleanupJob *LedgerCleanupJob

	syncTicker    *time.Ticker
	cleanupTicker *time.Ticker
	wg            sync.WaitGroup
}

// NewScheduler creates a scheduler running syncJob every syncInterval and cleanupJob
// every cleanupInterval. A nil cleanupJob disables the sweep.
func NewScheduler(logger *slog.Logger, syncJob *SyncJob, cleanupJob *LedgerCleanupJob, syncInterval, cleanupInterval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	return &Scheduler{
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		enabled:         true,
		syncInterval:    syncInterval,
		cleanupInterval: cleanupInterval,
		syncJob:         syncJob,
		cleanupJob:      cleanupJob,
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func(ctx context.Context) error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	s.startSyncJob()
	if s.cleanupJob != nil {
		s.startCleanupJob()
	}

	s.logger.Info("Background jobs started",
		slog.Duration("sync_interval", s.syncInterval),
		slog.Bool("cleanup", s.cleanupJob != nil))

	return nil
}

func (s *Scheduler) startSyncJob() {
	s.logger.Info("Starting sync job", slog.Duration("interval", s.syncInterval))
	s.syncTicker = time.NewTicker(s.syncInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("Running initial sync...")
		s.executeJobSafely("sync", s.syncJob.Run)

		for {
			select {
			case <-s.syncTicker.C:
				s.executeJobSafely("sync", s.syncJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Sync job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startCleanupJob() {
	s.logger.Info("Starting ledger cleanup job", slog.Duration("interval", s.cleanupInterval))
	s.cleanupTicker = time.NewTicker(s.cleanupInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-s.cleanupTicker.C:
				s.executeJobSafely("ledger_cleanup", s.cleanupJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Ledger cleanup job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.syncTicker != nil {
		s.syncTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// TriggerSync runs the sync job now unless another job is executing.
func (s *Scheduler) TriggerSync() {
	if !s.enabled {
		return
	}
	s.executeJobSafely("sync", s.syncJob.Run)
}
