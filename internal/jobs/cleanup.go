package jobs

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/ingest"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/models"
)

// LedgerCleanupJob forgets ledger entries whose report file is gone from its server
// directory. Stored statistics are left alone.
type LedgerCleanupJob struct {
	db      ingest.Connector
	logger  *slog.Logger
	servers []config.Server
}

func NewLedgerCleanupJob(db ingest.Connector, logger *slog.Logger, servers []config.Server) *LedgerCleanupJob {
	return &LedgerCleanupJob{
		db:      db,
		logger:  logger,
		servers: servers,
	}
}

// Run sweeps every configured server. A server whose directory cannot be read is
// skipped so an unmounted share does not wipe its ledger.
func (j *LedgerCleanupJob) Run(ctx context.Context) error {
	db := j.db.GetConnection()
	totalDeleted := int64(0)

	for _, server := range j.servers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(server.Directory); err != nil {
			j.logger.Warn("Skipping ledger cleanup for unreadable directory",
				slog.String("server", server.Name),
				slog.String("directory", server.Directory),
				slog.Any("error", err))
			continue
		}

		entries, err := ledger.ListForServer(db, server.ID)
		if err != nil {
			j.logger.Error("Failed to list ledger entries", slog.String("server", server.Name), slog.Any("error", err))
			return err
		}

		var stale []uint
		for _, entry := range entries {
			_, err := os.Stat(filepath.Join(server.Directory, entry.Filename))
			if errors.Is(err, fs.ErrNotExist) {
				stale = append(stale, entry.ID)
			}
		}
		if len(stale) == 0 {
			continue
		}

		var deleted int64
		err = models.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
			var err error
			deleted, err = ledger.DeleteEntries(tx, stale)
			return err
		})
		if err != nil {
			j.logger.Error("Failed to delete stale ledger entries",
				slog.String("server", server.Name),
				slog.Any("error", err),
				slog.Int64("deleted_so_far", totalDeleted))
			return err
		}
		totalDeleted += deleted
	}

	if totalDeleted == 0 {
		j.logger.Debug("No stale ledger entries to clean up")
		return nil
	}
	j.logger.Info("Cleaned up stale ledger entries", slog.Int64("deleted_count", totalDeleted))
	return nil
}
