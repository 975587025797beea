// Package internal wires configuration, logging, storage and ingestion together
package internal

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/database"
	"github.com/bahaipedia/server-scripts/internal/ingest"
	"github.com/bahaipedia/server-scripts/internal/jobs"
	"github.com/bahaipedia/server-scripts/internal/logging"
	"github.com/bahaipedia/server-scripts/internal/mediawiki"
	"github.com/bahaipedia/server-scripts/internal/urls"
	"github.com/bahaipedia/server-scripts/internal/validpages"
)

// Application holds the process-wide components shared by every command
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager

	// pages lives as long as the process; it is built on first allowlist use.
	pages *validpages.Cache
}

// FilterOverrides replace the configured URL filter for one invocation
type FilterOverrides struct {
	Mode       string
	IgnoreFile string
}

// NewApp creates a new application instance with the process-wide configuration
func NewApp(logs io.Writer) (*Application, error) {
	return NewAppWithConfig(config.GetConfig(), logs)
}

// NewAppWithConfig creates a new application with the provided config and opens the store.
// A nil logs writer leaves logging to cartridge, which writes to stdout.
func NewAppWithConfig(cfg *config.Config, logs io.Writer) (*Application, error) {
	logger := newLogger(cfg, logs)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
	}, nil
}

func newLogger(cfg *config.Config, logs io.Writer) *slog.Logger {
	if logs == nil {
		return cartridge.NewLogger(cfg, nil)
	}
	return logging.NewLogger(cfg, logs)
}

// Close releases the store connection
func (a *Application) Close() error {
	return a.DBManager.Close()
}

// ValidPages returns the process-lifetime page cache, creating it on first use.
func (a *Application) ValidPages() *validpages.Cache {
	if a.pages == nil {
		client := mediawiki.NewClient(a.Logger,
			a.Config.MediaWikiAPIURL,
			time.Duration(a.Config.MediaWikiTimeoutSeconds)*time.Second,
			mediawiki.WithMaxPages(a.Config.MediaWikiMaxPages))
		ttl := time.Duration(a.Config.ValidPagesTTLMinutes) * time.Minute
		a.pages = validpages.New(a.Logger, client, ttl)
	}
	return a.pages
}

// Policy builds the URL filter for this invocation.
func (a *Application) Policy(overrides FilterOverrides) (urls.Policy, error) {
	mode := a.Config.FilterMode
	if overrides.Mode != "" {
		mode = overrides.Mode
	}
	if err := config.ValidateFilterMode(mode); err != nil {
		return nil, err
	}

	if mode == config.FilterAllowlist {
		return urls.NewPolicy(urls.ModeAllowlist, a.ValidPages(), nil)
	}

	ignoreFile := a.Config.ResolveIgnoreFile()
	if overrides.IgnoreFile != "" {
		ignoreFile = overrides.IgnoreFile
	}
	prefixes, err := urls.LoadIgnorePrefixes(ignoreFile)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("Loaded ignore prefixes", slog.String("file", ignoreFile), slog.Int("count", len(prefixes)))
	return urls.NewPolicy(urls.ModeDenylist, nil, prefixes)
}

// NewEngine builds an ingestion engine over the configured servers.
func (a *Application) NewEngine(overrides FilterOverrides) (*ingest.Engine, error) {
	policy, err := a.Policy(overrides)
	if err != nil {
		return nil, err
	}

	engineCfg := ingest.EngineConfig{
		Servers:      a.Config.Servers,
		ReportPrefix: a.Config.ReportPrefix,
		Normalizer:   urls.NewNormalizer(a.Config.StripPrefix),
		Policy:       policy,
	}
	if policy.Mode() == urls.ModeAllowlist {
		engineCfg.Seeds = a.ValidPages()
	}
	return ingest.NewEngine(a.DBManager, a.Logger, engineCfg), nil
}

// NewScheduler builds the watch-mode scheduler: a sync job every interval plus the
// daily ledger sweep.
func (a *Application) NewScheduler(engine *ingest.Engine, opts ingest.Options, interval time.Duration) *jobs.Scheduler {
	if interval <= 0 {
		interval = time.Duration(a.Config.JobIntervalSeconds) * time.Second
	}
	syncJob := jobs.NewSyncJob(engine, opts, a.Logger)
	cleanupJob := jobs.NewLedgerCleanupJob(a.DBManager, a.Logger, a.Config.Servers)
	return jobs.NewScheduler(a.Logger, syncJob, cleanupJob, interval, jobs.DefaultCleanupInterval)
}
