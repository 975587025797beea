// Package ingest reconciles report files into the store.
//
// A run walks every selected server directory, then every report file in it, then every
// report kind. Each (file, kind) pair is one unit of work: it is skipped when the ledger
// already holds the file's modification time, and otherwise decoded and written in a
// single transaction together with its ledger entry. A failing unit rolls back alone and
// the run moves on; only a lost store connection ends the run early.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bahaipedia/server-scripts/internal/awstats"
	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/database"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/urls"
)

// Report kinds. Each has its own ledger cursor over the same files.
const (
	KindSummary = "summary"
	KindURLs    = "urls"
)

// AllKinds lists the report kinds in processing order.
var AllKinds = []string{KindSummary, KindURLs}

// Outcome of one (file, kind) unit.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeProcessed Outcome = "processed"
	OutcomeFailed    Outcome = "failed"
)

// Connector hands out the store connection.
type Connector interface {
	GetConnection() *gorm.DB
}

// SeedTracker remembers which sites had their valid pages stored during this process.
type SeedTracker interface {
	Seeded(site string) bool
	MarkSeeded(site string)
}

// Options select what a run touches.
type Options struct {
	Force   bool
	Server  string
	File    string
	Website string
	Kinds   []string
}

// FileResult is the outcome of one (file, kind) unit.
type FileResult struct {
	ServerID uint
	Server   string
	Filename string
	Kind     string
	Outcome  Outcome
	// Rows is the number of rows written; Dropped the per-URL rows the filter rejected.
	Rows    int
	Dropped int
	Err     error
	Class   ErrorClass
}

// RunSummary collects every unit outcome of a run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []FileResult
	Processed  int
	Skipped    int
	Failed     int
}

func (s *RunSummary) add(r FileResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeProcessed:
		s.Processed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// HasFailures reports whether any unit failed.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Servers      []config.Server
	ReportPrefix string
	Normalizer   urls.Normalizer
	Policy       urls.Policy
	// Seeds is consulted only when the policy hands out seed paths.
	Seeds SeedTracker
}

// Engine runs ingestion. It is not safe for concurrent runs.
type Engine struct {
	db         Connector
	logger     *slog.Logger
	servers    []config.Server
	prefix     string
	normalizer urls.Normalizer
	policy     urls.Policy
	seeds      SeedTracker
}

// NewEngine creates an Engine.
func NewEngine(db Connector, logger *slog.Logger, cfg EngineConfig) *Engine {
	prefix := cfg.ReportPrefix
	if prefix == "" {
		prefix = awstats.DefaultPrefix
	}
	return &Engine{
		db:         db,
		logger:     logger,
		servers:    cfg.Servers,
		prefix:     prefix,
		normalizer: cfg.Normalizer,
		policy:     cfg.Policy,
		seeds:      cfg.Seeds,
	}
}

// Run ingests every selected file. Per-file failures are reported in the summary; the
// returned error is set only when the run could not start or had to stop early.
func (e *Engine) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	kinds, err := selectKinds(opts.Kinds)
	if err != nil {
		return nil, err
	}
	servers, err := config.FilterServers(e.servers, opts.Server)
	if err != nil {
		return nil, err
	}
	if e.policy == nil {
		return nil, fmt.Errorf("no url filter policy configured")
	}

	summary := &RunSummary{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := e.logger.With(slog.String("run_id", summary.RunID))
	logger.Info("Starting ingestion run",
		slog.Int("servers", len(servers)),
		slog.Any("kinds", kinds),
		slog.Bool("force", opts.Force),
		slog.String("filter", e.policy.Mode()))

	for _, server := range servers {
		files, err := DiscoverReports(server.Directory, e.prefix, opts.File, opts.Website)
		if err != nil {
			logger.Error("Failed to list report directory",
				slog.String("server", server.Name),
				slog.String("directory", server.Directory),
				slog.Any("error", err))
			continue
		}
		if opts.File != "" && len(files) == 0 {
			logger.Warn("File not found in server directory",
				slog.String("file", opts.File),
				slog.String("server", server.Name))
			continue
		}

		for _, file := range files {
			for _, kind := range kinds {
				if err := ctx.Err(); err != nil {
					summary.FinishedAt = time.Now().UTC()
					return summary, err
				}

				result := e.processFile(ctx, logger, server, file, kind, opts.Force)
				summary.add(result)
				if result.Outcome == OutcomeFailed && isFatal(result.Err) {
					summary.FinishedAt = time.Now().UTC()
					return summary, fmt.Errorf("store connection unusable, stopping run: %w", result.Err)
				}
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	logger.Info("Ingestion run finished",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, nil
}

// processFile runs one (file, kind) unit and logs its outcome.
func (e *Engine) processFile(ctx context.Context, logger *slog.Logger, server config.Server, file ReportFile, kind string, force bool) FileResult {
	result := FileResult{ServerID: server.ID, Server: server.Name, Filename: file.Name, Kind: kind}
	logger = logger.With(
		slog.String("file", file.Name),
		slog.String("server", server.Name),
		slog.String("kind", kind))

	rows, dropped, skipped, err := e.ingest(ctx, logger, server, file, kind, force)
	switch {
	case err != nil:
		result.Outcome = OutcomeFailed
		result.Err = err
		result.Class = Classify(err)
		logger.Error("File failed",
			slog.String("class", string(result.Class)),
			slog.Any("error", err))
	case skipped:
		result.Outcome = OutcomeSkipped
		logger.Info("File already processed")
	default:
		result.Outcome = OutcomeProcessed
		result.Rows = rows
		result.Dropped = dropped
		logger.Info("File processed", slog.Int("rows", rows), slog.Int("dropped", dropped))
	}
	return result
}

func (e *Engine) ingest(ctx context.Context, logger *slog.Logger, server config.Server, file ReportFile, kind string, force bool) (rows, dropped int, skipped bool, err error) {
	db := e.db.GetConnection()

	prior, err := ledger.Get(db, file.Name, server.ID, kind)
	if err != nil {
		return 0, 0, false, &database.StoreError{Op: "read ledger", Err: err}
	}
	if !force && prior.Matches(file.ModTime) {
		return 0, 0, true, nil
	}

	name, err := awstats.ParseFilenameWithPrefix(file.Name, e.prefix)
	if err != nil {
		return 0, 0, false, err
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return 0, 0, false, err
	}
	defer func() { _ = f.Close() }()

	index, err := awstats.ReadIndex(f)
	if err != nil {
		return 0, 0, false, withFile(err, file.Name)
	}

	u := unit{
		server: server,
		file:   file,
		name:   name,
		index:  index,
		src:    f,
		logger: logger,
	}
	switch kind {
	case KindSummary:
		rows, err = e.ingestSummary(u)
	case KindURLs:
		rows, dropped, err = e.ingestURLs(ctx, u)
	default:
		err = fmt.Errorf("unknown report kind %q", kind)
	}
	return rows, dropped, false, withFile(err, file.Name)
}

func selectKinds(kinds []string) ([]string, error) {
	if len(kinds) == 0 {
		return AllKinds, nil
	}
	wanted := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		if k != KindSummary && k != KindURLs {
			return nil, fmt.Errorf("unknown report kind %q (want %s or %s)", k, KindSummary, KindURLs)
		}
		wanted[k] = true
	}
	// Keep processing order stable regardless of flag order.
	var selected []string
	for _, k := range AllKinds {
		if wanted[k] {
			selected = append(selected, k)
		}
	}
	return selected, nil
}

// withFile stamps the filename onto format errors raised by the decoders.
func withFile(err error, filename string) error {
	if fe, ok := err.(*awstats.FormatError); ok && fe.File == "" {
		fe.File = filename
	}
	return err
}
