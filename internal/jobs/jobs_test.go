package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/ingest"
	"github.com/bahaipedia/server-scripts/internal/jobs"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/testsupport"
	"github.com/bahaipedia/server-scripts/internal/urls"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

type countingRunner struct {
	calls   atomic.Int32
	err     error
	summary ingest.RunSummary
}

func (r *countingRunner) Run(_ context.Context, _ ingest.Options) (*ingest.RunSummary, error) {
	r.calls.Add(1)
	s := r.summary
	return &s, r.err
}

func TestSyncJobKeepsLastSummary(t *testing.T) {
	runner := &countingRunner{summary: ingest.RunSummary{RunID: "abc", Failed: 1}}
	job := jobs.NewSyncJob(runner, ingest.Options{}, testsupport.GetLogger())

	assert.Nil(t, job.LastSummary())
	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, job.LastSummary())
	assert.Equal(t, "abc", job.LastSummary().RunID)
}

func TestSyncJobReturnsRunErrors(t *testing.T) {
	runner := &countingRunner{err: errors.New("store connection unusable")}
	job := jobs.NewSyncJob(runner, ingest.Options{}, testsupport.GetLogger())

	assert.Error(t, job.Run(context.Background()))
}

func TestSchedulerRunsInitialSyncAndStops(t *testing.T) {
	runner := &countingRunner{}
	logger := testsupport.GetLogger()
	scheduler := jobs.NewScheduler(logger, jobs.NewSyncJob(runner, ingest.Options{}, logger), nil, 10*time.Millisecond, 0)

	require.NoError(t, scheduler.Start())
	assert.True(t, scheduler.IsRunning())
	assert.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())
	stopped := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runner.calls.Load())

	scheduler.TriggerSync()
	assert.Equal(t, stopped, runner.calls.Load())
}

func TestSchedulerTriggerSync(t *testing.T) {
	runner := &countingRunner{}
	logger := testsupport.GetLogger()
	scheduler := jobs.NewScheduler(logger, jobs.NewSyncJob(runner, ingest.Options{}, logger), nil, time.Hour, 0)

	scheduler.TriggerSync()
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestLedgerCleanupForgetsMissingFiles(t *testing.T) {
	dbm, logger := testsupport.SetupTestDBManager(t)
	db := dbm.GetConnection()
	dir := t.TempDir()
	present := testsupport.WriteReport(t, dir, "awstats012024.example.com.txt", time.Now(), testsupport.GeneralSection(1))

	servers := []config.Server{
		{ID: 1, Name: "web1", Directory: dir},
		{ID: 2, Name: "web2", Directory: filepath.Join(dir, "unmounted")},
	}
	now := time.Now()
	require.NoError(t, ledger.Record(db, filepath.Base(present), 1, ingest.KindSummary, now))
	require.NoError(t, ledger.Record(db, "awstats122023.example.com.txt", 1, ingest.KindSummary, now))
	require.NoError(t, ledger.Record(db, "awstats122023.example.com.txt", 1, ingest.KindURLs, now))
	require.NoError(t, ledger.Record(db, "awstats122023.example.com.txt", 2, ingest.KindURLs, now))

	job := jobs.NewLedgerCleanupJob(dbm, logger, servers)
	require.NoError(t, job.Run(context.Background()))

	remaining, err := ledger.ListForServer(db, 1)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, filepath.Base(present), remaining[0].Filename)

	kept, err := ledger.ListForServer(db, 2)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestRestoredFileAfterCleanupIsCountedOnce(t *testing.T) {
	dbm, logger := testsupport.SetupTestDBManager(t)
	db := dbm.GetConnection()
	dir := t.TempDir()
	servers := []config.Server{{ID: 1, Name: "web1", Directory: dir}}
	modTime := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	path := testsupport.WriteReport(t, dir, "awstats012024.example.com.txt", modTime,
		testsupport.GeneralSection(1),
		testsupport.DaySection("20240101 1 1 1 1"),
		testsupport.SiderSection("/wiki/A 10 100 1 1"))
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	engine := ingest.NewEngine(dbm, logger, ingest.EngineConfig{
		Servers:    servers,
		Normalizer: urls.NewNormalizer(urls.DefaultStripPrefix),
		Policy:     urls.NewDenylist(nil),
	})
	_, err = engine.Run(context.Background(), ingest.Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	require.NoError(t, jobs.NewLedgerCleanupJob(dbm, logger, servers).Run(context.Background()))
	entry, err := ledger.Get(db, "awstats012024.example.com.txt", 1, ingest.KindURLs)
	require.NoError(t, err)
	require.Nil(t, entry)

	require.NoError(t, os.WriteFile(path, content, 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	summary, err := engine.Run(context.Background(), ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	site, err := websites.GetWebsiteByName(db, "example.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 10}, testsupport.URLStatsByPath(db, site.ID))
}
