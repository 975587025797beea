package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahaipedia/server-scripts/internal/awstats"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/testsupport"
)

const reportFile = "awstats012024.example.com.txt"

func TestShouldSkip(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	modTime := time.Date(2024, 2, 1, 3, 4, 5, 0, time.UTC)

	skip, err := ledger.ShouldSkip(db, reportFile, 1, "summary", modTime, false)
	require.NoError(t, err)
	assert.False(t, skip, "unknown files are processed")

	require.NoError(t, ledger.Record(db, reportFile, 1, "summary", modTime))

	t.Run("same mtime is skipped", func(t *testing.T) {
		skip, err := ledger.ShouldSkip(db, reportFile, 1, "summary", modTime, false)
		require.NoError(t, err)
		assert.True(t, skip)
	})

	t.Run("sub-second difference is ignored", func(t *testing.T) {
		skip, err := ledger.ShouldSkip(db, reportFile, 1, "summary", modTime.Add(400*time.Millisecond), false)
		require.NoError(t, err)
		assert.True(t, skip)
	})

	t.Run("force always processes", func(t *testing.T) {
		skip, err := ledger.ShouldSkip(db, reportFile, 1, "summary", modTime, true)
		require.NoError(t, err)
		assert.False(t, skip)
	})

	t.Run("changed mtime is processed", func(t *testing.T) {
		skip, err := ledger.ShouldSkip(db, reportFile, 1, "summary", modTime.Add(time.Minute), false)
		require.NoError(t, err)
		assert.False(t, skip)
	})

	t.Run("kinds are independent", func(t *testing.T) {
		skip, err := ledger.ShouldSkip(db, reportFile, 1, "urls", modTime, false)
		require.NoError(t, err)
		assert.False(t, skip)
	})

	t.Run("servers are independent", func(t *testing.T) {
		skip, err := ledger.ShouldSkip(db, reportFile, 2, "summary", modTime, false)
		require.NoError(t, err)
		assert.False(t, skip)
	})
}

func TestRecordUpserts(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	first := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	require.NoError(t, ledger.Record(db, reportFile, 1, "urls", first))
	require.NoError(t, ledger.Record(db, reportFile, 1, "urls", second))

	entry, err := ledger.Get(db, reportFile, 1, "urls")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, second, entry.ModifiedAt())
	assert.False(t, entry.ProcessedAt.IsZero())

	count, err := ledger.Count(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	missing, err := ledger.Get(db, "awstats022024.example.com.txt", 1, "urls")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestForget(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	modTime := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	server2 := uint(2)
	siteOf := func(filename string) (string, error) {
		return awstats.SiteFromFilename(filename, awstats.DefaultPrefix)
	}

	seed := func() {
		testsupport.CleanAllTables(db)
		for _, name := range []string{
			reportFile,
			"awstats022024.example.com.txt",
			"awstats012024.other.example.txt",
			"awstats012024.en.example.com.txt",
		} {
			for _, server := range []uint{1, 2} {
				for _, kind := range []string{"summary", "urls"} {
					require.NoError(t, ledger.Record(db, name, server, kind, modTime))
				}
			}
		}
	}

	cases := []struct {
		name      string
		scope     ledger.Scope
		forgotten int64
	}{
		{"kind", ledger.Scope{Kind: "urls"}, 8},
		{"kind and server", ledger.Scope{Kind: "urls", ServerID: &server2}, 4},
		{"kind and file", ledger.Scope{Kind: "urls", Filename: reportFile}, 2},
		{"kind and site", ledger.Scope{Kind: "urls", Site: "example.com", SiteOf: siteOf}, 4},
		{"subdomain site", ledger.Scope{Kind: "urls", Site: "en.example.com", SiteOf: siteOf}, 2},
		{"site and server", ledger.Scope{Kind: "urls", ServerID: &server2, Site: "example.com", SiteOf: siteOf}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seed()
			n, err := ledger.Forget(db, tc.scope)
			require.NoError(t, err)
			assert.Equal(t, tc.forgotten, n)
		})
	}

	t.Run("site without parser", func(t *testing.T) {
		seed()
		_, err := ledger.Forget(db, ledger.Scope{Site: "example.com"})
		assert.Error(t, err)
	})
}

func TestListAndDeleteEntries(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	modTime := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Record(db, "b.txt", 1, "summary", modTime))
	require.NoError(t, ledger.Record(db, "a.txt", 1, "summary", modTime))
	require.NoError(t, ledger.Record(db, "c.txt", 2, "summary", modTime))

	entries, err := ledger.ListForServer(db, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Filename)

	deleted, err := ledger.DeleteEntries(db, []uint{entries[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recent, err := ledger.ListRecent(db, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
