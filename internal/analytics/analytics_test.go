package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/testsupport"
)

func TestUpsertMonthlyUniqueOverwrites(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestWebsite(db, "example.com")

	require.NoError(t, analytics.UpsertMonthlyUnique(db, site.ID, 1, 2024, 1, 100))
	require.NoError(t, analytics.UpsertMonthlyUnique(db, site.ID, 1, 2024, 1, 150))

	var rows []analytics.Summary
	require.NoError(t, db.Where("website_id = ?", site.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].Day)
	assert.Equal(t, int64(150), rows[0].UniqueVisitors)
}

func TestUpsertDailyOverwrites(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestWebsite(db, "example.com")

	require.NoError(t, analytics.UpsertDaily(db, site.ID, 1, []analytics.DailyTotals{
		{Year: 2024, Month: 1, Day: 1, Visits: 4, Pages: 10, Hits: 20, Bandwidth: 300},
		{Year: 2024, Month: 1, Day: 2, Visits: 5, Pages: 11, Hits: 21, Bandwidth: 301},
	}))
	require.NoError(t, analytics.UpsertDaily(db, site.ID, 1, []analytics.DailyTotals{
		{Year: 2024, Month: 1, Day: 2, Visits: 6, Pages: 12, Hits: 22, Bandwidth: 302},
	}))
	require.NoError(t, analytics.UpsertDaily(db, site.ID, 2, []analytics.DailyTotals{
		{Year: 2024, Month: 1, Day: 2, Visits: 1, Pages: 1, Hits: 1, Bandwidth: 1},
	}))

	var day2 analytics.Summary
	require.NoError(t, db.Where("website_id = ? AND server_id = 1 AND day = 2", site.ID).First(&day2).Error)
	assert.Equal(t, int64(6), day2.NumberOfVisits)
	assert.Equal(t, int64(12), day2.Pages)
	assert.Equal(t, int64(302), day2.Bandwidth)

	assert.Equal(t, int64(3), testsupport.CountRows(db, "summary"))
}

func TestDailyUpsertKeepsMonthlyUnique(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestWebsite(db, "example.com")

	require.NoError(t, analytics.UpsertMonthlyUnique(db, site.ID, 1, 2024, 3, 77))
	require.NoError(t, analytics.UpsertDaily(db, site.ID, 1, []analytics.DailyTotals{{Year: 2024, Month: 3, Day: 5, Pages: 3}}))

	rollups, err := analytics.GetMonthlyRollups(db, site.ID, 2024, 3)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, int64(77), rollups[0].UniqueVisitors)
	assert.Equal(t, int64(3), rollups[0].Pages)
	assert.Equal(t, int64(1), rollups[0].Days)
}

func TestAddURLStatsIsAdditive(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestWebsite(db, "example.com")
	page := testsupport.CreateTestWebsiteURL(db, site.ID, "Main Page")

	require.NoError(t, analytics.AddURLStats(db, page.ID, 1, 2024, 1, analytics.URLCounters{Hits: 10, Entries: 2, Exits: 1}))
	require.NoError(t, analytics.AddURLStats(db, page.ID, 1, 2024, 1, analytics.URLCounters{Hits: 5, Entries: 1, Exits: 1}))

	var stat analytics.URLStat
	require.NoError(t, db.Where("website_url_id = ?", page.ID).First(&stat).Error)
	assert.Equal(t, int64(15), stat.Hits)
	assert.Equal(t, int64(3), stat.EntryCount)
	assert.Equal(t, int64(2), stat.ExitCount)
	assert.Equal(t, int64(1), testsupport.CountRows(db, "website_url_stats"))
}

func TestURLStatRequiresExistingURL(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	err := analytics.AddURLStats(db, 9999, 1, 2024, 1, analytics.URLCounters{Hits: 1})
	assert.Error(t, err)
}

func TestDeleteURLStatsScopes(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	a := testsupport.CreateTestWebsite(db, "a.example")
	b := testsupport.CreateTestWebsite(db, "b.example")
	aPage := testsupport.CreateTestWebsiteURL(db, a.ID, "Page")
	bPage := testsupport.CreateTestWebsiteURL(db, b.ID, "Page")

	seed := func() {
		testsupport.CleanAllTables(db)
		a = testsupport.CreateTestWebsite(db, "a.example")
		b = testsupport.CreateTestWebsite(db, "b.example")
		aPage = testsupport.CreateTestWebsiteURL(db, a.ID, "Page")
		bPage = testsupport.CreateTestWebsiteURL(db, b.ID, "Page")
		for _, id := range []uint{aPage.ID, bPage.ID} {
			for _, server := range []uint{1, 2} {
				require.NoError(t, analytics.AddURLStats(db, id, server, 2024, 1, analytics.URLCounters{Hits: 1}))
				require.NoError(t, analytics.AddURLStats(db, id, server, 2024, 2, analytics.URLCounters{Hits: 1}))
			}
		}
	}
	server1 := uint(1)

	cases := []struct {
		name    string
		scope   func() analytics.URLStatScope
		deleted int64
	}{
		{"website server period", func() analytics.URLStatScope {
			return analytics.URLStatScope{WebsiteID: &a.ID, ServerID: &server1, Year: 2024, Month: 1}
		}, 1},
		{"website period", func() analytics.URLStatScope {
			return analytics.URLStatScope{WebsiteID: &a.ID, Year: 2024, Month: 2}
		}, 2},
		{"website", func() analytics.URLStatScope { return analytics.URLStatScope{WebsiteID: &a.ID} }, 4},
		{"server", func() analytics.URLStatScope { return analytics.URLStatScope{ServerID: &server1} }, 4},
		{"everything", func() analytics.URLStatScope { return analytics.URLStatScope{} }, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seed()
			deleted, err := analytics.DeleteURLStats(db, tc.scope())
			require.NoError(t, err)
			assert.Equal(t, tc.deleted, deleted)
			assert.Equal(t, 8-tc.deleted, testsupport.CountRows(db, "website_url_stats"))
		})
	}
}

func TestDeleteOrphanURLs(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	a := testsupport.CreateTestWebsite(db, "a.example")
	b := testsupport.CreateTestWebsite(db, "b.example")
	used := testsupport.CreateTestWebsiteURL(db, a.ID, "Used")
	testsupport.CreateTestWebsiteURL(db, a.ID, "Orphan")
	testsupport.CreateTestWebsiteURL(db, b.ID, "Orphan elsewhere")
	require.NoError(t, analytics.AddURLStats(db, used.ID, 1, 2024, 1, analytics.URLCounters{Hits: 1}))

	deleted, err := analytics.DeleteOrphanURLs(db, &a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, int64(2), testsupport.CountRows(db, "website_url"))

	deleted, err = analytics.DeleteOrphanURLs(db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, int64(1), testsupport.CountRows(db, "website_url"))
}

func TestGetTopURLsAndCounts(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestWebsite(db, "example.com")
	main := testsupport.CreateTestWebsiteURL(db, site.ID, "Main Page")
	history := testsupport.CreateTestWebsiteURL(db, site.ID, "History")

	require.NoError(t, analytics.AddURLStats(db, main.ID, 1, 2024, 1, analytics.URLCounters{Hits: 10, Entries: 4}))
	require.NoError(t, analytics.AddURLStats(db, main.ID, 2, 2024, 1, analytics.URLCounters{Hits: 5, Entries: 1}))
	require.NoError(t, analytics.AddURLStats(db, history.ID, 1, 2024, 1, analytics.URLCounters{Hits: 7}))
	require.NoError(t, analytics.AddURLStats(db, history.ID, 1, 2024, 2, analytics.URLCounters{Hits: 100}))

	top, err := analytics.GetTopURLs(db, site.ID, 2024, 1, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, analytics.URLTotal{URL: "Main Page", Hits: 15, Entries: 5}, top[0])
	assert.Equal(t, int64(7), top[1].Hits)

	yearly, err := analytics.GetTopURLs(db, site.ID, 2024, 0, 1)
	require.NoError(t, err)
	require.Len(t, yearly, 1)
	assert.Equal(t, "History", yearly[0].URL)

	counts, err := analytics.CountRows(db)
	require.NoError(t, err)
	assert.Equal(t, analytics.RowCounts{Websites: 1, WebsiteURLs: 2, URLStats: 4}, counts)
}
