package ingest

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/awstats"
	"github.com/bahaipedia/server-scripts/internal/database"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/models"
	"github.com/bahaipedia/server-scripts/internal/urls"
	"github.com/bahaipedia/server-scripts/internal/validpages"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

// urlRow is the merged contribution of every raw token that normalizes to path.
type urlRow struct {
	path     string
	counters analytics.URLCounters
}

// ingestURLs adds the per-URL counters of the file. A report file is the only source of
// its (site, server, month), so that scope is cleared first whether or not the ledger
// remembers the file. Counters are therefore never added twice, even after the ledger
// entry was forgotten.
func (e *Engine) ingestURLs(ctx context.Context, u unit) (int, int, error) {
	if err := u.index.Require(awstats.SectionSider); err != nil {
		return 0, 0, err
	}
	offset, _ := u.index.Offset(awstats.SectionSider)
	records, err := awstats.DecodeSider(u.src, offset)
	if err != nil {
		return 0, 0, err
	}

	filter, err := e.policy.ForSite(ctx, u.name.Site)
	if err != nil {
		var fetchErr *validpages.FetchError
		if !errors.As(err, &fetchErr) {
			err = &validpages.FetchError{Site: u.name.Site, Err: err}
		}
		return 0, 0, err
	}

	rows, dropped := e.filterURLs(records, filter)

	var seed []string
	if e.seeds != nil && !e.seeds.Seeded(u.name.Site) {
		seed = filter.Seed()
	}

	err = models.PerformWrite(u.logger, e.db.GetConnection(), func(tx *gorm.DB) error {
		site, err := websites.GetOrCreateWebsite(tx, u.name.Site)
		if err != nil {
			return err
		}

		if len(seed) > 0 {
			inserted, err := websites.SeedWebsiteURLs(tx, site.ID, seed)
			if err != nil {
				return err
			}
			u.logger.Info("Seeded valid pages", slog.String("site", site.Name), slog.Int64("inserted", inserted))
		}

		if err := clearMonth(tx, u, site.ID); err != nil {
			return err
		}

		for _, row := range rows {
			siteURL, err := websites.GetOrCreateWebsiteURL(tx, site.ID, row.path)
			if err != nil {
				return err
			}
			if err := analytics.AddURLStats(tx, siteURL.ID, u.server.ID, u.name.Year, u.name.Month, row.counters); err != nil {
				return err
			}
		}
		return ledger.Record(tx, u.file.Name, u.server.ID, KindURLs, u.file.ModTime)
	})
	if err != nil {
		return 0, 0, &database.StoreError{Op: "write url stats", Err: err}
	}

	if e.seeds != nil && seed != nil {
		e.seeds.MarkSeeded(u.name.Site)
	}
	return len(rows), dropped, nil
}

// filterURLs normalizes and filters the decoded rows, merging rows that end up on the
// same path. Paths keep the order of their first occurrence.
func (e *Engine) filterURLs(records []awstats.URLRecord, filter urls.SiteFilter) ([]urlRow, int) {
	var (
		rows    []urlRow
		byPath  = make(map[string]int)
		dropped int
	)
	for _, r := range records {
		path := e.normalizer.Normalize(r.Path)
		if !filter.Keep(r.Path, path) {
			dropped++
			continue
		}
		i, ok := byPath[path]
		if !ok {
			i = len(rows)
			byPath[path] = i
			rows = append(rows, urlRow{path: path})
		}
		rows[i].counters.Hits += r.Pages
		rows[i].counters.Entries += r.Entries
		rows[i].counters.Exits += r.Exits
	}
	return rows, dropped
}

func clearMonth(tx *gorm.DB, u unit, websiteID uint) error {
	serverID := u.server.ID
	deleted, err := analytics.DeleteURLStats(tx, analytics.URLStatScope{
		WebsiteID: &websiteID,
		ServerID:  &serverID,
		Year:      u.name.Year,
		Month:     u.name.Month,
	})
	if err != nil {
		return err
	}
	// A first ingestion has nothing to replace; seeded pages stay until a replay.
	if deleted == 0 {
		return nil
	}
	orphans, err := analytics.DeleteOrphanURLs(tx, &websiteID)
	if err != nil {
		return err
	}
	u.logger.Debug("Cleared previous url stats",
		slog.Int64("stats_deleted", deleted),
		slog.Int64("urls_deleted", orphans))
	return nil
}
