package ingest

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/awstats"
	"github.com/bahaipedia/server-scripts/internal/database"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/models"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

// PurgeTarget selects the per-URL data to remove. Set exactly one of Website, Server,
// File or All; File may be combined with Server to limit it to one scope.
type PurgeTarget struct {
	Website string
	Server  *uint
	File    string
	All     bool
}

// PurgeResult counts what a purge removed.
type PurgeResult struct {
	Stats         int64
	URLs          int64
	LedgerEntries int64
}

// Purge removes per-URL stats for the target, garbage-collects the URLs left without
// stats and forgets the matching urls ledger entries, all in one transaction. The next
// run then adds each file's counters exactly once.
func Purge(db Connector, logger *slog.Logger, prefix string, target PurgeTarget) (*PurgeResult, error) {
	if prefix == "" {
		prefix = awstats.DefaultPrefix
	}
	if err := target.validate(); err != nil {
		return nil, err
	}

	var (
		statScope   analytics.URLStatScope
		ledgerScope = ledger.Scope{Kind: KindURLs}
		siteName    string
	)
	switch {
	case target.All:
	case target.File != "":
		name, err := awstats.ParseFilenameWithPrefix(target.File, prefix)
		if err != nil {
			return nil, err
		}
		siteName = name.Site
		statScope.Year = name.Year
		statScope.Month = name.Month
		statScope.ServerID = target.Server
		ledgerScope.Filename = target.File
		ledgerScope.ServerID = target.Server
	case target.Website != "":
		siteName = target.Website
		ledgerScope.Site = target.Website
		ledgerScope.SiteOf = func(filename string) (string, error) {
			return awstats.SiteFromFilename(filename, prefix)
		}
	case target.Server != nil:
		statScope.ServerID = target.Server
		ledgerScope.ServerID = target.Server
	}

	result := &PurgeResult{}
	err := models.PerformWrite(logger, db.GetConnection(), func(tx *gorm.DB) error {
		*result = PurgeResult{}

		var websiteID *uint
		if siteName != "" {
			site, err := websites.GetWebsiteByName(tx, siteName)
			var notFound *websites.WebsiteNotFoundError
			switch {
			case errors.As(err, &notFound):
				// Nothing stored for the site yet; still forget its ledger entries.
				n, err := ledger.Forget(tx, ledgerScope)
				result.LedgerEntries = n
				return err
			case err != nil:
				return err
			}
			websiteID = &site.ID
			statScope.WebsiteID = websiteID
		}

		var err error
		if result.Stats, err = analytics.DeleteURLStats(tx, statScope); err != nil {
			return err
		}
		if result.URLs, err = analytics.DeleteOrphanURLs(tx, websiteID); err != nil {
			return err
		}
		result.LedgerEntries, err = ledger.Forget(tx, ledgerScope)
		return err
	})
	if err != nil {
		return nil, &database.StoreError{Op: "purge url stats", Err: err}
	}

	logger.Info("Purged url stats",
		slog.String("website", siteName),
		slog.Int64("stats_deleted", result.Stats),
		slog.Int64("urls_deleted", result.URLs),
		slog.Int64("ledger_entries_forgotten", result.LedgerEntries))
	return result, nil
}

func (t PurgeTarget) validate() error {
	set := 0
	if t.All {
		set++
	}
	if t.Website != "" {
		set++
	}
	if t.File != "" {
		set++
	}
	if t.Server != nil && t.File == "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("purge needs exactly one of website, server, file or all")
	}
	return nil
}
