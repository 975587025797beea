package ingest

import (
	"io"
	"log/slog"

	"gorm.io/gorm"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/awstats"
	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/database"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/models"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

// unit is one opened report file about to be ingested for one kind.
type unit struct {
	server config.Server
	file   ReportFile
	name   awstats.ReportName
	index  awstats.Index
	src    io.ReadSeeker
	logger *slog.Logger
}

// ingestSummary overwrites the monthly and daily rollups of the file.
func (e *Engine) ingestSummary(u unit) (int, error) {
	if err := u.index.Require(awstats.SectionGeneral, awstats.SectionDay); err != nil {
		return 0, err
	}

	generalOffset, _ := u.index.Offset(awstats.SectionGeneral)
	uniqueVisitors, err := awstats.DecodeGeneral(u.src, generalOffset)
	if err != nil {
		return 0, err
	}
	dayOffset, _ := u.index.Offset(awstats.SectionDay)
	records, err := awstats.DecodeDays(u.src, dayOffset)
	if err != nil {
		return 0, err
	}

	days := make([]analytics.DailyTotals, 0, len(records))
	for _, r := range records {
		days = append(days, analytics.DailyTotals{
			Year:      r.Year,
			Month:     r.Month,
			Day:       r.Day,
			Visits:    r.Visits,
			Pages:     r.Pages,
			Hits:      r.Hits,
			Bandwidth: r.Bandwidth,
		})
	}

	rows := len(days)
	if uniqueVisitors != nil {
		rows++
	}
	err = models.PerformWrite(u.logger, e.db.GetConnection(), func(tx *gorm.DB) error {
		site, err := websites.GetOrCreateWebsite(tx, u.name.Site)
		if err != nil {
			return err
		}
		if uniqueVisitors != nil {
			if err := analytics.UpsertMonthlyUnique(tx, site.ID, u.server.ID, u.name.Year, u.name.Month, *uniqueVisitors); err != nil {
				return err
			}
		}
		if err := analytics.UpsertDaily(tx, site.ID, u.server.ID, days); err != nil {
			return err
		}
		return ledger.Record(tx, u.file.Name, u.server.ID, KindSummary, u.file.ModTime)
	})
	if err != nil {
		return 0, &database.StoreError{Op: "write summary", Err: err}
	}
	return rows, nil
}
