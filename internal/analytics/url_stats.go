package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bahaipedia/server-scripts/internal/websites"
)

// URLCounters is the contribution of one report row to a URL's monthly counters.
type URLCounters struct {
	Hits    int64
	Entries int64
	Exits   int64
}

// AddURLStats adds counters to the (url, server, year, month) row, creating it if
// needed. Calling it twice for the same report doubles the counters, so callers must
// clear the period first when replaying a report.
func AddURLStats(tx *gorm.DB, websiteURLID, serverID uint, year, month int, c URLCounters) error {
	now := time.Now().UTC()
	row := URLStat{
		WebsiteURLID: websiteURLID,
		ServerID:     serverID,
		Year:         year,
		Month:        month,
		Hits:         c.Hits,
		EntryCount:   c.Entries,
		ExitCount:    c.Exits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "website_url_id"}, {Name: "server_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"hits":        gorm.Expr("website_url_stats.hits + ?", c.Hits),
			"entry_count": gorm.Expr("website_url_stats.entry_count + ?", c.Entries),
			"exit_count":  gorm.Expr("website_url_stats.exit_count + ?", c.Exits),
			"updated_at":  now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to add url stats for url %d: %w", websiteURLID, err)
	}
	return nil
}

// URLStatScope restricts DeleteURLStats. Nil or zero fields match everything.
type URLStatScope struct {
	WebsiteID *uint
	ServerID  *uint
	Year      int
	Month     int
}

// DeleteURLStats removes the per-URL rows matching scope and returns how many went.
func DeleteURLStats(tx *gorm.DB, scope URLStatScope) (int64, error) {
	q := tx.Where("1 = 1")
	if scope.ServerID != nil {
		q = q.Where("server_id = ?", *scope.ServerID)
	}
	if scope.Year != 0 {
		q = q.Where("year = ?", scope.Year)
	}
	if scope.Month != 0 {
		q = q.Where("month = ?", scope.Month)
	}
	if scope.WebsiteID != nil {
		urlIDs := tx.Model(&websites.WebsiteURL{}).Select("id").Where("website_id = ?", *scope.WebsiteID)
		q = q.Where("website_url_id IN (?)", urlIDs)
	}

	result := q.Delete(&URLStat{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete url stats: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOrphanURLs removes URLs that no longer have any stats row. With a nil
// websiteID every website is swept.
func DeleteOrphanURLs(tx *gorm.DB, websiteID *uint) (int64, error) {
	query := "DELETE FROM website_url WHERE NOT EXISTS " +
		"(SELECT 1 FROM website_url_stats WHERE website_url_stats.website_url_id = website_url.id)"
	args := []interface{}{}
	if websiteID != nil {
		query += " AND website_id = ?"
		args = append(args, *websiteID)
	}

	result := tx.Exec(query, args...)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete orphan website urls: %w", result.Error)
	}
	return result.RowsAffected, nil
}
