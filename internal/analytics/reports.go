package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// ServerMonth is the monthly rollup of one server for one website.
type ServerMonth struct {
	ServerID       uint
	Year           int
	Month          int
	UniqueVisitors int64
	Visits         int64
	Pages          int64
	Hits           int64
	Bandwidth      int64
	Days           int64
}

// URLTotal is a URL's counters summed over servers.
type URLTotal struct {
	URL     string
	Hits    int64
	Entries int64
	Exits   int64
}

// RowCounts reports the number of rows in the aggregate tables.
type RowCounts struct {
	Websites    int64
	WebsiteURLs int64
	Summaries   int64
	URLStats    int64
}

// GetMonthlyRollups returns per-server totals of a website for a year, optionally
// narrowed to one month (month 0 means the whole year).
func GetMonthlyRollups(db *gorm.DB, websiteID uint, year, month int) ([]ServerMonth, error) {
	q := db.Model(&Summary{}).
		Select(`server_id, year, month,
			COALESCE(SUM(CASE WHEN day = 0 THEN unique_visitors ELSE 0 END), 0) AS unique_visitors,
			COALESCE(SUM(number_of_visits), 0) AS visits,
			COALESCE(SUM(pages), 0) AS pages,
			COALESCE(SUM(hits), 0) AS hits,
			COALESCE(SUM(bandwidth), 0) AS bandwidth,
			SUM(CASE WHEN day > 0 THEN 1 ELSE 0 END) AS days`).
		Where("website_id = ? AND year = ?", websiteID, year)
	if month != 0 {
		q = q.Where("month = ?", month)
	}

	var rows []ServerMonth
	if err := q.Group("server_id, year, month").Order("year, month, server_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query monthly rollups: %w", err)
	}
	return rows, nil
}

// GetTopURLs returns the most visited URLs of a website for a period, summed over
// servers.
func GetTopURLs(db *gorm.DB, websiteID uint, year, month, limit int) ([]URLTotal, error) {
	q := db.Table("website_url_stats AS s").
		Select("u.url AS url, SUM(s.hits) AS hits, SUM(s.entry_count) AS entries, SUM(s.exit_count) AS exits").
		Joins("JOIN website_url AS u ON u.id = s.website_url_id").
		Where("u.website_id = ? AND s.year = ?", websiteID, year)
	if month != 0 {
		q = q.Where("s.month = ?", month)
	}

	var rows []URLTotal
	err := q.Group("u.url").Order("hits DESC, url").Limit(limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query top urls: %w", err)
	}
	return rows, nil
}

// CountRows counts rows in every aggregate table.
func CountRows(db *gorm.DB) (RowCounts, error) {
	var counts RowCounts
	targets := []struct {
		table string
		dest  *int64
	}{
		{"websites", &counts.Websites},
		{"website_url", &counts.WebsiteURLs},
		{"summary", &counts.Summaries},
		{"website_url_stats", &counts.URLStats},
	}
	for _, target := range targets {
		if err := db.Table(target.table).Count(target.dest).Error; err != nil {
			return RowCounts{}, fmt.Errorf("failed to count %s: %w", target.table, err)
		}
	}
	return counts, nil
}
