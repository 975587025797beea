package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var summaryKey = []clause.Column{
	{Name: "website_id"},
	{Name: "server_id"},
	{Name: "year"},
	{Name: "month"},
	{Name: "day"},
}

// DailyTotals are the traffic counters of one day.
type DailyTotals struct {
	Year      int
	Month     int
	Day       int
	Visits    int64
	Pages     int64
	Hits      int64
	Bandwidth int64
}

// UpsertMonthlyUnique writes the day-0 row of a month, replacing any previous
// unique-visitor count.
func UpsertMonthlyUnique(tx *gorm.DB, websiteID, serverID uint, year, month int, uniqueVisitors int64) error {
	now := time.Now().UTC()
	row := Summary{
		WebsiteID:      websiteID,
		ServerID:       serverID,
		Year:           year,
		Month:          month,
		Day:            0,
		UniqueVisitors: uniqueVisitors,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   summaryKey,
		DoUpdates: clause.AssignmentColumns([]string{"unique_visitors", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert monthly summary %04d-%02d: %w", year, month, err)
	}
	return nil
}

// UpsertDaily writes one row per day, replacing the counters of rows that already exist.
// The unique-visitor column of existing rows is left alone.
func UpsertDaily(tx *gorm.DB, websiteID, serverID uint, days []DailyTotals) error {
	if len(days) == 0 {
		return nil
	}

	// A date listed twice keeps its last row; one statement cannot update a row twice.
	latest := make(map[[3]int]int, len(days))
	for i, d := range days {
		latest[[3]int{d.Year, d.Month, d.Day}] = i
	}

	now := time.Now().UTC()
	rows := make([]Summary, 0, len(latest))
	for i, d := range days {
		if latest[[3]int{d.Year, d.Month, d.Day}] != i {
			continue
		}
		rows = append(rows, Summary{
			WebsiteID:      websiteID,
			ServerID:       serverID,
			Year:           d.Year,
			Month:          d.Month,
			Day:            d.Day,
			NumberOfVisits: d.Visits,
			Pages:          d.Pages,
			Hits:           d.Hits,
			Bandwidth:      d.Bandwidth,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   summaryKey,
		DoUpdates: clause.AssignmentColumns([]string{"number_of_visits", "pages", "hits", "bandwidth", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d daily summaries: %w", len(rows), err)
	}
	return nil
}
