// Package analytics provides the aggregate statistics models and the write and query
// functions used when reconciling report files into the store.
//
// The package is organized into focused modules:
//   - analytics.go: Aggregate table model definitions
//   - summary.go: Monthly and daily rollups (overwrite upserts)
//   - url_stats.go: Per-URL counters (additive upserts, scoped deletes, orphan cleanup)
//   - reports.go: Read queries behind the report and status commands
package analytics

import (
	"time"

	"github.com/bahaipedia/server-scripts/internal/websites"
)

// Summary is one rollup row per (website, server, year, month, day). Day 0 is the
// monthly row and only carries UniqueVisitors; days 1..31 carry the traffic counters.
type Summary struct {
	ID             uint  `gorm:"primaryKey;autoIncrement"`
	WebsiteID      uint  `gorm:"uniqueIndex:idx_summary_unique,priority:1;not null"`
	ServerID       uint  `gorm:"uniqueIndex:idx_summary_unique,priority:2;not null"`
	Year           int   `gorm:"uniqueIndex:idx_summary_unique,priority:3;not null"`
	Month          int   `gorm:"uniqueIndex:idx_summary_unique,priority:4;not null"`
	Day            int   `gorm:"uniqueIndex:idx_summary_unique,priority:5;not null"`
	UniqueVisitors int64 `gorm:"not null;default:0"`
	NumberOfVisits int64 `gorm:"not null;default:0"`
	Pages          int64 `gorm:"not null;default:0"`
	Hits           int64 `gorm:"not null;default:0"`
	Bandwidth      int64 `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Website *websites.Website `gorm:"constraint:OnDelete:CASCADE"`
}

func (Summary) TableName() string {
	return "summary"
}

// URLStat holds the per-URL counters of one (url, server, year, month). Counters
// accumulate across report deliveries.
type URLStat struct {
	ID           uint  `gorm:"primaryKey;autoIncrement"`
	WebsiteURLID uint  `gorm:"uniqueIndex:idx_url_stat_unique,priority:1;not null"`
	ServerID     uint  `gorm:"uniqueIndex:idx_url_stat_unique,priority:2;not null;index"`
	Year         int   `gorm:"uniqueIndex:idx_url_stat_unique,priority:3;not null"`
	Month        int   `gorm:"uniqueIndex:idx_url_stat_unique,priority:4;not null"`
	Hits         int64 `gorm:"not null;default:0"`
	EntryCount   int64 `gorm:"not null;default:0"`
	ExitCount    int64 `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	WebsiteURL *websites.WebsiteURL `gorm:"constraint:OnDelete:CASCADE"`
}

func (URLStat) TableName() string {
	return "website_url_stats"
}
