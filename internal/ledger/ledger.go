// Package ledger records which report files have been fully ingested, per server and
// report kind, so unchanged files are skipped on the next run.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry marks (filename, server, kind) as ingested at the file's modification time.
type Entry struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename string `gorm:"size:255;not null;uniqueIndex:idx_file_tracking,priority:1" json:"filename"`
	ServerID uint   `gorm:"not null;uniqueIndex:idx_file_tracking,priority:2;index" json:"server_id"`
	Kind     string `gorm:"size:32;not null;uniqueIndex:idx_file_tracking,priority:3" json:"kind"`
	// LastModified is the file mtime in whole Unix seconds.
	LastModified int64     `gorm:"not null" json:"last_modified"`
	ProcessedAt  time.Time `gorm:"not null" json:"processed_at"`
}

func (Entry) TableName() string {
	return "file_tracking"
}

// ModifiedAt returns LastModified as a UTC time.
func (e Entry) ModifiedAt() time.Time {
	return time.Unix(e.LastModified, 0).UTC()
}

// Matches reports whether the entry exists and was recorded for modTime.
func (e *Entry) Matches(modTime time.Time) bool {
	return e != nil && e.LastModified == Stamp(modTime)
}

// Stamp reduces a modification time to the whole-second value the ledger compares.
func Stamp(modTime time.Time) int64 {
	return modTime.Unix()
}

// Get returns the entry for (filename, serverID, kind), or nil when none exists.
func Get(db *gorm.DB, filename string, serverID uint, kind string) (*Entry, error) {
	var entry Entry
	err := db.Where("filename = ? AND server_id = ? AND kind = ?", filename, serverID, kind).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry for %s: %w", filename, err)
	}
	return &entry, nil
}

// ShouldSkip reports whether the file is already ingested at its current modification
// time. force always processes.
func ShouldSkip(db *gorm.DB, filename string, serverID uint, kind string, modTime time.Time, force bool) (bool, error) {
	if force {
		return false, nil
	}
	entry, err := Get(db, filename, serverID, kind)
	if err != nil {
		return false, err
	}
	return entry.Matches(modTime), nil
}

// Record upserts the entry with processed-at set to now. Run it in the same transaction
// as the writes it vouches for.
func Record(tx *gorm.DB, filename string, serverID uint, kind string, modTime time.Time) error {
	entry := Entry{
		Filename:     filename,
		ServerID:     serverID,
		Kind:         kind,
		LastModified: Stamp(modTime),
		ProcessedAt:  time.Now().UTC().Truncate(time.Second),
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filename"}, {Name: "server_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_modified", "processed_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to record ledger entry for %s: %w", filename, err)
	}
	return nil
}

// Scope selects entries to forget. Empty fields match everything.
type Scope struct {
	Kind     string
	ServerID *uint
	Filename string
	// Site matches filenames for which SiteOf returns exactly Site.
	Site   string
	SiteOf func(filename string) (string, error)
}

// Forget deletes the entries matching scope so the files are ingested again.
func Forget(tx *gorm.DB, scope Scope) (int64, error) {
	if scope.Site != "" {
		if scope.SiteOf == nil {
			return 0, fmt.Errorf("forgetting entries of site %s needs a filename parser", scope.Site)
		}
		return forgetSite(tx, scope)
	}

	q := tx.Where("1 = 1")
	if scope.Kind != "" {
		q = q.Where("kind = ?", scope.Kind)
	}
	if scope.ServerID != nil {
		q = q.Where("server_id = ?", *scope.ServerID)
	}
	if scope.Filename != "" {
		q = q.Where("filename = ?", scope.Filename)
	}

	result := q.Delete(&Entry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to forget ledger entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// forgetSite narrows candidates with LIKE, then keeps only filenames that parse to the
// exact site so "example.com" leaves "en.example.com" alone.
func forgetSite(tx *gorm.DB, scope Scope) (int64, error) {
	q := tx.Model(&Entry{}).Where("filename LIKE ?", "%"+scope.Site+".txt")
	if scope.Kind != "" {
		q = q.Where("kind = ?", scope.Kind)
	}
	if scope.ServerID != nil {
		q = q.Where("server_id = ?", *scope.ServerID)
	}

	var candidates []Entry
	if err := q.Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("failed to list ledger entries for %s: %w", scope.Site, err)
	}

	var ids []uint
	for _, entry := range candidates {
		site, err := scope.SiteOf(entry.Filename)
		if err == nil && site == scope.Site {
			ids = append(ids, entry.ID)
		}
	}
	return DeleteEntries(tx, ids)
}

// DeleteEntries removes entries by id.
func DeleteEntries(tx *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := tx.Where("id IN ?", ids).Delete(&Entry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete ledger entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListForServer returns every entry of one server ordered by filename.
func ListForServer(db *gorm.DB, serverID uint) ([]Entry, error) {
	var entries []Entry
	if err := db.Where("server_id = ?", serverID).Order("filename, kind").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// ListRecent returns the most recently processed entries.
func ListRecent(db *gorm.DB, limit int) ([]Entry, error) {
	var entries []Entry
	if err := db.Order("processed_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of ledger entries.
func Count(db *gorm.DB) (int64, error) {
	var count int64
	if err := db.Model(&Entry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}
