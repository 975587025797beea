package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager around a test database
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager for db
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// allModels returns all statsync models for migration
func allModels() []any {
	return []any{
		&websites.Website{},
		&websites.WebsiteURL{},
		&analytics.Summary{},
		&analytics.URLStat{},
		&ledger.Entry{},
	}
}

// SetupTestDB creates a test database with all statsync models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Use root test name so subtests share their parent's database
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	// A single connection keeps the shared in-memory database alive and serializes writers
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testsupport: failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		_ = sqlDB.Close()
	})

	return db
}

// SetupTestDBManager creates a test DB manager and a quiet logger
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestWebsite creates a test website in the database
func CreateTestWebsite(db *gorm.DB, name string) websites.Website {
	var website websites.Website
	if db.Where("name = ?", name).First(&website).Error != nil {
		website = websites.Website{Name: name, CreatedAt: time.Now().UTC()}
		db.Create(&website)
	}
	return website
}

// CreateTestWebsiteURL creates a URL row for a website
func CreateTestWebsiteURL(db *gorm.DB, websiteID uint, url string) websites.WebsiteURL {
	row := websites.WebsiteURL{WebsiteID: websiteID, URL: url, CreatedAt: time.Now().UTC()}
	db.Omit("Website").Create(&row)
	return row
}

// URLStatsByPath returns the summed hits per URL of a website, across servers and periods
func URLStatsByPath(db *gorm.DB, websiteID uint) map[string]int64 {
	var rows []struct {
		URL  string
		Hits int64
	}
	db.Table("website_url_stats AS s").
		Select("u.url AS url, SUM(s.hits) AS hits").
		Joins("JOIN website_url AS u ON u.id = s.website_url_id").
		Where("u.website_id = ?", websiteID).
		Group("u.url").
		Scan(&rows)

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.URL] = r.Hits
	}
	return out
}

// CountRows returns the row count of a table
func CountRows(db *gorm.DB, table string) int64 {
	var count int64
	db.Table(table).Count(&count)
	return count
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
