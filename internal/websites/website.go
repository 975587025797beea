package websites

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedBatchSize bounds the rows per INSERT when seeding URLs.
const seedBatchSize = 500

// WebsiteNotFoundError represents an error when a website is not found
type WebsiteNotFoundError struct {
	Name string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found: %s", e.Name)
}

// NewWebsiteNotFoundError creates a new WebsiteNotFoundError
func NewWebsiteNotFoundError(name string) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{Name: name}
}

// Website is a site whose reports are ingested, e.g. "bahai.works".
type Website struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Website) TableName() string {
	return "websites"
}

// WebsiteURL is one canonical page path of a website.
type WebsiteURL struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID uint      `gorm:"not null;uniqueIndex:idx_website_url,priority:1" json:"website_id"`
	URL       string    `gorm:"size:512;not null;uniqueIndex:idx_website_url,priority:2" json:"url"`
	CreatedAt time.Time `json:"created_at"`

	Website *Website `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (WebsiteURL) TableName() string {
	return "website_url"
}

// GetOrCreateWebsite returns the website called name, creating it on first reference.
// A concurrent insert of the same name is absorbed by the unique index.
func GetOrCreateWebsite(tx *gorm.DB, name string) (*Website, error) {
	website, err := GetWebsiteByName(tx, name)
	if err == nil {
		return website, nil
	}
	var notFound *WebsiteNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	created := Website{Name: name, CreatedAt: time.Now().UTC()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to create website %s: %w", name, err)
	}
	if created.ID != 0 {
		return &created, nil
	}
	return GetWebsiteByName(tx, name)
}

// GetWebsiteByName retrieves a website by its exact name
func GetWebsiteByName(db *gorm.DB, name string) (*Website, error) {
	var website Website
	if err := db.Where("name = ?", name).First(&website).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewWebsiteNotFoundError(name)
		}
		return nil, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return &website, nil
}

// GetAllWebsites retrieves all websites ordered by name
func GetAllWebsites(db *gorm.DB) ([]Website, error) {
	var websites []Website
	if err := db.Order("name").Find(&websites).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return websites, nil
}

// GetOrCreateWebsiteURL returns the URL row for (websiteID, url), creating it lazily.
func GetOrCreateWebsiteURL(tx *gorm.DB, websiteID uint, url string) (*WebsiteURL, error) {
	var existing WebsiteURL
	err := tx.Where("website_id = ? AND url = ?", websiteID, url).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query website url: %w", err)
	}

	created := WebsiteURL{WebsiteID: websiteID, URL: url, CreatedAt: time.Now().UTC()}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to create website url %q: %w", url, err)
	}
	if created.ID != 0 {
		return &created, nil
	}

	if err := tx.Where("website_id = ? AND url = ?", websiteID, url).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to reload website url %q: %w", url, err)
	}
	return &existing, nil
}

// SeedWebsiteURLs inserts every url not yet known for the website and returns how many
// rows were new.
func SeedWebsiteURLs(tx *gorm.DB, websiteID uint, urls []string) (int64, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]WebsiteURL, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, WebsiteURL{WebsiteID: websiteID, URL: u, CreatedAt: now})
	}

	result := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, seedBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to seed website urls: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountWebsiteURLs returns how many URLs are stored for a website.
func CountWebsiteURLs(db *gorm.DB, websiteID uint) (int64, error) {
	var count int64
	if err := db.Model(&WebsiteURL{}).Where("website_id = ?", websiteID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count website urls: %w", err)
	}
	return count, nil
}
