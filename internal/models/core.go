package models

import (
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// PerformWrite executes f inside one write transaction. On SQLite it delegates to
// cartridge's sqlite.PerformWrite, which retries while the database is busy; other
// dialects get a plain gorm transaction. Any error from f rolls everything back.
func PerformWrite(logger *slog.Logger, dbConn *gorm.DB, f func(tx *gorm.DB) error) error {
	if dbConn.Dialector.Name() == "sqlite" {
		return sqlite.PerformWrite(logger, dbConn, f)
	}
	return dbConn.Transaction(f)
}
