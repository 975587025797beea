package database

import (
	"fmt"
	"log/slog"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/ledger"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

// AllModels returns every table owned by statsync, parents first.
func AllModels() []any {
	return []any{
		&websites.Website{},
		&websites.WebsiteURL{},
		&analytics.Summary{},
		&analytics.URLStat{},
		&ledger.Entry{},
	}
}

// DBManager owns the store connection. SQLite goes through cartridge's sqlite.Manager;
// MySQL and PostgreSQL are opened directly with their gorm drivers.
type DBManager struct {
	cfg    *config.Config
	logger *slog.Logger
	sqlite *sqlite.Manager
	db     *gorm.DB
}

// NewDBManager creates a database manager for the configured store type.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	dm := &DBManager{cfg: cfg, logger: logger}
	if cfg.DatabaseType == config.SQLiteDatabase {
		dm.sqlite = sqlite.NewManager(sqlite.Config{
			Path:         cfg.DatabaseName,
			MaxOpenConns: cfg.GetMaxOpenConns(),
			MaxIdleConns: cfg.GetMaxIdleConns(),
			Logger:       logger,
			EnableWAL:    true,
			TxImmediate:  true,
			BusyTimeout:  5000,
		})
	}
	return dm
}

// Init initializes the database connection.
func (dm *DBManager) Init() error {
	switch dm.cfg.DatabaseType {
	case config.SQLiteDatabase:
		if _, err := dm.sqlite.Connect(); err != nil {
			return &StoreError{Op: "connect sqlite", Err: err}
		}
		dm.db = dm.sqlite.GetConnection()
	case config.MySQLDatabase:
		dsn, err := mysqlDSN(dm.cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		if dm.db, err = dm.open(mysql.Open(dsn)); err != nil {
			return &StoreError{Op: "connect mysql", Err: err}
		}
	case config.PostgresDatabase:
		var err error
		if dm.db, err = dm.open(postgres.Open(dm.cfg.DatabaseDSN)); err != nil {
			return &StoreError{Op: "connect postgres", Err: err}
		}
	default:
		return fmt.Errorf("unsupported database type %q", dm.cfg.DatabaseType)
	}

	dm.logger.Debug("Database connected", slog.String("type", dm.cfg.DatabaseType))
	return nil
}

// GetConnection returns the gorm handle; nil before Init.
func (dm *DBManager) GetConnection() *gorm.DB {
	return dm.db
}

// MigrateDatabase creates or updates every table and unique index.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	// Run migrations in a transaction
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(AllModels()...)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return &StoreError{Op: "migrate", Err: err}
	}

	if dm.sqlite != nil {
		if err := dm.sqlite.CheckpointWAL("FULL"); err != nil {
			dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
		}
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}

// Close releases the underlying connection pool.
func (dm *DBManager) Close() error {
	if dm.db == nil {
		return nil
	}
	sqlDB, err := dm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (dm *DBManager) open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger(dm.cfg.LogLevel)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(dm.cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(dm.cfg.GetMaxIdleConns())
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// mysqlDSN forces the options the models rely on: parsed UTC timestamps and utf8mb4.
func mysqlDSN(raw string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

func gormLogger(level config.LogLevel) logger.Interface {
	if level == config.LogLevelDebug {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}
