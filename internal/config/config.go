// Package config provides configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/karloscodes/cartridge"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase   = "sqlite"
	MySQLDatabase    = "mysql"
	PostgresDatabase = "postgres"
)

// URL filter modes
const (
	FilterAllowlist = "allowlist"
	FilterDenylist  = "denylist"
)

// configFileName is looked up under the XDG config directories when no explicit path is given.
const configFileName = "statsync/config.yaml"

// Server is one scope: a directory of report files delivered by a single origin server.
type Server struct {
	ID        uint   `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Directory string `mapstructure:"directory"`
}

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabasePath         string `mapstructure:"storagepath"`
	DatabaseName         string `mapstructure:"-"` // Derived from other settings
	DatabaseDSN          string `mapstructure:"dbdsn"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Report discovery
	Servers      []Server `mapstructure:"servers"`
	ReportPrefix string   `mapstructure:"reportprefix"`

	// URL filtering
	FilterMode  string `mapstructure:"filtermode"`
	IgnoreFile  string `mapstructure:"ignorefile"`
	StripPrefix string `mapstructure:"stripprefix"`

	// External validity source (MediaWiki)
	MediaWikiAPIURL         string `mapstructure:"mediawikiapiurl"`
	MediaWikiTimeoutSeconds int    `mapstructure:"mediawikitimeoutseconds"`
	MediaWikiMaxPages       int    `mapstructure:"mediawikimaxpages"`
	ValidPagesTTLMinutes    int    `mapstructure:"validpagesttlminutes"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// defaultServers mirrors the directories the report generator writes to on each host.
func defaultServers() []map[string]any {
	return []map[string]any{
		{"id": 1, "name": "local", "directory": "/var/lib/awstats"},
		{"id": 2, "name": "frankfurt", "directory": "/home/private/server_stats/frankfurt"},
		{"id": 3, "name": "singapore", "directory": "/home/private/server_stats/singapore"},
		{"id": 4, "name": "saopaulo", "directory": "/home/private/server_stats/saopaulo"},
	}
}

// GetConfig returns the application configuration, loading it on first use.
// Invalid configuration is fatal here; commands that want to report it call Load instead.
func GetConfig() *Config {
	once.Do(func() {
		loaded, err := Load("")
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	})
	return cfg
}

// SetConfig installs an already loaded configuration as the process-wide one.
func SetConfig(c *Config) {
	once.Do(func() {})
	cfg = c
}

// Load reads defaults, the optional config file and STATSYNC_* environment variables.
// An empty path searches the XDG config directories for statsync/config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("appname", "statsync")
	v.SetDefault("environment", Production)
	v.SetDefault("loglevel", string(LogLevelInfo))
	v.SetDefault("logsdir", "")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("dbtype", SQLiteDatabase)
	v.SetDefault("storagepath", "storage")
	v.SetDefault("dbdsn", "")
	v.SetDefault("dbmaxopenconns", 0)
	v.SetDefault("dbmaxidleconns", 0)
	v.SetDefault("servers", defaultServers())
	v.SetDefault("reportprefix", "awstats")
	v.SetDefault("filtermode", FilterDenylist)
	v.SetDefault("ignorefile", "ignore_urls.txt")
	v.SetDefault("stripprefix", "wiki/")
	v.SetDefault("mediawikiapiurl", "https://%s/api.php")
	v.SetDefault("mediawikitimeoutseconds", 30)
	v.SetDefault("mediawikimaxpages", 10000)
	v.SetDefault("validpagesttlminutes", 1440)
	v.SetDefault("jobintervalseconds", 3600)

	v.BindEnv("appname", "STATSYNC_APP_NAME")
	v.BindEnv("environment", "STATSYNC_ENV")
	v.BindEnv("loglevel", "STATSYNC_LOG_LEVEL")
	v.BindEnv("logsdir", "STATSYNC_LOGS_DIR")
	v.BindEnv("logsmaxsizeinmb", "STATSYNC_LOGS_MAX_SIZE_IN_MB")
	v.BindEnv("logsmaxbackups", "STATSYNC_LOGS_MAX_BACKUPS")
	v.BindEnv("logsmaxageindays", "STATSYNC_LOGS_MAX_AGE_IN_DAYS")
	v.BindEnv("dbtype", "STATSYNC_DB_TYPE")
	v.BindEnv("storagepath", "STATSYNC_STORAGE_PATH")
	v.BindEnv("dbdsn", "STATSYNC_DB_DSN")
	v.BindEnv("dbmaxopenconns", "STATSYNC_DB_MAX_OPEN_CONNS")
	v.BindEnv("dbmaxidleconns", "STATSYNC_DB_MAX_IDLE_CONNS")
	v.BindEnv("reportprefix", "STATSYNC_REPORT_PREFIX")
	v.BindEnv("filtermode", "STATSYNC_FILTER_MODE")
	v.BindEnv("ignorefile", "STATSYNC_IGNORE_FILE")
	v.BindEnv("stripprefix", "STATSYNC_STRIP_PREFIX")
	v.BindEnv("mediawikiapiurl", "STATSYNC_MEDIAWIKI_API_URL")
	v.BindEnv("mediawikitimeoutseconds", "STATSYNC_MEDIAWIKI_TIMEOUT_SECONDS")
	v.BindEnv("mediawikimaxpages", "STATSYNC_MEDIAWIKI_MAX_PAGES")
	v.BindEnv("validpagesttlminutes", "STATSYNC_VALID_PAGES_TTL_MINUTES")
	v.BindEnv("jobintervalseconds", "STATSYNC_JOB_INTERVAL_SECONDS")

	if path == "" {
		if found, err := xdg.SearchConfigFile(configFileName); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c.DatabaseName = c.GetDatabasePath()
	return c, nil
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase:   true,
		MySQLDatabase:    true,
		PostgresDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}
	if c.DatabaseType != SQLiteDatabase && c.DatabaseDSN == "" {
		return fmt.Errorf("database type %s requires dbdsn", c.DatabaseType)
	}

	if err := ValidateFilterMode(c.FilterMode); err != nil {
		return err
	}

	if c.ReportPrefix == "" {
		return errors.New("reportprefix cannot be empty")
	}
	if !strings.Contains(c.MediaWikiAPIURL, "%s") {
		return fmt.Errorf("mediawikiapiurl must contain %%s for the site name: %s", c.MediaWikiAPIURL)
	}

	seenIDs := make(map[uint]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.ID == 0 {
			return fmt.Errorf("server %q has no id", s.Name)
		}
		if s.Directory == "" {
			return fmt.Errorf("server %q has no directory", s.Name)
		}
		if seenIDs[s.ID] {
			return fmt.Errorf("duplicate server id: %d", s.ID)
		}
		seenIDs[s.ID] = true
	}

	return nil
}

// ValidateFilterMode reports whether mode names a supported URL filter.
func ValidateFilterMode(mode string) error {
	switch mode {
	case FilterAllowlist, FilterDenylist:
		return nil
	default:
		return fmt.Errorf("invalid filter mode: %s (want %s or %s)", mode, FilterAllowlist, FilterDenylist)
	}
}

// GetDatabasePath returns the sqlite database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// SelectServers returns the configured servers matching filter.
func (c *Config) SelectServers(filter string) ([]Server, error) {
	return FilterServers(c.Servers, filter)
}

// FilterServers returns the servers whose name or directory contains filter.
// An empty filter selects every server.
func FilterServers(servers []Server, filter string) ([]Server, error) {
	if filter == "" {
		return servers, nil
	}
	var selected []Server
	for _, s := range servers {
		if strings.Contains(s.Name, filter) || strings.Contains(s.Directory, filter) {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no server matches %q", filter)
	}
	return selected, nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise 1: runs are sequential.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	return 1
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	return 1
}

// GetAppName returns the application name.
func (c *Config) GetAppName() string {
	return c.AppName
}

// GetLogLevel returns the log level as a string.
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory.
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB.
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups.
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files.
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// statsync serves no HTTP; the three getters below only complete cartridge.Config.

func (c *Config) GetPort() string {
	return ""
}

func (c *Config) GetPublicDirectory() string {
	return ""
}

func (c *Config) GetAssetsPrefix() string {
	return ""
}

var (
	_ cartridge.Config            = (*Config)(nil)
	_ cartridge.LogConfigProvider = (*Config)(nil)
)

// ResolveIgnoreFile returns the ignore file path; relative paths are resolved against the
// directory of the running executable when the file is not found in the working directory.
func (c *Config) ResolveIgnoreFile() string {
	if c.IgnoreFile == "" || filepath.IsAbs(c.IgnoreFile) {
		return c.IgnoreFile
	}
	if _, err := os.Stat(c.IgnoreFile); err == nil {
		return c.IgnoreFile
	}
	exe, err := os.Executable()
	if err != nil {
		return c.IgnoreFile
	}
	return filepath.Join(filepath.Dir(exe), c.IgnoreFile)
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
