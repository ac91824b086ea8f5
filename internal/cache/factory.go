package cache

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
)

// Backend names accepted by Config.Type.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config selects and configures a Store backend.
type Config struct {
	// Type is one of BackendMemory (default), BackendSQLite or BackendMySQL.
	Type string
	// Path is the sqlite database file.
	Path string
	// DSN is the mysql data source name.
	DSN string
	Options
}

// New builds the Store described by cfg.
func New(cfg Config, logger *log.Logger) (Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	switch cfg.Type {
	case "", BackendMemory:
		return NewMemoryStore(cfg.Options), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite cache requires a database path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		logger.Printf("cache: using sqlite database %s", cfg.Path)
		return NewDiskStore(sqlite.Open(cfg.Path), cfg.Options, logger)
	case BackendMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql cache requires a DSN")
		}
		logger.Println("cache: using mysql database")
		return NewDiskStore(mysql.Open(cfg.DSN), cfg.Options, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Type)
	}
}

// DefaultPath returns the sqlite cache location under the user's cache directory.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "orgstats", "cache.db")
}
