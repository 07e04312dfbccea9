// Package database owns the on-disk catalog: schema, migrations, writes, the
// filtered query surface, and aggregate statistics.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotInitialized is returned when a Store method is called on a nil Store
// or on one whose database handle was never opened by New.
// Hitting it is a programming error, not a runtime condition.
var ErrNotInitialized = errors.New("database: store not initialized")

// Store is the catalog handle. Construct one at startup with New and pass it
// to every component that needs it; there is no package-level instance.
// Writes are serialized through writeMu; reads run concurrently.
type Store struct {
	db      *gorm.DB
	logger  hclog.Logger
	writeMu sync.Mutex
}

// New opens (or creates) the catalog database, applies connection pragmas,
// and runs pending migrations.
func New(cfg config.DatabaseConfig, logger hclog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logMode := gormlogger.Silent
	if cfg.LogQueries {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, logger: logger}

	if err := store.applyPragmas(cfg); err != nil {
		return nil, err
	}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	logger.Info("catalog database ready", "path", cfg.DatabasePath)
	return store, nil
}

// applyPragmas tunes the sqlite connection: WAL journaling, normal fsync,
// a generous page cache, and in-memory temp tables.
func (s *Store) applyPragmas(cfg config.DatabaseConfig) error {
	cacheKB := cfg.CacheSizeKB
	if cacheKB <= 0 {
		cacheKB = 65536
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheKB),
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := s.db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	mm, err := NewMigrationManager(s.db)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := registerMigrations(mm); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := mm.RunMigrations(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close flushes the WAL and closes the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	// Fold the WAL back into the main file so a copy of the .sqlite file is
	// self-contained.
	s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
