package database

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// MigrationFunc represents a database migration function
type MigrationFunc func(*gorm.DB) error

// Migration represents a database migration
type Migration struct {
	ID          string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// MigrationRecord represents a migration record in the database
type MigrationRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// MigrationManager handles database migrations. Migrations are applied in ID
// order, each inside its own transaction; re-running the manager is a no-op
// once the latest version is recorded.
type MigrationManager struct {
	db         *gorm.DB
	migrations map[string]*Migration
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *gorm.DB) (*MigrationManager, error) {
	mm := &MigrationManager{
		db:         db,
		migrations: make(map[string]*Migration),
	}

	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	return mm, nil
}

// RegisterMigration registers a new migration
func (mm *MigrationManager) RegisterMigration(migration *Migration) error {
	if migration.ID == "" {
		return fmt.Errorf("migration ID cannot be empty")
	}
	if migration.Up == nil {
		return fmt.Errorf("migration up function cannot be nil")
	}
	if _, exists := mm.migrations[migration.ID]; exists {
		return fmt.Errorf("migration with ID %s already exists", migration.ID)
	}

	mm.migrations[migration.ID] = migration
	return nil
}

// GetPendingMigrations returns migrations that haven't been applied, in ID order.
func (mm *MigrationManager) GetPendingMigrations() ([]*Migration, error) {
	var records []MigrationRecord
	if err := mm.db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]bool)
	for _, record := range records {
		applied[record.ID] = true
	}

	var pending []*Migration
	for _, migration := range mm.migrations {
		if !applied[migration.ID] {
			pending = append(pending, migration)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ID < pending[j].ID
	})

	return pending, nil
}

// RunMigrations executes all pending migrations
func (mm *MigrationManager) RunMigrations() error {
	pending, err := mm.GetPendingMigrations()
	if err != nil {
		return err
	}

	for _, migration := range pending {
		if err := mm.runMigration(migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.ID, err)
		}
	}

	return nil
}

// runMigration executes a migration in a transaction
func (mm *MigrationManager) runMigration(migration *Migration) error {
	return mm.db.Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return fmt.Errorf("migration function failed: %w", err)
		}

		record := MigrationRecord{
			ID:          migration.ID,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}

// AppliedCount returns how many migrations have been recorded.
func (mm *MigrationManager) AppliedCount() (int, error) {
	var count int64
	if err := mm.db.Model(&MigrationRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count applied migrations: %w", err)
	}
	return int(count), nil
}
