package database

import "gorm.io/gorm"

// registerMigrations declares the linear migration list. IDs sort
// lexicographically, which is the application order.
func registerMigrations(mm *MigrationManager) error {
	migrations := []*Migration{
		{
			ID:          "001_initial_schema",
			Description: "Create video_files and scan_sessions tables with query indexes",
			Up: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&VideoFile{}, &ScanSession{}); err != nil {
					return err
				}
				// AutoMigrate builds the indexes declared on the models,
				// including the composite (width, height) one; the statement
				// below guarantees that index idempotently.
				return tx.Exec(
					"CREATE INDEX IF NOT EXISTS idx_video_files_dimensions ON video_files(width, height)",
				).Error
			},
			Down: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&VideoFile{}, &ScanSession{})
			},
		},
		{
			ID:          "002_add_file_hash",
			Description: "Add file_hash, is_corrupted, corruption_details columns and file_hash index",
			Up: func(tx *gorm.DB) error {
				migrator := tx.Migrator()
				for _, column := range []string{"file_hash", "is_corrupted", "corruption_details"} {
					if !migrator.HasColumn(&VideoFile{}, column) {
						if err := migrator.AddColumn(&VideoFile{}, column); err != nil {
							return err
						}
					}
				}
				return tx.Exec(
					"CREATE INDEX IF NOT EXISTS idx_video_files_file_hash ON video_files(file_hash)",
				).Error
			},
			Down: func(tx *gorm.DB) error {
				migrator := tx.Migrator()
				for _, column := range []string{"file_hash", "is_corrupted", "corruption_details"} {
					if migrator.HasColumn(&VideoFile{}, column) {
						if err := migrator.DropColumn(&VideoFile{}, column); err != nil {
							return err
						}
					}
				}
				return nil
			},
		},
	}

	for _, migration := range migrations {
		if err := mm.RegisterMigration(migration); err != nil {
			return err
		}
	}
	return nil
}
