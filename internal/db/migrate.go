package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/zulandar/tracker/internal/models"
)

// AllModels returns every gorm model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Issue{},
		&models.Sprint{},
		&models.AuditEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// OpenMemory returns a migrated in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := ConnectSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
