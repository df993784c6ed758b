package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/models"
)

var DB *gorm.DB

// Initialize opens the sqlite database at dbPath and migrates the schema
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects and migrates without touching the package-level handle.
// Tests use it with "file::memory:".
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	applog.L().Info("Database connected successfully")

	// Remove duplicate observations before the unique index is created
	if err := cleanupDuplicateObservations(db); err != nil {
		return nil, fmt.Errorf("failed to clean up observations: %w", err)
	}

	if err := db.AutoMigrate(&models.FloorPriceObservation{}, &models.PortfolioValueSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	applog.L().Info("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
