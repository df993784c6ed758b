package database

import (
	"gorm.io/gorm"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
)

// cleanupDuplicateObservations removes duplicate floor_price_observations rows
// before the unique constraint is added. Runs BEFORE AutoMigrate.
func cleanupDuplicateObservations(db *gorm.DB) error {
	if !db.Migrator().HasTable("floor_price_observations") {
		return nil
	}

	// Normalize legacy rows recorded before the source column existed
	if db.Migrator().HasColumn("floor_price_observations", "source") {
		result := db.Exec(`UPDATE floor_price_observations SET source = 'moralis' WHERE source IS NULL OR source = ''`)
		if result.Error != nil {
			applog.L().Warnf("Warning: failed to normalize observation sources: %v", result.Error)
		}
	}

	// Keep the newest row per (collection, observed_at, source)
	result := db.Exec(`
		DELETE FROM floor_price_observations
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM floor_price_observations
			GROUP BY collection, observed_at, source
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		applog.L().Infof("Cleaned up %d duplicate floor_price_observations entries", result.RowsAffected)
	}
	return nil
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	return migrateSnapshotWallets(db)
}

// migrateSnapshotWallets lowercases wallet addresses so lookups match the
// normalized form used by the API. Safe to run repeatedly.
func migrateSnapshotWallets(db *gorm.DB) error {
	if !db.Migrator().HasColumn("portfolio_value_snapshots", "wallet") {
		return nil
	}
	result := db.Exec(`UPDATE portfolio_value_snapshots SET wallet = LOWER(wallet) WHERE wallet != LOWER(wallet)`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		applog.L().Infof("Normalized wallet address on %d snapshots", result.RowsAffected)
	}
	return nil
}
