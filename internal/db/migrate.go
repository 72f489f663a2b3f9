package db

import (
	"roimonitor/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.AssetPriceDaily{},
		&models.AllocationSnapshot{},
		&models.PerformanceSeries{},
		&models.RoiDashboardSnapshot{},
		&models.SystemSetting{},
	)
}
