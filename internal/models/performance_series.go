package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const SeriesTypeModelNAV = "MODEL_NAV"

// PerformanceSeries holds one computed NAV index point per trading day.
// The recompute job upserts by (series_type, portfolio_key, date), so the
// whole series is safe to recompute and overwrite.
type PerformanceSeries struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	SeriesType   string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_performance_series_identity,priority:1"`
	PortfolioKey string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_performance_series_identity,priority:2"`
	Date         time.Time `gorm:"type:date;not null;uniqueIndex:idx_performance_series_identity,priority:3"`

	Value       decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	DailyReturn decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PerformanceSeries) TableName() string {
	return "performance_series"
}
