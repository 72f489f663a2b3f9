package repository

import (
	"context"
	"time"

	"roimonitor/internal/models"
)

type ListDashboardsParams struct {
	Scope        string
	OnlyDirty    bool
	PortfolioKey string
}

type ListSeriesParams struct {
	SeriesType   string
	PortfolioKey string
	From         *time.Time
	To           *time.Time
}

// Repository is the persistence surface of the ROI pipeline. All write
// operations are idempotent upserts keyed by natural identity, so duplicate
// or concurrent writes converge on the same state.
type Repository interface {
	// Daily prices.
	UpsertAssetPrices(ctx context.Context, items []models.AssetPriceDaily) error
	ListAssetPrices(ctx context.Context, symbols []string, start, end time.Time) ([]models.AssetPriceDaily, error)
	ListAssetPriceDates(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error)

	// Allocation history (ordered by as_of_date ascending).
	UpsertAllocationSnapshot(ctx context.Context, item *models.AllocationSnapshot) error
	ListAllocationSnapshots(ctx context.Context, portfolioKey string) ([]models.AllocationSnapshot, error)

	// NAV series.
	UpsertPerformancePoints(ctx context.Context, items []models.PerformanceSeries) error
	ListPerformanceSeries(ctx context.Context, params ListSeriesParams) ([]models.PerformanceSeries, error)

	// Dashboard control/state records.
	GetDashboardSnapshot(ctx context.Context, scope, portfolioKey string) (*models.RoiDashboardSnapshot, error)
	ListDashboardSnapshots(ctx context.Context, params ListDashboardsParams) ([]models.RoiDashboardSnapshot, error)
	SaveDashboardSnapshot(ctx context.Context, item *models.RoiDashboardSnapshot) error
	MarkDashboardDirty(ctx context.Context, portfolioKey string, recomputeFrom time.Time) error

	// Distributed job lock (a reserved dashboard row; creation must surface
	// gorm.ErrDuplicatedKey when the lock is already held).
	CreateJobLock(ctx context.Context, item *models.RoiDashboardSnapshot) error
	GetJobLock(ctx context.Context) (*models.RoiDashboardSnapshot, error)
	SaveJobLock(ctx context.Context, item *models.RoiDashboardSnapshot) error
	DeleteJobLock(ctx context.Context) error

	// Runtime feature switches.
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
}
