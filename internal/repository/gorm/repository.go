package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roimonitor/internal/models"
	"roimonitor/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Daily prices ------------------------------------------------------------

func (s *Store) UpsertAssetPrices(ctx context.Context, items []models.AssetPriceDaily) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"close",
			"source",
			"updated_at",
		}),
	}).CreateInBatches(items, 200).Error
}

func (s *Store) ListAssetPrices(ctx context.Context, symbols []string, start, end time.Time) ([]models.AssetPriceDaily, error) {
	if s == nil || s.db == nil || len(symbols) == 0 {
		return nil, nil
	}
	var items []models.AssetPriceDaily
	err := s.db.WithContext(ctx).
		Where("symbol IN ?", symbols).
		Where("date >= ? AND date <= ?", start, end).
		Order("symbol asc, date asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAssetPriceDates(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var dates []time.Time
	err := s.db.WithContext(ctx).
		Model(&models.AssetPriceDaily{}).
		Where("symbol = ?", symbol).
		Where("date >= ? AND date <= ?", start, end).
		Order("date asc").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// --- Allocation history -------------------------------------------------------

func (s *Store) UpsertAllocationSnapshot(ctx context.Context, item *models.AllocationSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "portfolio_key"}, {Name: "as_of_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"items",
			"cash_weight",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListAllocationSnapshots(ctx context.Context, portfolioKey string) ([]models.AllocationSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.AllocationSnapshot
	err := s.db.WithContext(ctx).
		Where("portfolio_key = ?", portfolioKey).
		Order("as_of_date asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- NAV series ----------------------------------------------------------------

func (s *Store) UpsertPerformancePoints(ctx context.Context, items []models.PerformanceSeries) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "series_type"}, {Name: "portfolio_key"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"daily_return",
			"updated_at",
		}),
	}).CreateInBatches(items, 200).Error
}

func (s *Store) ListPerformanceSeries(ctx context.Context, params repository.ListSeriesParams) ([]models.PerformanceSeries, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Where("series_type = ?", params.SeriesType).
		Where("portfolio_key = ?", params.PortfolioKey)
	if params.From != nil {
		query = query.Where("date >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("date <= ?", *params.To)
	}
	var items []models.PerformanceSeries
	if err := query.Order("date asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Dashboard snapshots ---------------------------------------------------------

func (s *Store) GetDashboardSnapshot(ctx context.Context, scope, portfolioKey string) (*models.RoiDashboardSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.RoiDashboardSnapshot
	err := s.db.WithContext(ctx).
		Where("scope = ? AND portfolio_key = ?", scope, portfolioKey).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListDashboardSnapshots(ctx context.Context, params repository.ListDashboardsParams) ([]models.RoiDashboardSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	scope := params.Scope
	if scope == "" {
		scope = models.ScopePortfolio
	}
	query := s.db.WithContext(ctx).Where("scope = ?", scope)
	if params.OnlyDirty {
		query = query.Where("needs_recompute = ?", true)
	}
	if params.PortfolioKey != "" {
		query = query.Where("portfolio_key = ?", params.PortfolioKey)
	}
	var items []models.RoiDashboardSnapshot
	// Oldest-updated first so starved portfolios get recomputed eventually.
	if err := query.Order("updated_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveDashboardSnapshot(ctx context.Context, item *models.RoiDashboardSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) MarkDashboardDirty(ctx context.Context, portfolioKey string, recomputeFrom time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	existing, err := s.GetDashboardSnapshot(ctx, models.ScopePortfolio, portfolioKey)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.db.WithContext(ctx).Create(&models.RoiDashboardSnapshot{
			Scope:             models.ScopePortfolio,
			PortfolioKey:      portfolioKey,
			NeedsRecompute:    true,
			RecomputeFromDate: &recomputeFrom,
		}).Error
	}
	existing.NeedsRecompute = true
	// Keep the low-water mark: never move the recompute window forward.
	if existing.RecomputeFromDate == nil || recomputeFrom.Before(*existing.RecomputeFromDate) {
		existing.RecomputeFromDate = &recomputeFrom
	}
	return s.SaveDashboardSnapshot(ctx, existing)
}

// --- Job lock -----------------------------------------------------------------

func (s *Store) CreateJobLock(ctx context.Context, item *models.RoiDashboardSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Scope = models.ScopeJobLock
	item.PortfolioKey = models.JobLockKey
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetJobLock(ctx context.Context) (*models.RoiDashboardSnapshot, error) {
	return s.GetDashboardSnapshot(ctx, models.ScopeJobLock, models.JobLockKey)
}

func (s *Store) SaveJobLock(ctx context.Context, item *models.RoiDashboardSnapshot) error {
	return s.SaveDashboardSnapshot(ctx, item)
}

func (s *Store) DeleteJobLock(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("scope = ? AND portfolio_key = ?", models.ScopeJobLock, models.JobLockKey).
		Delete(&models.RoiDashboardSnapshot{}).Error
}

// --- System settings -------------------------------------------------------------

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}
