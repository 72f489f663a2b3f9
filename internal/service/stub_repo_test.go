package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"roimonitor/internal/models"
	"roimonitor/internal/perf"
	"roimonitor/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Write operations mirror the store's upsert-by-natural-key semantics so the
// services can be exercised without a database.
type stubRepo struct {
	mu sync.Mutex

	prices     map[string]models.AssetPriceDaily      // symbol|date
	allocs     map[string]models.AllocationSnapshot   // portfolio|date
	series     map[string]models.PerformanceSeries    // type|portfolio|date
	dashboards map[string]models.RoiDashboardSnapshot // scope|portfolio
	settings   map[string]models.SystemSetting
	lock       *models.RoiDashboardSnapshot

	// lockSaves records every SaveJobLock payload, steal attempts included.
	lockSaves []models.RoiDashboardSnapshot
	// allocErr fails ListAllocationSnapshots for one portfolio.
	allocErr map[string]error
	// createLockErrs is a queue of forced CreateJobLock results, one per call.
	createLockErrs []error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		prices:     map[string]models.AssetPriceDaily{},
		allocs:     map[string]models.AllocationSnapshot{},
		series:     map[string]models.PerformanceSeries{},
		dashboards: map[string]models.RoiDashboardSnapshot{},
		settings:   map[string]models.SystemSetting{},
		allocErr:   map[string]error{},
	}
}

func (s *stubRepo) UpsertAssetPrices(ctx context.Context, items []models.AssetPriceDaily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.prices[item.Symbol+"|"+perf.DateKey(item.Date)] = item
	}
	return nil
}

func (s *stubRepo) ListAssetPrices(ctx context.Context, symbols []string, start, end time.Time) ([]models.AssetPriceDaily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]struct{}{}
	for _, sym := range symbols {
		wanted[sym] = struct{}{}
	}
	var out []models.AssetPriceDaily
	for _, row := range s.prices {
		if _, ok := wanted[row.Symbol]; !ok {
			continue
		}
		if row.Date.Before(perf.DateOnly(start)) || row.Date.After(perf.DateOnly(end)) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *stubRepo) ListAssetPriceDates(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	rows, err := s.ListAssetPrices(ctx, []string{symbol}, start, end)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, row.Date)
	}
	return dates, nil
}

func (s *stubRepo) UpsertAllocationSnapshot(ctx context.Context, item *models.AllocationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocs[item.PortfolioKey+"|"+perf.DateKey(item.AsOfDate)] = *item
	return nil
}

func (s *stubRepo) ListAllocationSnapshots(ctx context.Context, portfolioKey string) ([]models.AllocationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.allocErr[portfolioKey]; err != nil {
		return nil, err
	}
	var out []models.AllocationSnapshot
	for _, snap := range s.allocs {
		if snap.PortfolioKey == portfolioKey {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsOfDate.Before(out[j].AsOfDate) })
	return out, nil
}

func (s *stubRepo) UpsertPerformancePoints(ctx context.Context, items []models.PerformanceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.series[item.SeriesType+"|"+item.PortfolioKey+"|"+perf.DateKey(item.Date)] = item
	}
	return nil
}

func (s *stubRepo) ListPerformanceSeries(ctx context.Context, params repository.ListSeriesParams) ([]models.PerformanceSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PerformanceSeries
	for _, row := range s.series {
		if params.SeriesType != "" && row.SeriesType != params.SeriesType {
			continue
		}
		if params.PortfolioKey != "" && row.PortfolioKey != params.PortfolioKey {
			continue
		}
		if params.From != nil && row.Date.Before(perf.DateOnly(*params.From)) {
			continue
		}
		if params.To != nil && row.Date.After(perf.DateOnly(*params.To)) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *stubRepo) GetDashboardSnapshot(ctx context.Context, scope, portfolioKey string) (*models.RoiDashboardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.dashboards[scope+"|"+portfolioKey]
	if !ok {
		return nil, nil
	}
	copied := snap
	return &copied, nil
}

func (s *stubRepo) ListDashboardSnapshots(ctx context.Context, params repository.ListDashboardsParams) ([]models.RoiDashboardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RoiDashboardSnapshot
	for _, snap := range s.dashboards {
		if snap.Scope != params.Scope {
			continue
		}
		if params.OnlyDirty && !snap.NeedsRecompute {
			continue
		}
		if params.PortfolioKey != "" && snap.PortfolioKey != params.PortfolioKey {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortfolioKey < out[j].PortfolioKey })
	return out, nil
}

func (s *stubRepo) SaveDashboardSnapshot(ctx context.Context, item *models.RoiDashboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.UpdatedAt = time.Now().UTC()
	s.dashboards[item.Scope+"|"+item.PortfolioKey] = *item
	return nil
}

func (s *stubRepo) MarkDashboardDirty(ctx context.Context, portfolioKey string, recomputeFrom time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.ScopePortfolio + "|" + portfolioKey
	snap, ok := s.dashboards[key]
	if !ok {
		snap = models.RoiDashboardSnapshot{Scope: models.ScopePortfolio, PortfolioKey: portfolioKey}
	}
	snap.NeedsRecompute = true
	from := perf.DateOnly(recomputeFrom)
	if snap.RecomputeFromDate == nil || from.Before(*snap.RecomputeFromDate) {
		snap.RecomputeFromDate = &from
	}
	snap.UpdatedAt = time.Now().UTC()
	s.dashboards[key] = snap
	return nil
}

func (s *stubRepo) CreateJobLock(ctx context.Context, item *models.RoiDashboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.createLockErrs) > 0 {
		err := s.createLockErrs[0]
		s.createLockErrs = s.createLockErrs[1:]
		return err
	}
	if s.lock != nil {
		return gorm.ErrDuplicatedKey
	}
	copied := *item
	copied.Scope = models.ScopeJobLock
	copied.PortfolioKey = models.JobLockKey
	copied.UpdatedAt = time.Now().UTC()
	s.lock = &copied
	return nil
}

func (s *stubRepo) GetJobLock(ctx context.Context) (*models.RoiDashboardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		return nil, nil
	}
	copied := *s.lock
	return &copied, nil
}

func (s *stubRepo) SaveJobLock(ctx context.Context, item *models.RoiDashboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.lock = &copied
	s.lockSaves = append(s.lockSaves, copied)
	return nil
}

func (s *stubRepo) DeleteJobLock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock = nil
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	copied := setting
	return &copied, nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[item.Key] = *item
	return nil
}

func (s *stubRepo) seriesFor(portfolioKey string) []models.PerformanceSeries {
	out, _ := s.ListPerformanceSeries(context.Background(), repository.ListSeriesParams{
		SeriesType:   models.SeriesTypeModelNAV,
		PortfolioKey: portfolioKey,
	})
	return out
}

func (s *stubRepo) dashboard(portfolioKey string) *models.RoiDashboardSnapshot {
	snap, _ := s.GetDashboardSnapshot(context.Background(), models.ScopePortfolio, portfolioKey)
	return snap
}
