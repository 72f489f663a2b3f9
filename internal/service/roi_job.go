package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"roimonitor/internal/config"
	"roimonitor/internal/models"
	"roimonitor/internal/perf"
	"roimonitor/internal/repository"
	"roimonitor/internal/stream"
)

const SkipReasonLocked = "locked"

// lockPayload is the JSON body of the job lock row.
type lockPayload struct {
	RunID         string    `json:"runId"`
	PreviousRunID string    `json:"previousRunId,omitempty"`
	Trigger       string    `json:"trigger"`
	Holder        string    `json:"holder"`
	LockedAt      time.Time `json:"lockedAt"`
}

// RunOptions scope a job run. Zero value means "all dirty portfolios through
// today".
type RunOptions struct {
	Trigger      string
	PortfolioKey string
	IncludeClean bool
	From         *time.Time
	To           *time.Time
}

type PortfolioResult struct {
	PortfolioKey string `json:"portfolio_key"`
	Points       int    `json:"points"`
	DegradedDays int    `json:"degraded_days"`
	Error        string `json:"error,omitempty"`
}

type RunResult struct {
	RunID      string            `json:"run_id"`
	Skipped    string            `json:"skipped,omitempty"`
	Portfolios []PortfolioResult `json:"portfolios,omitempty"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// RoiJobService drives the recompute pipeline: select dirty portfolios under
// a durable mutual-exclusion lock, then per portfolio ingest prices, resolve
// gaps, compound the NAV index, persist the series and cache the metrics.
type RoiJobService struct {
	Repo   repository.Repository
	Ingest *PriceIngestService
	Config config.RoiJobConfig
	Logger *zap.Logger
	Events *stream.Hub

	// Now is overridable in tests; defaults to time.Now().UTC.
	Now func() time.Time
}

func (s *RoiJobService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RoiJobService) staleAfter() time.Duration {
	if s.Config.LockStaleAfter > 0 {
		return s.Config.LockStaleAfter
	}
	return 30 * time.Minute
}

func (s *RoiJobService) lookbackDays() int {
	if s.Config.PriceLookbackDays > 0 {
		return s.Config.PriceLookbackDays
	}
	return 2
}

// Run executes one full job run. Lock contention is not an error: the run
// returns immediately with Skipped="locked" and no shared state touched.
func (s *RoiJobService) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("roi job service not wired")
	}
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}

	acquired, err := s.acquireLock(ctx, result.RunID, opts.Trigger)
	if err != nil {
		return nil, err
	}
	if !acquired {
		result.Skipped = SkipReasonLocked
		result.FinishedAt = s.now()
		if s.Logger != nil {
			s.Logger.Info("roi job skipped, lock held", zap.String("run_id", result.RunID))
		}
		return result, nil
	}
	// Release unconditionally, on a fresh context so a cancelled run cannot
	// leave a permanent lock behind.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Repo.DeleteJobLock(releaseCtx); err != nil && s.Logger != nil {
			s.Logger.Error("roi job lock release failed", zap.String("run_id", result.RunID), zap.Error(err))
		}
	}()

	s.Events.Publish(stream.Event{Type: stream.EventJobStarted, RunID: result.RunID})

	snapshots, err := s.Repo.ListDashboardSnapshots(ctx, repository.ListDashboardsParams{
		Scope:        models.ScopePortfolio,
		OnlyDirty:    opts.PortfolioKey == "" && !opts.IncludeClean,
		PortfolioKey: opts.PortfolioKey,
	})
	if err != nil {
		result.FinishedAt = s.now()
		return result, fmt.Errorf("list dirty portfolios: %w", err)
	}

	for i := range snapshots {
		snap := snapshots[i]
		pr := s.processPortfolio(ctx, &snap, opts, result.RunID)
		result.Portfolios = append(result.Portfolios, pr)
		if pr.Error == "" {
			result.Succeeded++
			s.Events.Publish(stream.Event{
				Type:         stream.EventPortfolioRecomputed,
				PortfolioKey: pr.PortfolioKey,
				RunID:        result.RunID,
				Detail:       map[string]any{"points": pr.Points, "degraded_days": pr.DegradedDays},
			})
		} else {
			result.Failed++
			s.Events.Publish(stream.Event{
				Type:         stream.EventPortfolioFailed,
				PortfolioKey: pr.PortfolioKey,
				RunID:        result.RunID,
				Detail:       map[string]any{"error": pr.Error},
			})
		}
	}

	result.FinishedAt = s.now()
	if s.Logger != nil {
		s.Logger.Info("roi job finished",
			zap.String("run_id", result.RunID),
			zap.Int("portfolios", len(result.Portfolios)),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
	}
	s.Events.Publish(stream.Event{
		Type:   stream.EventJobFinished,
		RunID:  result.RunID,
		Detail: map[string]any{"succeeded": result.Succeeded, "failed": result.Failed},
	})
	return result, nil
}

// acquireLock creates the lock row, or steals a stale one. Returns false on
// live contention.
func (s *RoiJobService) acquireLock(ctx context.Context, runID, trigger string) (bool, error) {
	payload := lockPayload{
		RunID:    runID,
		Trigger:  trigger,
		Holder:   s.Config.Holder,
		LockedAt: s.now(),
	}
	raw, _ := json.Marshal(payload)

	err := s.Repo.CreateJobLock(ctx, &models.RoiDashboardSnapshot{Payload: datatypes.JSON(raw)})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, fmt.Errorf("create job lock: %w", err)
	}

	existing, err := s.Repo.GetJobLock(ctx)
	if err != nil {
		return false, fmt.Errorf("read held job lock: %w", err)
	}
	if existing == nil {
		// Holder released between our create and read; one more attempt.
		if err := s.Repo.CreateJobLock(ctx, &models.RoiDashboardSnapshot{Payload: datatypes.JSON(raw)}); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return false, nil
			}
			return false, fmt.Errorf("create job lock: %w", err)
		}
		return true, nil
	}

	if s.now().Sub(existing.UpdatedAt) < s.staleAfter() {
		return false, nil
	}

	// Stale holder: steal the lock, keeping the previous run id in the
	// payload for postmortems.
	var old lockPayload
	_ = json.Unmarshal(existing.Payload, &old)
	payload.PreviousRunID = old.RunID
	raw, _ = json.Marshal(payload)
	existing.Payload = datatypes.JSON(raw)
	existing.UpdatedAt = s.now()
	if err := s.Repo.SaveJobLock(ctx, existing); err != nil {
		return false, fmt.Errorf("steal stale job lock: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Warn("stole stale roi job lock",
			zap.String("run_id", runID),
			zap.String("previous_run_id", old.RunID),
			zap.Time("locked_at", old.LockedAt),
		)
	}
	return true, nil
}

// processPortfolio runs one portfolio's pipeline. Failures are contained:
// the portfolio stays dirty for the next run and the error is reported in
// the result, never propagated to the batch.
func (s *RoiJobService) processPortfolio(ctx context.Context, snap *models.RoiDashboardSnapshot, opts RunOptions, runID string) (result PortfolioResult) {
	result.PortfolioKey = snap.PortfolioKey
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic: %v", r)
			s.recordFailure(ctx, snap, result.Error)
		}
	}()

	if err := s.recompute(ctx, snap, opts, &result); err != nil {
		result.Error = err.Error()
		if s.Logger != nil {
			s.Logger.Error("portfolio recompute failed",
				zap.String("portfolio_key", snap.PortfolioKey),
				zap.String("run_id", runID),
				zap.Error(err),
			)
		}
		s.recordFailure(ctx, snap, result.Error)
	}
	return result
}

func (s *RoiJobService) recompute(ctx context.Context, snap *models.RoiDashboardSnapshot, opts RunOptions, result *PortfolioResult) error {
	allocs, err := s.Repo.ListAllocationSnapshots(ctx, snap.PortfolioKey)
	if err != nil {
		return fmt.Errorf("list allocations: %w", err)
	}
	if len(allocs) == 0 {
		// Nothing to compute; clear the flag so the portfolio is not retried
		// until an allocation actually exists.
		if s.Logger != nil {
			s.Logger.Info("portfolio has no allocation history, marking clean",
				zap.String("portfolio_key", snap.PortfolioKey))
		}
		return s.complete(ctx, snap, perf.Metrics{}, false)
	}

	// Recompute window: the low-water mark never moves past the earliest
	// allocation, so the NAV index is always rebuilt from inception.
	from := perf.DateOnly(allocs[0].AsOfDate)
	if snap.RecomputeFromDate != nil && snap.RecomputeFromDate.Before(from) {
		from = perf.DateOnly(*snap.RecomputeFromDate)
	}
	if opts.From != nil {
		from = perf.DateOnly(*opts.From)
	}
	to := perf.DateOnly(s.now())
	if opts.To != nil {
		to = perf.DateOnly(*opts.To)
	}
	// Pull extra days of history so the first computed day has a previous
	// close to diff against.
	ingestFrom := from.AddDate(0, 0, -s.lookbackDays())

	symbols := allocationSymbols(allocs)

	if _, err := s.Ingest.IngestDailyCloses(ctx, symbols, ingestFrom, to); err != nil {
		return fmt.Errorf("ingest prices: %w", err)
	}

	priceRows, err := s.Repo.ListAssetPrices(ctx, symbols, ingestFrom, to)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	rows := make([]perf.PriceRow, 0, len(priceRows))
	for _, r := range priceRows {
		rows = append(rows, perf.PriceRow{Symbol: r.Symbol, Date: r.Date, Close: r.Close})
	}

	dates := perf.DateRange(ingestFrom, to)
	resolved := perf.ResolvePrices(rows, dates)

	perfAllocs := make([]perf.Allocation, 0, len(allocs))
	for i := range allocs {
		items, err := allocs[i].DecodeItems()
		if err != nil {
			return fmt.Errorf("decode allocation %s: %w", perf.DateKey(allocs[i].AsOfDate), err)
		}
		perfAllocs = append(perfAllocs, perf.Allocation{
			AsOfDate: allocs[i].AsOfDate,
			Items:    items,
		})
	}

	points, degraded := perf.CompoundNAV(resolved, dates, perfAllocs)
	for _, day := range degraded {
		if s.Logger != nil {
			s.Logger.Warn("missing constituent prices, NAV carried flat",
				zap.String("portfolio_key", snap.PortfolioKey),
				zap.String("date", day.DateKey),
				zap.Strings("symbols", day.Missing),
			)
		}
	}

	seriesRows := make([]models.PerformanceSeries, 0, len(points))
	for _, p := range points {
		day, err := time.Parse(perf.DateKeyLayout, p.DateKey)
		if err != nil {
			continue
		}
		seriesRows = append(seriesRows, models.PerformanceSeries{
			SeriesType:   models.SeriesTypeModelNAV,
			PortfolioKey: snap.PortfolioKey,
			Date:         day,
			Value:        p.NAV,
			DailyReturn:  p.DailyReturn,
		})
	}
	if err := s.Repo.UpsertPerformancePoints(ctx, seriesRows); err != nil {
		return fmt.Errorf("persist series: %w", err)
	}

	result.Points = len(points)
	result.DegradedDays = len(degraded)

	return s.complete(ctx, snap, perf.ComputeMetrics(points), true)
}

// complete is the single logical completion update: clean flag, cleared
// low-water mark, cached metrics and computation timestamp together.
func (s *RoiJobService) complete(ctx context.Context, snap *models.RoiDashboardSnapshot, metrics perf.Metrics, hasMetrics bool) error {
	now := s.now()
	snap.NeedsRecompute = false
	snap.RecomputeFromDate = nil
	snap.LastComputedAt = &now
	snap.LastError = nil
	if hasMetrics && metrics.Ok {
		snap.RoiInception = &metrics.RoiInception
		snap.Roi30d = &metrics.Roi30d
		snap.MaxDrawdown = &metrics.MaxDrawdown
		snap.Volatility = &metrics.Volatility
		if asOf, err := time.Parse(perf.DateKeyLayout, metrics.AsOfDate); err == nil {
			snap.AsOfDate = &asOf
		}
	}
	if err := s.Repo.SaveDashboardSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save dashboard snapshot: %w", err)
	}
	return nil
}

// recordFailure leaves the portfolio dirty and remembers the error for the
// dashboard's status display. A failure to record is only logged.
func (s *RoiJobService) recordFailure(ctx context.Context, snap *models.RoiDashboardSnapshot, message string) {
	snap.LastError = &message
	if err := s.Repo.SaveDashboardSnapshot(ctx, snap); err != nil && s.Logger != nil {
		s.Logger.Warn("record portfolio failure failed",
			zap.String("portfolio_key", snap.PortfolioKey),
			zap.Error(err),
		)
	}
}

func allocationSymbols(allocs []models.AllocationSnapshot) []string {
	seen := map[string]struct{}{}
	var symbols []string
	for i := range allocs {
		items, err := allocs[i].DecodeItems()
		if err != nil {
			continue
		}
		for _, item := range items {
			if _, ok := seen[item.Asset]; ok {
				continue
			}
			seen[item.Asset] = struct{}{}
			symbols = append(symbols, item.Asset)
		}
	}
	return symbols
}
