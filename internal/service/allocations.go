package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roimonitor/internal/models"
	"roimonitor/internal/perf"
	"roimonitor/internal/repository"
	"roimonitor/internal/stream"
)

// weightTolerance absorbs rounding in admin-entered weights.
var weightTolerance = decimal.RequireFromString("0.001")

type PublishAllocationRequest struct {
	PortfolioKey string
	Items        []models.AllocationItem
	CashWeight   decimal.Decimal
	// AsOfDate defaults to today and must be today when set: a same-day
	// re-publish replaces that day's snapshot ("last write same day wins"),
	// while past days are immutable.
	AsOfDate *time.Time
}

// AllocationService handles allocation publishes from the admin back office:
// persist the snapshot, invalidate the portfolio's cached performance, and
// kick the recompute job without blocking the admin action.
type AllocationService struct {
	Repo   repository.Repository
	Job    *RoiJobService
	Logger *zap.Logger
	Events *stream.Hub

	Now func() time.Time
}

func (s *AllocationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AllocationService) Publish(ctx context.Context, req PublishAllocationRequest) (*models.AllocationSnapshot, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("allocation service not wired")
	}
	key := strings.TrimSpace(req.PortfolioKey)
	if key == "" {
		return nil, errors.New("portfolio key is required")
	}
	if err := validateWeights(req.Items, req.CashWeight); err != nil {
		return nil, err
	}

	today := perf.DateOnly(s.now())
	asOf := today
	if req.AsOfDate != nil {
		asOf = perf.DateOnly(*req.AsOfDate)
		// Past snapshots are immutable; only today's may be replaced.
		if asOf.Before(today) {
			return nil, fmt.Errorf("allocation for %s is historical and immutable", perf.DateKey(asOf))
		}
		if asOf.After(today) {
			return nil, fmt.Errorf("allocation date %s is in the future", perf.DateKey(asOf))
		}
	}

	snapshot := &models.AllocationSnapshot{
		PortfolioKey: key,
		AsOfDate:     asOf,
		CashWeight:   req.CashWeight,
	}
	if err := snapshot.SetItems(req.Items); err != nil {
		return nil, fmt.Errorf("encode allocation items: %w", err)
	}
	if err := s.Repo.UpsertAllocationSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save allocation snapshot: %w", err)
	}

	// Invalidate back to two days before the effective date so the NAV walk
	// has a previous close for the first changed day.
	if err := s.Repo.MarkDashboardDirty(ctx, key, asOf.AddDate(0, 0, -2)); err != nil {
		return nil, fmt.Errorf("mark portfolio dirty: %w", err)
	}

	s.Events.Publish(stream.Event{
		Type:         stream.EventAllocationPublished,
		PortfolioKey: key,
		Detail:       map[string]any{"as_of": perf.DateKey(asOf)},
	})

	// Fire-and-forget recompute: a failure here only delays freshness until
	// the next scheduled run, so it is logged and not surfaced to the admin.
	if s.Job != nil {
		go func() {
			runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := s.Job.Run(runCtx, RunOptions{
				Trigger:      "allocation_publish",
				PortfolioKey: key,
			}); err != nil && s.Logger != nil {
				s.Logger.Warn("triggered roi job failed",
					zap.String("portfolio_key", key),
					zap.Error(err))
			}
		}()
	}

	return snapshot, nil
}

func (s *AllocationService) List(ctx context.Context, portfolioKey string) ([]models.AllocationSnapshot, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListAllocationSnapshots(ctx, strings.TrimSpace(portfolioKey))
}

func validateWeights(items []models.AllocationItem, cashWeight decimal.Decimal) error {
	if len(items) == 0 && cashWeight.IsZero() {
		return errors.New("allocation is empty")
	}
	if cashWeight.IsNegative() {
		return errors.New("cash weight must not be negative")
	}
	total := cashWeight
	seen := map[string]struct{}{}
	for _, item := range items {
		asset := strings.ToUpper(strings.TrimSpace(item.Asset))
		if asset == "" {
			return errors.New("allocation item has empty asset")
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("duplicate asset %s", asset)
		}
		seen[asset] = struct{}{}
		if item.Weight.IsNegative() {
			return fmt.Errorf("weight for %s must not be negative", asset)
		}
		total = total.Add(item.Weight)
	}
	if total.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(weightTolerance) {
		return fmt.Errorf("weights must sum to 1, got %s", total.String())
	}
	return nil
}
