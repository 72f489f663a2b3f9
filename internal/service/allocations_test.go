package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roimonitor/internal/models"
	"roimonitor/internal/stream"
)

func newAllocationService(repo *stubRepo, hub *stream.Hub, now time.Time) *AllocationService {
	return &AllocationService{
		Repo:   repo,
		Logger: zap.NewNop(),
		Events: hub,
		Now:    func() time.Time { return now },
	}
}

func TestPublish_RejectsInvalidWeights(t *testing.T) {
	repo := newStubRepo()
	svc := newAllocationService(repo, nil, testDay(t, "2026-01-10"))

	cases := []struct {
		name string
		req  PublishAllocationRequest
	}{
		{"empty", PublishAllocationRequest{PortfolioKey: "ALPHA"}},
		{"missing key", PublishAllocationRequest{
			Items: []models.AllocationItem{{Asset: "BTC", Weight: decimal.NewFromInt(1)}},
		}},
		{"negative cash", PublishAllocationRequest{
			PortfolioKey: "ALPHA",
			Items:        []models.AllocationItem{{Asset: "BTC", Weight: decimal.RequireFromString("1.2")}},
			CashWeight:   decimal.RequireFromString("-0.2"),
		}},
		{"negative weight", PublishAllocationRequest{
			PortfolioKey: "ALPHA",
			Items: []models.AllocationItem{
				{Asset: "BTC", Weight: decimal.RequireFromString("1.5")},
				{Asset: "ETH", Weight: decimal.RequireFromString("-0.5")},
			},
		}},
		{"duplicate asset", PublishAllocationRequest{
			PortfolioKey: "ALPHA",
			Items: []models.AllocationItem{
				{Asset: "BTC", Weight: decimal.RequireFromString("0.5")},
				{Asset: "btc", Weight: decimal.RequireFromString("0.5")},
			},
		}},
		{"sum off", PublishAllocationRequest{
			PortfolioKey: "ALPHA",
			Items:        []models.AllocationItem{{Asset: "BTC", Weight: decimal.RequireFromString("0.9")}},
		}},
	}
	for _, tc := range cases {
		if _, err := svc.Publish(context.Background(), tc.req); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if len(repo.allocs) != 0 {
		t.Fatalf("invalid request persisted an allocation")
	}
}

func TestPublish_AcceptsCashOnlyAndTolerance(t *testing.T) {
	repo := newStubRepo()
	svc := newAllocationService(repo, nil, testDay(t, "2026-01-10"))

	if _, err := svc.Publish(context.Background(), PublishAllocationRequest{
		PortfolioKey: "STABLE",
		CashWeight:   decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("cash only: %v", err)
	}
	// Rounding slack inside the tolerance is accepted.
	if _, err := svc.Publish(context.Background(), PublishAllocationRequest{
		PortfolioKey: "ALPHA",
		Items: []models.AllocationItem{
			{Asset: "BTC", Weight: decimal.RequireFromString("0.3333")},
			{Asset: "ETH", Weight: decimal.RequireFromString("0.3333")},
			{Asset: "SOL", Weight: decimal.RequireFromString("0.3333")},
		},
	}); err != nil {
		t.Fatalf("within tolerance: %v", err)
	}
}

func TestPublish_PersistsMarksDirtyAndEmits(t *testing.T) {
	repo := newStubRepo()
	hub := stream.NewHub(zap.NewNop())
	events, cancel := hub.Subscribe()
	defer cancel()

	svc := newAllocationService(repo, hub, testDay(t, "2026-01-10"))
	snap, err := svc.Publish(context.Background(), PublishAllocationRequest{
		PortfolioKey: "ALPHA",
		Items: []models.AllocationItem{
			{Asset: "BTC", Weight: decimal.RequireFromString("0.6")},
			{Asset: "ETH", Weight: decimal.RequireFromString("0.4")},
		},
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !snap.AsOfDate.Equal(testDay(t, "2026-01-10")) {
		t.Fatalf("asOf=%v want today", snap.AsOfDate)
	}
	items, err := snap.DecodeItems()
	if err != nil || len(items) != 2 {
		t.Fatalf("items=%v err=%v", items, err)
	}

	dash := repo.dashboard("ALPHA")
	if dash == nil || !dash.NeedsRecompute {
		t.Fatalf("portfolio not marked dirty")
	}
	// Two days of slack so the first changed day has a previous close.
	if dash.RecomputeFromDate == nil || !dash.RecomputeFromDate.Equal(testDay(t, "2026-01-08")) {
		t.Fatalf("recomputeFrom=%v want 2026-01-08", dash.RecomputeFromDate)
	}

	select {
	case ev := <-events:
		if ev.Type != stream.EventAllocationPublished || ev.PortfolioKey != "ALPHA" {
			t.Fatalf("event=%+v want allocation_published for ALPHA", ev)
		}
	default:
		t.Fatalf("no event published")
	}
}

func TestPublish_SameDayRepublishReplaces(t *testing.T) {
	repo := newStubRepo()
	asOf := testDay(t, "2026-01-10")
	svc := newAllocationService(repo, nil, asOf)

	for _, weight := range []string{"1", "0.5"} {
		req := PublishAllocationRequest{
			PortfolioKey: "ALPHA",
			Items:        []models.AllocationItem{{Asset: "BTC", Weight: decimal.RequireFromString(weight)}},
			AsOfDate:     &asOf,
		}
		if weight == "0.5" {
			req.CashWeight = decimal.RequireFromString("0.5")
		}
		if _, err := svc.Publish(context.Background(), req); err != nil {
			t.Fatalf("publish weight %s: %v", weight, err)
		}
	}

	allocs, err := svc.List(context.Background(), "ALPHA")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("allocs=%d want 1 (same-day replace)", len(allocs))
	}
	items, _ := allocs[0].DecodeItems()
	if !items[0].Weight.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("weight=%s want the later publish to win", items[0].Weight)
	}
}

func TestPublish_DirtyLowWaterMarkOnlyMovesBack(t *testing.T) {
	repo := newStubRepo()
	current := testDay(t, "2026-01-10")
	svc := &AllocationService{
		Repo:   repo,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return current },
	}

	for _, today := range []string{"2026-01-10", "2026-01-05", "2026-01-20"} {
		current = testDay(t, today)
		if _, err := svc.Publish(context.Background(), PublishAllocationRequest{
			PortfolioKey: "ALPHA",
			Items:        []models.AllocationItem{{Asset: "BTC", Weight: decimal.NewFromInt(1)}},
		}); err != nil {
			t.Fatalf("publish on %s: %v", today, err)
		}
	}

	dash := repo.dashboard("ALPHA")
	// Earliest publish day minus the two-day slack wins.
	if dash.RecomputeFromDate == nil || !dash.RecomputeFromDate.Equal(testDay(t, "2026-01-03")) {
		t.Fatalf("recomputeFrom=%v want 2026-01-03", dash.RecomputeFromDate)
	}
}

func TestPublish_RejectsBackdatedAndFutureDates(t *testing.T) {
	repo := newStubRepo()
	current := testDay(t, "2026-01-05")
	svc := &AllocationService{
		Repo:   repo,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return current },
	}

	if _, err := svc.Publish(context.Background(), PublishAllocationRequest{
		PortfolioKey: "ALPHA",
		Items:        []models.AllocationItem{{Asset: "BTC", Weight: decimal.NewFromInt(1)}},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	current = testDay(t, "2026-01-10")
	backdated := testDay(t, "2026-01-05")
	if _, err := svc.Publish(context.Background(), PublishAllocationRequest{
		PortfolioKey: "ALPHA",
		Items:        []models.AllocationItem{{Asset: "ETH", Weight: decimal.NewFromInt(1)}},
		AsOfDate:     &backdated,
	}); err == nil {
		t.Fatalf("back-dated publish accepted")
	}

	future := testDay(t, "2026-01-11")
	if _, err := svc.Publish(context.Background(), PublishAllocationRequest{
		PortfolioKey: "ALPHA",
		Items:        []models.AllocationItem{{Asset: "ETH", Weight: decimal.NewFromInt(1)}},
		AsOfDate:     &future,
	}); err == nil {
		t.Fatalf("future-dated publish accepted")
	}

	allocs, err := svc.List(context.Background(), "ALPHA")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("allocs=%d want the single original snapshot", len(allocs))
	}
	items, _ := allocs[0].DecodeItems()
	if items[0].Asset != "BTC" {
		t.Fatalf("historical snapshot replaced, now holds %s", items[0].Asset)
	}
	if !repo.dashboard("ALPHA").RecomputeFromDate.Equal(testDay(t, "2026-01-03")) {
		t.Fatalf("rejected publish moved the dirty mark")
	}
}
