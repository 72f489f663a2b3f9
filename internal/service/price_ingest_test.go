package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roimonitor/internal/client/coingecko"
	"roimonitor/internal/models"
	"roimonitor/internal/perf"
)

// stubProvider serves canned daily closes per symbol and can fail on demand.
type stubProvider struct {
	closes map[string][]coingecko.ClosePoint
	errFor map[string]error
	calls  []string
}

func (p *stubProvider) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]coingecko.ClosePoint, error) {
	p.calls = append(p.calls, symbol)
	if p.errFor != nil {
		if err := p.errFor[symbol]; err != nil {
			return nil, err
		}
	}
	startKey := perf.DateKey(start)
	endKey := perf.DateKey(end)
	var out []coingecko.ClosePoint
	for _, c := range p.closes[symbol] {
		if c.Date < startKey || c.Date > endKey {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func closePoints(t *testing.T, pairs ...string) []coingecko.ClosePoint {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatalf("closePoints needs date/close pairs")
	}
	out := make([]coingecko.ClosePoint, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, coingecko.ClosePoint{
			Date:  pairs[i],
			Close: decimal.RequireFromString(pairs[i+1]),
		})
	}
	return out
}

func testDay(t *testing.T, key string) time.Time {
	t.Helper()
	d, err := time.Parse(perf.DateKeyLayout, key)
	if err != nil {
		t.Fatalf("bad date %q: %v", key, err)
	}
	return d
}

func newIngestService(repo *stubRepo, provider *stubProvider) *PriceIngestService {
	return &PriceIngestService{
		Repo:       repo,
		Provider:   provider,
		Logger:     zap.NewNop(),
		CashSymbol: "CASH",
	}
}

func TestIngestDailyCloses_CashIsSynthetic(t *testing.T) {
	repo := newStubRepo()
	provider := &stubProvider{}
	svc := newIngestService(repo, provider)

	summaries, err := svc.IngestDailyCloses(context.Background(), []string{"CASH"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-03"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries=%d want 1", len(summaries))
	}
	sum := summaries[0]
	if sum.Source != models.PriceSourceCash {
		t.Fatalf("source=%q want %q", sum.Source, models.PriceSourceCash)
	}
	if sum.Requested != 3 || sum.Inserted != 3 || sum.Updated != 0 {
		t.Fatalf("counts=%+v want 3 requested, 3 inserted", sum)
	}
	if len(provider.calls) != 0 {
		t.Fatalf("provider called for cash: %v", provider.calls)
	}
	rows, _ := repo.ListAssetPrices(context.Background(), []string{"CASH"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-03"))
	if len(rows) != 3 {
		t.Fatalf("rows=%d want 3", len(rows))
	}
	for _, row := range rows {
		if !row.Close.Equal(decimal.NewFromInt(1)) {
			t.Fatalf("cash close=%s want 1", row.Close)
		}
	}
}

func TestIngestDailyCloses_ProviderFailureIsolatedPerSymbol(t *testing.T) {
	repo := newStubRepo()
	provider := &stubProvider{
		closes: map[string][]coingecko.ClosePoint{
			"ETH": closePoints(t, "2026-01-01", "2000", "2026-01-02", "2100"),
		},
		errFor: map[string]error{"BTC": errors.New("rate limited")},
	}
	svc := newIngestService(repo, provider)

	summaries, err := svc.IngestDailyCloses(context.Background(), []string{"BTC", "ETH"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-02"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries=%d want 2", len(summaries))
	}
	if summaries[0].Symbol != "BTC" || summaries[0].Inserted != 0 || summaries[0].Requested != 0 {
		t.Fatalf("BTC summary=%+v want zero counts", summaries[0])
	}
	if summaries[1].Symbol != "ETH" || summaries[1].Inserted != 2 {
		t.Fatalf("ETH summary=%+v want 2 inserted", summaries[1])
	}
	rows, _ := repo.ListAssetPrices(context.Background(), []string{"BTC", "ETH"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-02"))
	if len(rows) != 2 {
		t.Fatalf("rows=%d want only ETH's 2", len(rows))
	}
}

func TestIngestDailyCloses_CountsInsertedVsUpdated(t *testing.T) {
	repo := newStubRepo()
	if err := repo.UpsertAssetPrices(context.Background(), []models.AssetPriceDaily{{
		Symbol: "BTC",
		Date:   testDay(t, "2026-01-01"),
		Close:  decimal.RequireFromString("99"),
		Source: models.PriceSourceCoinGecko,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	provider := &stubProvider{
		closes: map[string][]coingecko.ClosePoint{
			"BTC": closePoints(t, "2026-01-01", "100", "2026-01-02", "105"),
		},
	}
	svc := newIngestService(repo, provider)

	summaries, err := svc.IngestDailyCloses(context.Background(), []string{"BTC"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-02"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	sum := summaries[0]
	if sum.Inserted != 1 || sum.Updated != 1 {
		t.Fatalf("inserted=%d updated=%d want 1/1", sum.Inserted, sum.Updated)
	}
	rows, _ := repo.ListAssetPrices(context.Background(), []string{"BTC"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-01"))
	if len(rows) != 1 || !rows[0].Close.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("revised close not applied: %+v", rows)
	}
}

func TestIngestDailyCloses_DisabledSwitchSkipsProviderAndWrites(t *testing.T) {
	repo := newStubRepo()
	provider := &stubProvider{
		closes: map[string][]coingecko.ClosePoint{
			"BTC": closePoints(t, "2026-01-01", "100"),
		},
	}
	svc := newIngestService(repo, provider)
	svc.Settings = &SystemSettingsService{Repo: repo}
	if err := svc.Settings.SetEnabled(context.Background(), FeaturePriceIngest, false); err != nil {
		t.Fatalf("disable switch: %v", err)
	}

	summaries, err := svc.IngestDailyCloses(context.Background(), []string{"BTC"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-01"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("summaries=%d want 0 while disabled", len(summaries))
	}
	if len(provider.calls) != 0 {
		t.Fatalf("provider called while disabled: %v", provider.calls)
	}
	rows, _ := repo.ListAssetPrices(context.Background(), []string{"BTC"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-01"))
	if len(rows) != 0 {
		t.Fatalf("rows=%d want none while disabled", len(rows))
	}

	if err := svc.Settings.SetEnabled(context.Background(), FeaturePriceIngest, true); err != nil {
		t.Fatalf("enable switch: %v", err)
	}
	summaries, err = svc.IngestDailyCloses(context.Background(), []string{"BTC"},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-01"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(summaries) != 1 || summaries[0].Inserted != 1 {
		t.Fatalf("summaries=%+v want 1 insert after re-enabling", summaries)
	}
}

func TestIngestDailyCloses_NormalizesSymbols(t *testing.T) {
	repo := newStubRepo()
	provider := &stubProvider{
		closes: map[string][]coingecko.ClosePoint{
			"BTC": closePoints(t, "2026-01-01", "100"),
		},
	}
	svc := newIngestService(repo, provider)

	summaries, err := svc.IngestDailyCloses(context.Background(), []string{" btc ", ""},
		testDay(t, "2026-01-01"), testDay(t, "2026-01-01"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries=%d want 1 (blank symbol skipped)", len(summaries))
	}
	if summaries[0].Symbol != "BTC" || summaries[0].Inserted != 1 {
		t.Fatalf("summary=%+v want normalized BTC with 1 insert", summaries[0])
	}
}
