package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roimonitor/internal/client/coingecko"
	"roimonitor/internal/models"
	"roimonitor/internal/perf"
	"roimonitor/internal/repository"
)

// PriceProvider is the external daily-close boundary. It is unreliable: it
// may return fewer dates than requested or fail outright for a symbol.
type PriceProvider interface {
	DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]coingecko.ClosePoint, error)
}

// IngestSummary reports one symbol's ingest outcome.
type IngestSummary struct {
	Symbol    string `json:"symbol"`
	Requested int    `json:"requested"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Source    string `json:"source"`
}

type PriceIngestService struct {
	Repo     repository.Repository
	Provider PriceProvider
	Logger   *zap.Logger
	// Settings gates ingestion on the feature.price_ingest switch so
	// operators can stop provider traffic without a deploy.
	Settings *SystemSettingsService
	// CashSymbol is the synthetic zero-volatility asset; its closes are
	// generated internally instead of fetched.
	CashSymbol string
}

// IngestDailyCloses fetches missing daily closes for the symbol set over
// [start, end] and upserts them. Each symbol's fetch/upsert cycle is
// independent: a provider outage for one symbol degrades that symbol to a
// zero-count summary and the batch continues.
func (s *PriceIngestService) IngestDailyCloses(ctx context.Context, symbols []string, start, end time.Time) ([]IngestSummary, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	if !s.Settings.IsEnabled(ctx, FeaturePriceIngest, true) {
		if s.Logger != nil {
			s.Logger.Info("price ingest disabled by feature switch, skipping")
		}
		return nil, nil
	}
	start = perf.DateOnly(start)
	end = perf.DateOnly(end)

	summaries := make([]IngestSummary, 0, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		summaries = append(summaries, s.ingestSymbol(ctx, symbol, start, end))
	}
	return summaries, nil
}

func (s *PriceIngestService) ingestSymbol(ctx context.Context, symbol string, start, end time.Time) IngestSummary {
	source := models.PriceSourceCoinGecko
	var points []coingecko.ClosePoint

	if s.isCash(symbol) {
		source = models.PriceSourceCash
		points = syntheticCashCloses(start, end)
	} else {
		if s.Provider == nil {
			return IngestSummary{Symbol: symbol, Source: source}
		}
		fetched, err := s.Provider.DailyCloses(ctx, symbol, start, end)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("price fetch failed",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
			return IngestSummary{Symbol: symbol, Source: source}
		}
		points = fetched
	}

	if len(points) == 0 {
		return IngestSummary{Symbol: symbol, Source: source}
	}

	existingDates, err := s.Repo.ListAssetPriceDates(ctx, symbol, start, end)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("list existing price dates failed",
				zap.String("symbol", symbol),
				zap.Error(err))
		}
		return IngestSummary{Symbol: symbol, Requested: len(points), Source: source}
	}
	existing := make(map[string]struct{}, len(existingDates))
	for _, d := range existingDates {
		existing[perf.DateKey(d)] = struct{}{}
	}

	rows := make([]models.AssetPriceDaily, 0, len(points))
	inserted, updated := 0, 0
	for _, p := range points {
		day, err := time.Parse(perf.DateKeyLayout, p.Date)
		if err != nil {
			continue
		}
		rows = append(rows, models.AssetPriceDaily{
			Symbol: symbol,
			Date:   day,
			Close:  p.Close,
			Source: source,
		})
		if _, ok := existing[p.Date]; ok {
			updated++
		} else {
			inserted++
		}
	}

	if err := s.Repo.UpsertAssetPrices(ctx, rows); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("price upsert failed",
				zap.String("symbol", symbol),
				zap.Error(err))
		}
		return IngestSummary{Symbol: symbol, Requested: len(points), Source: source}
	}

	return IngestSummary{
		Symbol:    symbol,
		Requested: len(points),
		Inserted:  inserted,
		Updated:   updated,
		Source:    source,
	}
}

func (s *PriceIngestService) isCash(symbol string) bool {
	cash := s.CashSymbol
	if cash == "" {
		cash = "CASH"
	}
	return strings.EqualFold(symbol, cash)
}

// syntheticCashCloses pins the cash leg to a constant close of 1 so it
// contributes zero return and zero volatility.
func syntheticCashCloses(start, end time.Time) []coingecko.ClosePoint {
	dates := perf.DateRange(start, end)
	points := make([]coingecko.ClosePoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, coingecko.ClosePoint{
			Date:  perf.DateKey(d),
			Close: decimal.NewFromInt(1),
		})
	}
	return points
}
