package perf

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRow is one raw observed daily close, the resolver's sparse input.
type PriceRow struct {
	Symbol string
	Date   time.Time
	Close  decimal.Decimal
}

// ResolvePrices turns sparse observed closes into a gapless daily series per
// symbol by carrying the last observed close forward over weekends, holidays
// and provider gaps (last observation carried forward). Dates before a
// symbol's first observation get no entry: absence is explicit, never zero.
func ResolvePrices(rows []PriceRow, dates []time.Time) map[string]map[string]decimal.Decimal {
	bySymbol := map[string][]PriceRow{}
	for _, row := range rows {
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], row)
	}

	resolved := make(map[string]map[string]decimal.Decimal, len(bySymbol))
	for symbol, observed := range bySymbol {
		sort.Slice(observed, func(i, j int) bool {
			return observed[i].Date.Before(observed[j].Date)
		})

		series := make(map[string]decimal.Decimal, len(dates))
		idx := 0
		var last decimal.Decimal
		seen := false
		for _, d := range dates {
			day := DateOnly(d)
			for idx < len(observed) && !DateOnly(observed[idx].Date).After(day) {
				last = observed[idx].Close
				seen = true
				idx++
			}
			if seen {
				series[DateKey(day)] = last
			}
		}
		resolved[symbol] = series
	}
	return resolved
}
