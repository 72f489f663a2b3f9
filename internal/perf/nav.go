package perf

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"roimonitor/internal/models"
)

var navBase = decimal.NewFromInt(100)

// Allocation is a dated set of target weights, effective from AsOfDate until
// superseded by the next later allocation.
type Allocation struct {
	AsOfDate time.Time
	Items    []models.AllocationItem
}

// NavPoint is one computed day of the synthetic NAV index.
type NavPoint struct {
	DateKey     string
	NAV         decimal.Decimal
	DailyReturn decimal.Decimal
}

// DegradedDay records a day whose return was zeroed because a constituent
// price was missing at the day or its predecessor.
type DegradedDay struct {
	DateKey string
	Missing []string
}

// CompoundNAV walks dates in ascending order, resolves the active allocation
// for each day (latest snapshot not after it), and compounds a NAV index
// starting at exactly 100.
//
// The index initializes on the first date that has an active allocation and
// resolved prices for every constituent. From then on each day's return is
// the weight-dot of constituent price ratios against the previous calendar
// day; the cash portion of the allocation contributes zero. A day with any
// missing constituent price carries NAV flat with a zero return and is
// reported as degraded rather than failing the series.
//
// Allocation switches take effect the day they were published and do not
// themselves produce a return event: the next day's return already uses the
// new weights. Pure function: identical inputs give identical output.
func CompoundNAV(prices map[string]map[string]decimal.Decimal, dates []time.Time, allocs []Allocation) ([]NavPoint, []DegradedDay) {
	if len(dates) == 0 || len(allocs) == 0 {
		return nil, nil
	}

	sorted := make([]Allocation, len(allocs))
	copy(sorted, allocs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AsOfDate.Before(sorted[j].AsOfDate)
	})

	var (
		points   []NavPoint
		degraded []DegradedDay
		nav      decimal.Decimal
		started  bool
		active   *Allocation
		allocIdx int
	)

	for i, d := range dates {
		day := DateOnly(d)
		// Two-pointer merge: advance to the latest allocation not after day.
		for allocIdx < len(sorted) && !DateOnly(sorted[allocIdx].AsOfDate).After(day) {
			active = &sorted[allocIdx]
			allocIdx++
		}
		if active == nil {
			continue
		}

		key := DateKey(day)

		if !started {
			if len(missingAt(prices, active.Items, key)) > 0 {
				continue
			}
			nav = navBase
			started = true
			points = append(points, NavPoint{DateKey: key, NAV: nav, DailyReturn: decimal.Zero})
			continue
		}

		prevKey := DateKey(dates[i-1])
		missing := missingAt(prices, active.Items, key)
		missing = append(missing, missingAt(prices, active.Items, prevKey)...)
		if len(missing) > 0 {
			degraded = append(degraded, DegradedDay{DateKey: key, Missing: dedupe(missing)})
			points = append(points, NavPoint{DateKey: key, NAV: nav, DailyReturn: decimal.Zero})
			continue
		}

		ret := decimal.Zero
		for _, item := range active.Items {
			cur := prices[item.Asset][key]
			prev := prices[item.Asset][prevKey]
			ret = ret.Add(item.Weight.Mul(cur.Div(prev).Sub(decimal.NewFromInt(1))))
		}
		nav = nav.Mul(decimal.NewFromInt(1).Add(ret))
		points = append(points, NavPoint{DateKey: key, NAV: nav, DailyReturn: ret})
	}

	return points, degraded
}

func missingAt(prices map[string]map[string]decimal.Decimal, items []models.AllocationItem, key string) []string {
	var missing []string
	for _, item := range items {
		series, ok := prices[item.Asset]
		if !ok {
			missing = append(missing, item.Asset)
			continue
		}
		if _, ok := series[key]; !ok {
			missing = append(missing, item.Asset)
		}
	}
	return missing
}

func dedupe(values []string) []string {
	seen := map[string]struct{}{}
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
