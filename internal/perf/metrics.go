package perf

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Metrics are the derived performance figures cached on the dashboard
// snapshot. All values are percentages.
type Metrics struct {
	RoiInception decimal.Decimal
	Roi30d       decimal.Decimal
	MaxDrawdown  decimal.Decimal
	Volatility   decimal.Decimal
	AsOfDate     string
	Ok           bool
}

// ComputeMetrics derives inception ROI, trailing-30d ROI, max drawdown and
// annualized volatility from a NAV series. An empty series yields zero
// metrics with Ok=false.
func ComputeMetrics(series []NavPoint) Metrics {
	if len(series) == 0 {
		return Metrics{}
	}

	first := series[0]
	last := series[len(series)-1]

	roiInception := last.NAV.Div(first.NAV).Sub(decimal.NewFromInt(1)).Mul(hundred)

	lastDate, _ := time.Parse(DateKeyLayout, last.DateKey)
	cutoff := lastDate.AddDate(0, 0, -30)
	base := first
	for _, p := range series {
		d, err := time.Parse(DateKeyLayout, p.DateKey)
		if err != nil {
			continue
		}
		if !d.Before(cutoff) {
			base = p
			break
		}
	}
	roi30d := last.NAV.Div(base.NAV).Sub(decimal.NewFromInt(1)).Mul(hundred)

	peak := first.NAV
	maxDrawdown := decimal.Zero
	for _, p := range series {
		if p.NAV.GreaterThan(peak) {
			peak = p.NAV
		}
		dd := p.NAV.Div(peak).Sub(decimal.NewFromInt(1)).Mul(hundred)
		if dd.LessThan(maxDrawdown) {
			maxDrawdown = dd
		}
	}

	return Metrics{
		RoiInception: roiInception,
		Roi30d:       roi30d,
		MaxDrawdown:  maxDrawdown,
		Volatility:   annualizedVolatility(series),
		AsOfDate:     last.DateKey,
		Ok:           true,
	}
}

// annualizedVolatility is the population standard deviation of the daily
// returns, annualized by sqrt(365) and expressed as a percentage. The square
// root goes through float64; everything up to the variance stays decimal.
func annualizedVolatility(series []NavPoint) decimal.Decimal {
	n := decimal.NewFromInt(int64(len(series)))
	mean := decimal.Zero
	for _, p := range series {
		mean = mean.Add(p.DailyReturn)
	}
	mean = mean.Div(n)

	variance := decimal.Zero
	for _, p := range series {
		diff := p.DailyReturn.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(n)

	stddev := math.Sqrt(variance.InexactFloat64())
	return decimal.NewFromFloat(stddev * math.Sqrt(365) * 100)
}
