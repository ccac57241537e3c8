// Package kpi computes the dashboard's scalar indicators. Values keep full
// precision; rounding happens at presentation time.
package kpi

import "github.com/samber/lo"

// Status qualifies a ratio.
type Status string

const (
	StatusOK Status = "ok"
	// StatusNoBaseline marks a ratio whose denominator was zero. Its Value is 0
	// and must not be read as "0% change".
	StatusNoBaseline Status = "no_baseline"
)

// Ratio is a percentage (or per-unit value) plus its status.
type Ratio struct {
	Value  float64 `json:"value"`
	Status Status  `json:"status"`
}

// OK reports whether the ratio has a baseline.
func (r Ratio) OK() bool { return r.Status == StatusOK }

// Total sums values.
func Total(values ...float64) float64 {
	return lo.Sum(values)
}

// Growth is (curr-prev)/prev*100.
func Growth(curr, prev float64) Ratio {
	if prev == 0 {
		return Ratio{Status: StatusNoBaseline}
	}
	return Ratio{Value: (curr - prev) / prev * 100, Status: StatusOK}
}

// Achievement is actual/target*100.
func Achievement(actual, target float64) Ratio {
	if target == 0 {
		return Ratio{Status: StatusNoBaseline}
	}
	return Ratio{Value: actual / target * 100, Status: StatusOK}
}

// UnitPrice is amount/quantity.
func UnitPrice(amount, quantity float64) Ratio {
	if quantity == 0 {
		return Ratio{Status: StatusNoBaseline}
	}
	return Ratio{Value: amount / quantity, Status: StatusOK}
}

// Share is part/whole*100.
func Share(part, whole float64) Ratio {
	if whole == 0 {
		return Ratio{Status: StatusNoBaseline}
	}
	return Ratio{Value: part / whole * 100, Status: StatusOK}
}

// Concentration is the Herfindahl-Hirschman index of values: the sum of each
// value's squared share of the total, between 0 and 1. A zero total has no
// baseline.
func Concentration(values ...float64) Ratio {
	total := lo.Sum(values)
	if total == 0 {
		return Ratio{Status: StatusNoBaseline}
	}
	hhi := lo.SumBy(values, func(v float64) float64 {
		sh := v / total
		return sh * sh
	})
	return Ratio{Value: hhi, Status: StatusOK}
}

// Level classifies a concentration index.
type Level string

const (
	LevelUnknown        Level = "unknown"
	LevelUnconcentrated Level = "unconcentrated"
	LevelModerate       Level = "moderately_concentrated"
	LevelHigh           Level = "highly_concentrated"
)

// ConcentrationLevel uses the usual antitrust cut-offs of 0.15 and 0.25.
func ConcentrationLevel(r Ratio) Level {
	switch {
	case !r.OK():
		return LevelUnknown
	case r.Value < 0.15:
		return LevelUnconcentrated
	case r.Value < 0.25:
		return LevelModerate
	default:
		return LevelHigh
	}
}

// Band buckets an achievement ratio for display.
type Band string

const (
	BandNone   Band = "none"
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// AchievementBand maps an achievement ratio to a band: below 30% is low,
// below 50% medium, anything else high. Ratios without a baseline are none.
func AchievementBand(r Ratio) Band {
	switch {
	case !r.OK():
		return BandNone
	case r.Value < 30:
		return BandLow
	case r.Value < 50:
		return BandMedium
	default:
		return BandHigh
	}
}
