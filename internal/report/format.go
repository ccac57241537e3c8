// Package report renders a dashboard for people: rounded figures, a plain
// text summary and an xlsx workbook.
package report

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/kpi"
)

// NoBaseline is shown in place of a ratio without a denominator.
const NoBaseline = "n/a"

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(1)
}

// FormatPercent renders a ratio with one decimal, e.g. "50.0%".
func FormatPercent(r kpi.Ratio) string {
	if !r.OK() {
		return NoBaseline
	}
	return Round1(r.Value).StringFixed(1) + "%"
}

// FormatGrowth is FormatPercent with an explicit sign for increases.
func FormatGrowth(r kpi.Ratio) string {
	s := FormatPercent(r)
	if r.OK() && Round1(r.Value).IsPositive() {
		return "+" + s
	}
	return s
}

// Formatter renders amounts with locale-aware digit grouping.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter returns a Formatter for a BCP 47 language tag. Unknown tags
// fall back to English. symbol prefixes currency values.
func NewFormatter(lang, symbol string) *Formatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag), symbol: symbol}
}

// Currency renders v rounded to whole units with the currency symbol.
func (f *Formatter) Currency(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return "-" + f.symbol + f.printer.Sprintf("%d", -n)
	}
	return f.symbol + f.printer.Sprintf("%d", n)
}

// Count renders v as a grouped integer.
func (f *Formatter) Count(v float64) string {
	return f.printer.Sprintf("%d", int64(math.Round(v)))
}

// KPI renders one KPI according to its unit.
func (f *Formatter) KPI(k dashboard.KPI) string {
	r := kpi.Ratio{Value: k.Value, Status: k.Status}
	switch k.Unit {
	case dashboard.UnitPercent:
		if strings.HasSuffix(k.Name, "_growth") {
			return FormatGrowth(r)
		}
		return FormatPercent(r)
	case dashboard.UnitCurrency:
		if !r.OK() {
			return NoBaseline
		}
		return f.Currency(k.Value)
	case dashboard.UnitIndex:
		if !r.OK() {
			return NoBaseline
		}
		return decimal.NewFromFloat(k.Value).StringFixed(3) + " (" + string(kpi.ConcentrationLevel(r)) + ")"
	default:
		return f.Count(k.Value)
	}
}

// Value renders v in a KPI or series unit.
func (f *Formatter) Value(unit string, v float64) string {
	switch unit {
	case dashboard.UnitCurrency:
		return f.Currency(v)
	case dashboard.UnitPercent:
		return FormatPercent(kpi.Ratio{Value: v, Status: kpi.StatusOK})
	case dashboard.UnitIndex:
		return decimal.NewFromFloat(v).StringFixed(3)
	default:
		return f.Count(v)
	}
}

// Point renders one point of s. The ratio and band follow in parentheses;
// comparison ratios are signed.
func (f *Formatter) Point(s dashboard.Series, p dashboard.Point) string {
	if p.Status != "" && p.Status != kpi.StatusOK {
		return NoBaseline
	}
	out := f.Value(s.Unit, p.Value)
	if p.Ratio == nil {
		return out
	}
	r := FormatPercent(*p.Ratio)
	if strings.HasSuffix(s.Name, "_comparison") {
		r = FormatGrowth(*p.Ratio)
	}
	if p.Band != "" {
		r += ", " + string(p.Band)
	}
	return out + " (" + r + ")"
}

// BandColor is the fill color used for an achievement band.
func BandColor(b kpi.Band) string {
	switch b {
	case kpi.BandLow:
		return "#FF4757"
	case kpi.BandMedium:
		return "#FFA502"
	case kpi.BandHigh:
		return "#2ED573"
	}
	return "#CED6E0"
}
