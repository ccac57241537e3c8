package report

import (
	"fmt"
	"strings"

	"github.com/vinodismyname/salesdash/internal/dashboard"
)

// Summary renders the KPIs and the top entries of the main series as plain
// text, one fact per line. maxPoints caps the entries listed per series.
func Summary(d *dashboard.Dashboard, f *Formatter, maxPoints int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sales dashboard for %s", orNone(d.Current))
	if d.Previous != "" {
		fmt.Fprintf(&b, " (compared with %s)", d.Previous)
	}
	b.WriteString("\n")
	for _, k := range d.KPIs {
		fmt.Fprintf(&b, "- %s: %s\n", k.Name, f.KPI(k))
	}

	for _, name := range []string{dashboard.SeriesAreaSales, dashboard.SeriesProductAchievement, dashboard.SeriesStoreSales} {
		s, ok := d.SeriesByName(name)
		if !ok || len(s.Points) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", name)
		for i, p := range s.Points {
			if maxPoints > 0 && i == maxPoints {
				fmt.Fprintf(&b, "  ... %d more\n", len(s.Points)-i)
				break
			}
			key := p.Key
			if p.Group != "" {
				key = p.Group + "/" + p.Key
			}
			fmt.Fprintf(&b, "  %s: %s\n", key, f.Point(s, p))
		}
	}

	if len(d.Diagnostics) > 0 {
		fmt.Fprintf(&b, "warnings: %d\n", len(d.Diagnostics))
		for _, w := range d.Diagnostics {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(no data)"
	}
	return s
}
