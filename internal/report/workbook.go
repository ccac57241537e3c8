package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/kpi"
)

const (
	kpiSheet      = "KPIs"
	maxSheetName  = 31
	defaultSheet  = "Sheet1"
	seriesHeaderN = 7
)

var seriesHeader = [seriesHeaderN]any{"key", "group", "value", "previous", "target", "ratio", "band"}

// Workbook renders d into a new workbook: one KPI sheet followed by one sheet
// per series. Callers must Close the returned file.
func Workbook(d *dashboard.Dashboard) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, kpiSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeKPIs(f, d); err != nil {
		_ = f.Close()
		return nil, err
	}

	bandStyles := map[kpi.Band]int{}
	for _, b := range []kpi.Band{kpi.BandLow, kpi.BandMedium, kpi.BandHigh} {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{BandColor(b)}},
		})
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("band style: %w", err)
		}
		bandStyles[b] = id
	}

	for _, s := range d.Series {
		if err := writeSeries(f, s, bandStyles); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook streams the workbook for d to w.
func WriteWorkbook(d *dashboard.Dashboard, w io.Writer) error {
	f, err := Workbook(d)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteTo(w)
	return err
}

// SaveWorkbook writes the workbook for d to path.
func SaveWorkbook(d *dashboard.Dashboard, path string) error {
	f, err := Workbook(d)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.SaveAs(path)
}

func writeKPIs(f *excelize.File, d *dashboard.Dashboard) error {
	rows := [][]any{
		{"current_period", d.Current},
		{"previous_period", d.Previous},
		{},
		{"name", "value", "status", "unit", "display"},
	}
	fm := NewFormatter("en", "")
	for _, k := range d.KPIs {
		rows = append(rows, []any{k.Name, k.Value, string(k.Status), k.Unit, fm.KPI(k)})
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(kpiSheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

func writeSeries(f *excelize.File, s dashboard.Series, bandStyles map[kpi.Band]int) error {
	name := sheetName(s.Name)
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	header := seriesHeader[:]
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	for i, p := range s.Points {
		row := []any{p.Key, p.Group, p.Value, optional(p.Previous), optional(p.Target), nil, string(p.Band)}
		if p.Status != "" && p.Status != kpi.StatusOK {
			row[2] = nil
		}
		if p.Ratio != nil && p.Ratio.OK() {
			row[5] = Round1(p.Ratio.Value).InexactFloat64()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
		if id, ok := bandStyles[p.Band]; ok {
			bandCell, _ := excelize.CoordinatesToCellName(seriesHeaderN, i+2)
			if err := f.SetCellStyle(name, bandCell, bandCell, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func sheetName(s string) string {
	s = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_").Replace(s)
	if len(s) > maxSheetName {
		s = s[:maxSheetName]
	}
	return s
}
