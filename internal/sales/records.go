// Package sales maps parsed rows onto typed sales and target records using
// a named header schema.
package sales

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vinodismyname/salesdash/internal/tabular"
	"github.com/vinodismyname/salesdash/pkg/validation"
)

var (
	// ErrInvalidNumber is returned in strict mode for unparseable numeric cells.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrInvalidRecord is returned in strict mode for rows failing validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// SalesRecord is one row of the sales summary.
type SalesRecord struct {
	Period   string  `json:"period" validate:"required"`
	Product  string  `json:"product" validate:"required"`
	Store    string  `json:"store,omitempty"`
	Area     string  `json:"area,omitempty"`
	Amount   float64 `json:"amount"`
	Quantity float64 `json:"quantity"`
}

// TargetRecord is one row of the targets file.
type TargetRecord struct {
	Period         string  `json:"period" validate:"required"`
	Product        string  `json:"product" validate:"required"`
	TargetAmount   float64 `json:"target_amount"`
	TargetQuantity float64 `json:"target_quantity"`
}

// PeriodKey implements Periodic.
func (r SalesRecord) PeriodKey() string { return r.Period }

// PeriodKey implements Periodic.
func (r TargetRecord) PeriodKey() string { return r.Period }

// Periodic is implemented by records carrying a period key.
type Periodic interface {
	PeriodKey() string
}

// InPeriod returns a predicate matching records whose period equals p exactly.
func InPeriod[T Periodic](p string) func(T) bool {
	return func(r T) bool { return r.PeriodKey() == p }
}

// Options tune decoding.
type Options struct {
	// Strict turns coercion failures and invalid rows into errors.
	Strict bool
	// KeepRawPeriods disables YYYY-MM normalization.
	KeepRawPeriods bool
	// Aliases maps long product names to display labels.
	Aliases map[string]string
}

// Issue describes one data-shape problem found while decoding.
// Row counts data rows from 1; Line, when set, is the physical source line
// of a problem found before rows were formed.
type Issue struct {
	Row    int    `json:"row,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("line %d: %s", i.Line, i.Reason)
	}
	if i.Column == "" {
		return fmt.Sprintf("row %d: %s", i.Row, i.Reason)
	}
	return fmt.Sprintf("row %d, column %s: %s (%q)", i.Row, i.Column, i.Reason, i.Value)
}

// Diagnostics collects non-fatal decoding issues.
type Diagnostics struct {
	Coerced []Issue `json:"coerced,omitempty"`
	Skipped []Issue `json:"skipped,omitempty"`
}

// Empty reports whether no issues were recorded.
func (d Diagnostics) Empty() bool { return len(d.Coerced) == 0 && len(d.Skipped) == 0 }

// Merge appends other's issues to d.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Coerced = append(d.Coerced, other.Coerced...)
	d.Skipped = append(d.Skipped, other.Skipped...)
}

// lineIssues reports the lines the parser skipped or re-split.
func lineIssues(ds *tabular.Dataset, diag *Diagnostics) {
	for _, n := range ds.Skipped {
		diag.Skipped = append(diag.Skipped, Issue{Line: n, Reason: "unreadable line, skipped"})
	}
	for _, n := range ds.Repaired {
		diag.Coerced = append(diag.Coerced, Issue{Line: n, Reason: "unterminated quote, split on the delimiter"})
	}
}

// DecodeSales maps ds onto sales records. A dataset without any header
// yields no records; a header lacking a required column is ErrMissingColumn.
func DecodeSales(ds *tabular.Dataset, schema Schema, opts Options) ([]SalesRecord, Diagnostics, error) {
	var diag Diagnostics
	if ds == nil || len(ds.Columns()) == 0 {
		return nil, diag, nil
	}
	lineIssues(ds, &diag)
	cols, err := resolve(ds, schema.Sales, salesRequired, "sales")
	if err != nil {
		return nil, diag, err
	}

	d := decoder{cols: cols, opts: opts, diag: &diag}
	out := make([]SalesRecord, 0, ds.Len())
	for i, row := range ds.Rows {
		n := i + 1
		rec := SalesRecord{
			Period:  d.period(row),
			Product: d.product(row),
			Store:   d.text(row, FieldStore),
			Area:    d.text(row, FieldArea),
		}
		if rec.Amount, err = d.number(n, row, FieldAmount); err != nil {
			return nil, diag, err
		}
		if rec.Quantity, err = d.number(n, row, FieldQuantity); err != nil {
			return nil, diag, err
		}
		ok, err := d.check(n, rec)
		if err != nil {
			return nil, diag, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, diag, nil
}

// DecodeTargets maps ds onto target records.
func DecodeTargets(ds *tabular.Dataset, schema Schema, opts Options) ([]TargetRecord, Diagnostics, error) {
	var diag Diagnostics
	if ds == nil || len(ds.Columns()) == 0 {
		return nil, diag, nil
	}
	lineIssues(ds, &diag)
	cols, err := resolve(ds, schema.Targets, targetRequired, "targets")
	if err != nil {
		return nil, diag, err
	}

	d := decoder{cols: cols, opts: opts, diag: &diag}
	out := make([]TargetRecord, 0, ds.Len())
	for i, row := range ds.Rows {
		n := i + 1
		rec := TargetRecord{
			Period:  d.period(row),
			Product: d.product(row),
		}
		if rec.TargetAmount, err = d.number(n, row, FieldTargetAmount); err != nil {
			return nil, diag, err
		}
		if rec.TargetQuantity, err = d.number(n, row, FieldTargetQuantity); err != nil {
			return nil, diag, err
		}
		ok, err := d.check(n, rec)
		if err != nil {
			return nil, diag, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, diag, nil
}

type decoder struct {
	cols columns
	opts Options
	diag *Diagnostics
}

func (d decoder) text(row tabular.Row, f Field) string {
	col, ok := d.cols[f]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row.Get(col))
}

func (d decoder) period(row tabular.Row) string {
	p := d.text(row, FieldPeriod)
	if d.opts.KeepRawPeriods {
		return p
	}
	return NormalizePeriod(p)
}

func (d decoder) product(row tabular.Row) string {
	p := d.text(row, FieldProduct)
	if alias, ok := d.opts.Aliases[p]; ok && alias != "" {
		return alias
	}
	return p
}

// number reads a numeric field; optional columns that are absent read as 0.
func (d decoder) number(n int, row tabular.Row, f Field) (float64, error) {
	col, ok := d.cols[f]
	if !ok {
		return 0, nil
	}
	cell, _ := row.Cell(col)
	if cell.Numeric {
		return cell.Number, nil
	}
	v, ok := ParseNumber(cell.Text)
	if ok {
		return v, nil
	}
	issue := Issue{Row: n, Column: col, Value: cell.Text, Reason: "not a number, counted as 0"}
	if d.opts.Strict {
		return 0, fmt.Errorf("%w: row %d, column %s: %q", ErrInvalidNumber, n, col, cell.Text)
	}
	d.diag.Coerced = append(d.diag.Coerced, issue)
	return 0, nil
}

// check validates rec; invalid rows are skipped unless strict.
func (d decoder) check(n int, rec any) (bool, error) {
	msg := validation.ValidateStruct(rec)
	if msg == "" {
		return true, nil
	}
	msg = strings.TrimPrefix(msg, "VALIDATION: ")
	if d.opts.Strict {
		return false, fmt.Errorf("%w: row %d: %s", ErrInvalidRecord, n, msg)
	}
	d.diag.Skipped = append(d.diag.Skipped, Issue{Row: n, Reason: msg + ", row skipped"})
	return false, nil
}
