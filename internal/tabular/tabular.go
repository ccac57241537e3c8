// Package tabular turns delimited text (or an xlsx sheet grid) into an
// ordered Dataset of Rows keyed by header name.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// ErrNotText is returned when the input is not valid UTF-8 text.
var ErrNotText = errors.New("tabular: input is not decodable text")

var numericLiteral = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// Options configures Parse and FromGrid.
type Options struct {
	Delimiter  rune
	Header     bool
	InferTypes bool
}

// DefaultOptions is comma-delimited with a header line and no type inference.
func DefaultOptions() Options {
	return Options{Delimiter: ',', Header: true}
}

// Cell is one parsed value. Number is set only when type inference is on
// and Text is a numeric literal.
type Cell struct {
	Text    string
	Number  float64
	Numeric bool
}

type header struct {
	names []string
	index map[string]int
}

func newHeader(names []string) *header {
	h := &header{names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		if _, dup := h.index[n]; !dup {
			h.index[n] = i
		}
	}
	return h
}

// Row is an ordered mapping from column name to cell. Rows are immutable.
type Row struct {
	h     *header
	cells []Cell
}

// Get returns the text value for col, or "" when the column is unknown.
func (r Row) Get(col string) string {
	c, _ := r.Cell(col)
	return c.Text
}

// Cell returns the cell for col.
func (r Row) Cell(col string) (Cell, bool) {
	i, ok := r.h.index[col]
	if !ok {
		return Cell{}, false
	}
	return r.cells[i], true
}

// Columns returns the header names in order.
func (r Row) Columns() []string { return r.h.names }

// Values returns the cell texts in column order.
func (r Row) Values() []string {
	out := make([]string, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.Text
	}
	return out
}

// Map copies the row into a plain map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.cells))
	for i, n := range r.h.names {
		if _, seen := m[n]; !seen {
			m[n] = r.cells[i].Text
		}
	}
	return m
}

// Dataset is an ordered sequence of Rows sharing one header.
type Dataset struct {
	h    *header
	Rows []Row
	// Skipped lists 1-based line numbers the CSV reader could not parse.
	Skipped []int
	// Repaired lists 1-based line numbers whose opening quote was never
	// closed. Those lines are split on the delimiter without quote handling.
	Repaired []int
}

// Columns returns the header names.
func (d *Dataset) Columns() []string { return d.h.names }

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether name is part of the header.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.h.index[name]
	return ok
}

// ParseBytes validates that b is UTF-8 text and parses it.
func ParseBytes(b []byte, opts Options) (*Dataset, error) {
	if !utf8.Valid(b) {
		return nil, ErrNotText
	}
	return Parse(string(b), opts)
}

// Parse reads delimited text. Blank lines are ignored, names and values are
// trimmed and unquoted, short lines are padded with empty strings and extra
// fields are dropped. Quoted fields may contain delimiters, doubled quotes
// and newlines.
func Parse(text string, opts Options) (*Dataset, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	text = strings.TrimPrefix(text, "\ufeff")
	text, repaired := repairQuotes(text, opts.Delimiter)

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = opts.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var (
		records [][]string
		skipped []int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped = append(skipped, pe.StartLine)
				continue
			}
			return nil, fmt.Errorf("tabular: read: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		records = append(records, rec)
	}

	ds := FromGrid(records, opts)
	ds.Skipped = skipped
	ds.Repaired = repaired
	return ds, nil
}

// repairQuotes finds lines that open a quoted field which is never closed,
// or which only a stray quote on a later line closes. Left alone, the reader
// folds the following lines into that one field. Each such line is re-split
// on comma and written back as a well-formed record, so line numbers stay
// the same.
func repairQuotes(text string, comma rune) (string, []int) {
	lines := strings.Split(text, "\n")
	var repaired []int
	for i := 0; i < len(lines); {
		open, stray, j := false, false, i
		for ; j < len(lines); j++ {
			var s bool
			open, s = quoteOpen(strings.TrimSuffix(lines[j], "\r"), comma, open)
			stray = stray || s
			if !open {
				break
			}
		}
		if j < len(lines) && (j == i || !stray) {
			i = j + 1
			continue
		}
		lines[i] = resplit(strings.TrimSuffix(lines[i], "\r"), comma)
		repaired = append(repaired, i+1)
		i++
	}
	if len(repaired) == 0 {
		return text, nil
	}
	return strings.Join(lines, "\n"), repaired
}

// quoteOpen reports whether a quoted field is still open at the end of line,
// given whether one was open at its start. A quote opens a field only at the
// field start, "" is an escaped quote and a quote closes the field only
// before comma or the end of the line. stray reports a quote inside a quoted
// field that does neither.
func quoteOpen(line string, comma rune, open bool) (stillOpen, stray bool) {
	rs := []rune(line)
	start := !open
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if open {
			if c != '"' {
				continue
			}
			switch {
			case i+1 < len(rs) && rs[i+1] == '"':
				i++
			case i+1 == len(rs) || rs[i+1] == comma:
				open = false
			default:
				stray = true
			}
			continue
		}
		switch {
		case c == comma:
			start = true
		case c == '"' && start:
			open, start = true, false
		case start && unicode.IsSpace(c):
		default:
			start = false
		}
	}
	return open, stray
}

func resplit(line string, comma rune) string {
	fields := strings.Split(line, string(comma))
	for i, f := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = comma
	_ = w.Write(fields)
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// FromGrid builds a Dataset from pre-split rows, e.g. an xlsx sheet.
// Blank rows are ignored the same way Parse ignores blank lines.
func FromGrid(grid [][]string, opts Options) *Dataset {
	rows := make([][]string, 0, len(grid))
	for _, g := range grid {
		if !isBlank(g) {
			rows = append(rows, g)
		}
	}

	var names []string
	if opts.Header && len(rows) > 0 {
		names = make([]string, len(rows[0]))
		for i, n := range rows[0] {
			names[i] = clean(n)
		}
		rows = rows[1:]
	} else {
		width := 0
		for _, rec := range rows {
			width = max(width, len(rec))
		}
		names = make([]string, width)
		for i := range names {
			names[i] = "column_" + strconv.Itoa(i+1)
		}
	}

	h := newHeader(names)
	ds := &Dataset{h: h, Rows: make([]Row, 0, len(rows))}
	for _, rec := range rows {
		cells := make([]Cell, len(names))
		for i := range names {
			if i < len(rec) {
				cells[i] = newCell(clean(rec[i]), opts.InferTypes)
			}
		}
		ds.Rows = append(ds.Rows, Row{h: h, cells: cells})
	}
	return ds
}

func newCell(text string, infer bool) Cell {
	c := Cell{Text: text}
	if infer && numericLiteral.MatchString(text) {
		if f, err := cast.ToFloat64E(text); err == nil {
			c.Number = f
			c.Numeric = true
		}
	}
	return c
}

// clean trims whitespace and strips one pair of surrounding quote characters.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
