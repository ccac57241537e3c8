package sales

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/vinodismyname/salesdash/internal/tabular"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnknownSchema is returned for unrecognized schema names or fields.
	ErrUnknownSchema = errors.New("unknown schema")
)

// Field is a logical column of a sales or target file.
type Field string

const (
	FieldPeriod         Field = "period"
	FieldProduct        Field = "product"
	FieldStore          Field = "store"
	FieldArea           Field = "area"
	FieldAmount         Field = "amount"
	FieldQuantity       Field = "quantity"
	FieldTargetAmount   Field = "target_amount"
	FieldTargetQuantity Field = "target_quantity"
)

var (
	salesFields    = []Field{FieldPeriod, FieldProduct, FieldStore, FieldArea, FieldAmount, FieldQuantity}
	targetFields   = []Field{FieldPeriod, FieldProduct, FieldTargetAmount, FieldTargetQuantity}
	salesRequired  = []Field{FieldPeriod, FieldProduct, FieldAmount}
	targetRequired = []Field{FieldPeriod, FieldProduct, FieldTargetAmount}
)

// Schema names the header used for each logical field.
type Schema struct {
	Name    string
	Sales   map[Field]string
	Targets map[Field]string
}

// Canonical uses plain ASCII headers.
var Canonical = Schema{
	Name: "canonical",
	Sales: map[Field]string{
		FieldPeriod:   "month",
		FieldProduct:  "product",
		FieldStore:    "store",
		FieldArea:     "area",
		FieldAmount:   "total_amount",
		FieldQuantity: "total_quantity",
	},
	Targets: map[Field]string{
		FieldPeriod:         "period",
		FieldProduct:        "product",
		FieldTargetAmount:   "target_amount",
		FieldTargetQuantity: "target_quantity",
	},
}

// Japanese matches the legacy export headers.
var Japanese = Schema{
	Name: "ja",
	Sales: map[Field]string{
		FieldPeriod:   "年月",
		FieldProduct:  "商品名",
		FieldStore:    "店舗名",
		FieldArea:     "区",
		FieldAmount:   "合計売上金額",
		FieldQuantity: "合計販売数量",
	},
	Targets: map[Field]string{
		FieldPeriod:         "期間",
		FieldProduct:        "商品名",
		FieldTargetAmount:   "売上目標",
		FieldTargetQuantity: "販売数量目標",
	},
}

// Lookup returns a built-in schema by name. "custom" builds one from the
// given field → header maps layered over Canonical.
func Lookup(name string, sales, targets map[string]string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "canonical":
		return Canonical, nil
	case "ja", "japanese":
		return Japanese, nil
	case "custom":
		return Custom(sales, targets)
	}
	return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
}

// Custom overrides Canonical headers with the supplied mapping.
func Custom(sales, targets map[string]string) (Schema, error) {
	s := Schema{
		Name:    "custom",
		Sales:   maps.Clone(Canonical.Sales),
		Targets: maps.Clone(Canonical.Targets),
	}
	if err := overlay(s.Sales, salesFields, sales); err != nil {
		return Schema{}, fmt.Errorf("sales columns: %w", err)
	}
	if err := overlay(s.Targets, targetFields, targets); err != nil {
		return Schema{}, fmt.Errorf("target columns: %w", err)
	}
	return s, nil
}

func overlay(dst map[Field]string, allowed []Field, src map[string]string) error {
	for k, header := range src {
		f := Field(strings.ToLower(strings.TrimSpace(k)))
		if !lo.Contains(allowed, f) {
			return fmt.Errorf("%w: field %q", ErrUnknownSchema, k)
		}
		if h := strings.TrimSpace(header); h != "" {
			dst[f] = h
		}
	}
	return nil
}

// columns maps each logical field present in a dataset to its header.
type columns map[Field]string

// resolve matches schema headers against the dataset header ignoring case
// and surrounding whitespace.
func resolve(ds *tabular.Dataset, want map[Field]string, required []Field, kind string) (columns, error) {
	byKey := make(map[string]string, len(ds.Columns()))
	for _, c := range ds.Columns() {
		k := headerKey(c)
		if _, dup := byKey[k]; !dup {
			byKey[k] = c
		}
	}

	cols := make(columns, len(want))
	for f, header := range want {
		if actual, ok := byKey[headerKey(header)]; ok {
			cols[f] = actual
		}
	}

	var missing []string
	for _, f := range required {
		if _, ok := cols[f]; !ok {
			missing = append(missing, want[f])
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s file lacks %s", ErrMissingColumn, kind, strings.Join(missing, ", "))
	}
	return cols, nil
}

func headerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
