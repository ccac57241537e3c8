// Package aggregate groups records by a categorical key and sums a value.
// Aggregates keep first-seen key order; sorting for display is a separate,
// explicit step.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// Dimension tags what an aggregate's keys represent.
type Dimension string

const (
	Month   Dimension = "month"
	Product Dimension = "product"
	Area    Dimension = "area"
	Store   Dimension = "store"
)

// Entry is one key/value pair of an aggregate.
type Entry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Aggregate maps keys to running sums.
type Aggregate struct {
	Dimension Dimension

	keys []string
	sums map[string]float64
}

// New returns an empty aggregate for dim.
func New(dim Dimension) *Aggregate {
	return &Aggregate{Dimension: dim, sums: make(map[string]float64)}
}

// Add accumulates v under key.
func (a *Aggregate) Add(key string, v float64) {
	if _, ok := a.sums[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.sums[key] += v
}

// Get returns the sum for key, or 0 when the key was never seen.
func (a *Aggregate) Get(key string) float64 {
	if a == nil {
		return 0
	}
	return a.sums[key]
}

// Has reports whether key was seen.
func (a *Aggregate) Has(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a.sums[key]
	return ok
}

// Keys returns the keys in first-seen order.
func (a *Aggregate) Keys() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.keys)
}

// Len returns the number of distinct keys.
func (a *Aggregate) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Total sums all values.
func (a *Aggregate) Total() float64 {
	if a == nil {
		return 0
	}
	return lo.SumBy(a.keys, func(k string) float64 { return a.sums[k] })
}

// Entries returns all pairs in first-seen order.
func (a *Aggregate) Entries() []Entry {
	if a == nil {
		return []Entry{}
	}
	return lo.Map(a.keys, func(k string, _ int) Entry { return Entry{Key: k, Value: a.sums[k]} })
}

// SortedDesc returns entries ordered by value, largest first. Ties keep
// first-seen order.
func (a *Aggregate) SortedDesc() []Entry {
	out := a.Entries()
	slices.SortStableFunc(out, func(x, y Entry) int { return cmp.Compare(y.Value, x.Value) })
	return out
}

// TopN returns the n largest entries followed by one entry labelled other
// holding the sum of the rest. With n <= 0 or no tail the sorted entries
// are returned unchanged.
func (a *Aggregate) TopN(n int, other string) []Entry {
	sorted := a.SortedDesc()
	if n <= 0 || len(sorted) <= n {
		return sorted
	}
	rest := lo.SumBy(sorted[n:], func(e Entry) float64 { return e.Value })
	return append(sorted[:n:n], Entry{Key: other, Value: rest})
}

// By aggregates rows in a single pass: sum[key(row)] += value(row).
func By[T any](dim Dimension, rows []T, key func(T) string, value func(T) float64) *Aggregate {
	a := New(dim)
	for _, r := range rows {
		a.Add(key(r), value(r))
	}
	return a
}

// Filter keeps rows matching pred, preserving order.
func Filter[T any](rows []T, pred func(T) bool) []T {
	return lo.Filter(rows, func(r T, _ int) bool { return pred(r) })
}
