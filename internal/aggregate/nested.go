package aggregate

import "slices"

// Nested is a two-level aggregate, e.g. month → product → sum.
type Nested struct {
	Outer Dimension
	Inner Dimension

	keys      []string
	innerKeys []string
	seenInner map[string]struct{}
	rows      map[string]*Aggregate
}

// NewNested returns an empty nested aggregate.
func NewNested(outer, inner Dimension) *Nested {
	return &Nested{
		Outer:     outer,
		Inner:     inner,
		seenInner: make(map[string]struct{}),
		rows:      make(map[string]*Aggregate),
	}
}

// Add accumulates v under (outer, inner).
func (n *Nested) Add(outer, inner string, v float64) {
	row, ok := n.rows[outer]
	if !ok {
		row = New(n.Inner)
		n.rows[outer] = row
		n.keys = append(n.keys, outer)
	}
	if _, ok := n.seenInner[inner]; !ok {
		n.seenInner[inner] = struct{}{}
		n.innerKeys = append(n.innerKeys, inner)
	}
	row.Add(inner, v)
}

// Get returns the sum for (outer, inner); missing pairs read as 0.
func (n *Nested) Get(outer, inner string) float64 {
	return n.rows[outer].Get(inner)
}

// OuterKeys returns outer keys in first-seen order.
func (n *Nested) OuterKeys() []string { return slices.Clone(n.keys) }

// InnerKeys returns every inner key seen under any outer key.
func (n *Nested) InnerKeys() []string { return slices.Clone(n.innerKeys) }

// Row returns the inner aggregate for outer, or an empty one.
func (n *Nested) Row(outer string) *Aggregate {
	if row, ok := n.rows[outer]; ok {
		return row
	}
	return New(n.Inner)
}

// Column returns, for one inner key, its value under each outer key in the
// given order. Missing pairs are 0.
func (n *Nested) Column(inner string, outerOrder []string) []Entry {
	out := make([]Entry, 0, len(outerOrder))
	for _, o := range outerOrder {
		out = append(out, Entry{Key: o, Value: n.Get(o, inner)})
	}
	return out
}

// Total sums all cells.
func (n *Nested) Total() float64 {
	var t float64
	for _, k := range n.keys {
		t += n.rows[k].Total()
	}
	return t
}

// ByPair aggregates rows into outer → inner sums in one pass.
func ByPair[T any](outer, inner Dimension, rows []T, outerKey, innerKey func(T) string, value func(T) float64) *Nested {
	n := NewNested(outer, inner)
	for _, r := range rows {
		n.Add(outerKey(r), innerKey(r), value(r))
	}
	return n
}
