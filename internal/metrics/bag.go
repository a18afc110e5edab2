package metrics

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Bag is the immutable, flat result of one aggregation. A key present with a
// nil value means "not computable".
type Bag struct {
	values map[string]any
}

// Get returns the raw value stored under key.
func (b Bag) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Has reports whether key was produced, even if its value is nil.
func (b Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Decimal returns a decimal metric. ok is false for missing or nil values.
func (b Bag) Decimal(key string) (decimal.Decimal, bool) {
	d, ok := b.values[key].(decimal.Decimal)
	return d, ok
}

// Int returns a count metric.
func (b Bag) Int(key string) (int, bool) {
	n, ok := b.values[key].(int)
	return n, ok
}

// String returns a label metric.
func (b Bag) String(key string) (string, bool) {
	s, ok := b.values[key].(string)
	return s, ok
}

// Breakdown returns a copy of a nested per-group metric.
func (b Bag) Breakdown(key string) (Breakdown, bool) {
	src, ok := b.values[key].(Breakdown)
	if !ok {
		return nil, false
	}
	out := make(Breakdown, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, true
}

// Keys returns every metric name in sorted order.
func (b Bag) Keys() []string {
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports how many metrics the bag holds.
func (b Bag) Len() int { return len(b.values) }

// MarshalJSON encodes the bag as a flat object keyed by metric name. An empty
// bag encodes as {}.
func (b Bag) MarshalJSON() ([]byte, error) {
	if b.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.values)
}
