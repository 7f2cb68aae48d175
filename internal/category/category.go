// Package category buckets extracted dump rows by category root key.
//
// The root key is the substring of a row's category identifier before the
// first '.', so "7.3.1" lands in bucket "7". Sub-category information past
// the first dot is intentionally discarded. Rows without a usable category
// identifier are dropped, which is filtering, not an error.
package category

import (
	"errors"
	"strings"
)

// ErrNoCategories reports that an entire input produced no category buckets.
// Callers treat it as fatal for the surrounding workflow: it means the input
// was not a recognizable dump, and proceeding with an empty result would
// silently publish nothing.
var ErrNoCategories = errors.New("no categories extracted")

// Item is one knowledge-base entry derived from a dump row. Short prefers
// the row's answer column and falls back to description; Full prefers
// description and falls back to answer. The empty string counts as absent
// for both fallbacks.
type Item struct {
	Question string `json:"question"`
	Short    string `json:"short"`
	Full     string `json:"full"`
}

// Map is an insertion-order-preserving mapping from category root key to the
// items filed under it. Key order is first-seen order; items within a bucket
// keep arrival order. Both orderings are part of the output contract.
type Map struct {
	keys    []string
	buckets map[string][]Item
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{buckets: make(map[string][]Item)}
}

// Len reports the number of category buckets.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the category keys in first-seen order. The slice is owned by
// the Map; callers must not modify it.
func (m *Map) Keys() []string {
	return m.keys
}

// Items returns the bucket for key in arrival order, or nil when the key was
// never seen. The slice is owned by the Map; callers must not modify it.
func (m *Map) Items(key string) []Item {
	return m.buckets[key]
}

func (m *Map) add(key string, it Item) {
	if _, ok := m.buckets[key]; !ok {
		m.keys = append(m.keys, key)
		m.buckets[key] = []Item{}
	}
	m.buckets[key] = append(m.buckets[key], it)
}

// Aggregator folds row records into a Map.
type Aggregator struct {
	m *Map
}

// NewAggregator returns an Aggregator with an empty result Map.
func NewAggregator() *Aggregator {
	return &Aggregator{m: NewMap()}
}

// Add files one row record. The category identifier is read from the
// category_id field, falling back to cat_id; rows where both are absent or
// empty, or where the root segment is empty after trimming, are dropped.
func (a *Aggregator) Add(rec map[string]any) {
	key, ok := rootKey(rec)
	if !ok {
		return
	}
	a.m.add(key, itemFrom(rec))
}

// Result returns the accumulated Map. The Aggregator keeps writing to the
// same Map if Add is called again; callers hand the Map off only once the
// whole input has been folded.
func (a *Aggregator) Result() *Map {
	return a.m
}

// rootKey resolves the bucket key for a record per the drop rules above.
func rootKey(rec map[string]any) (string, bool) {
	raw := stringField(rec, "category_id")
	if raw == "" {
		raw = stringField(rec, "cat_id")
	}
	if raw == "" {
		return "", false
	}

	root := raw
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		root = raw[:i]
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return "", false
	}
	return root, true
}

// itemFrom builds an Item from a record, applying the short/full fallbacks.
func itemFrom(rec map[string]any) Item {
	answer := stringField(rec, "answer")
	description := stringField(rec, "description")

	short := answer
	if short == "" {
		short = description
	}
	full := description
	if full == "" {
		full = answer
	}

	return Item{
		Question: stringField(rec, "question"),
		Short:    short,
		Full:     full,
	}
}

// stringField reads a record field as a string. Absent fields and null
// markers read as the empty string.
func stringField(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}
