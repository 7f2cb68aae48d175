package category

import (
	"reflect"
	"testing"
)

// TestAggregator_RootSegmentBucketing verifies dotted identifiers bucket by
// their first segment only.
func TestAggregator_RootSegmentBucketing(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Add(map[string]any{"category_id": "7.3", "question": "q1", "answer": "a1"})
	a.Add(map[string]any{"category_id": "7.9.2", "question": "q2", "answer": "a2"})
	a.Add(map[string]any{"category_id": "7", "question": "q3", "answer": "a3"})

	m := a.Result()
	if m.Len() != 1 {
		t.Fatalf("expected 1 bucket, got %d (%v)", m.Len(), m.Keys())
	}
	items := m.Items("7")
	if len(items) != 3 {
		t.Fatalf("expected 3 items in bucket 7, got %d", len(items))
	}
	if items[0].Question != "q1" || items[2].Question != "q3" {
		t.Fatalf("items out of arrival order: %v", items)
	}
}

// TestAggregator_KeyOrderIsFirstSeen verifies bucket iteration order matches
// the order categories first appeared, not lexical order.
func TestAggregator_KeyOrderIsFirstSeen(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	for _, id := range []string{"9", "2.1", "banana", "2.7", "9.9"} {
		a.Add(map[string]any{"category_id": id, "question": "q"})
	}

	want := []string{"9", "2", "banana"}
	if got := a.Result().Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected key order %v, got %v", want, got)
	}
}

// TestAggregator_CatIDFallback verifies cat_id is used when category_id is
// absent or empty.
func TestAggregator_CatIDFallback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  map[string]any
		key  string
	}{
		{"cat_id only", map[string]any{"cat_id": "3", "question": "q"}, "3"},
		{"empty category_id", map[string]any{"category_id": "", "cat_id": "4.1"}, "4"},
		{"null category_id", map[string]any{"category_id": nil, "cat_id": "5"}, "5"},
		{"category_id wins", map[string]any{"category_id": "1", "cat_id": "2"}, "1"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := NewAggregator()
			a.Add(tc.rec)
			m := a.Result()
			if m.Len() != 1 || len(m.Items(tc.key)) != 1 {
				t.Fatalf("expected one item in bucket %q, got keys %v", tc.key, m.Keys())
			}
		})
	}
}

// TestAggregator_DropsUnkeyedRecords verifies the silent-drop rules: both
// fields missing/empty/null, or a root segment that trims to nothing.
func TestAggregator_DropsUnkeyedRecords(t *testing.T) {
	t.Parallel()

	recs := []map[string]any{
		{"question": "no category at all"},
		{"category_id": "", "cat_id": ""},
		{"category_id": nil, "cat_id": nil},
		{"category_id": ".leading dot"},
		{"category_id": "   .x"},
		{"category_id": "   "},
		{"cat_id": " . "},
	}

	a := NewAggregator()
	for _, r := range recs {
		a.Add(r)
	}
	if got := a.Result().Len(); got != 0 {
		t.Fatalf("expected all records dropped, got %d buckets (%v)", got, a.Result().Keys())
	}
}

// TestAggregator_RootTrimming verifies whitespace around the root segment is
// trimmed before bucketing.
func TestAggregator_RootTrimming(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Add(map[string]any{"category_id": " 7 .3", "question": "q"})

	m := a.Result()
	if m.Len() != 1 || len(m.Items("7")) != 1 {
		t.Fatalf("expected bucket %q, got keys %v", "7", m.Keys())
	}
}

// TestItemFallbacks pins the short/full preference rules, including null and
// empty values falling through.
func TestItemFallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  map[string]any
		want Item
	}{
		{
			"both present",
			map[string]any{"category_id": "1", "question": "q", "answer": "a", "description": "d"},
			Item{Question: "q", Short: "a", Full: "d"},
		},
		{
			"answer only",
			map[string]any{"category_id": "1", "question": "q", "answer": "a"},
			Item{Question: "q", Short: "a", Full: "a"},
		},
		{
			"description only",
			map[string]any{"category_id": "1", "question": "q", "description": "d"},
			Item{Question: "q", Short: "d", Full: "d"},
		},
		{
			"null answer falls back",
			map[string]any{"category_id": "1", "question": "q", "answer": nil, "description": "d"},
			Item{Question: "q", Short: "d", Full: "d"},
		},
		{
			"empty description falls back",
			map[string]any{"category_id": "1", "question": "q", "answer": "a", "description": ""},
			Item{Question: "q", Short: "a", Full: "a"},
		},
		{
			"neither present",
			map[string]any{"category_id": "1", "question": "q"},
			Item{Question: "q"},
		},
		{
			"null question reads empty",
			map[string]any{"category_id": "1", "question": nil, "answer": "a"},
			Item{Short: "a", Full: "a"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := NewAggregator()
			a.Add(tc.rec)
			items := a.Result().Items("1")
			if len(items) != 1 {
				t.Fatalf("expected one item, got %d", len(items))
			}
			if items[0] != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, items[0])
			}
		})
	}
}

// TestMap_UnknownKey verifies lookups for unseen keys return nil.
func TestMap_UnknownKey(t *testing.T) {
	t.Parallel()

	m := NewMap()
	if m.Items("nope") != nil {
		t.Fatal("expected nil bucket for unknown key")
	}
	if m.Len() != 0 || len(m.Keys()) != 0 {
		t.Fatalf("expected empty map, got %v", m.Keys())
	}
}
