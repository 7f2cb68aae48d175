package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"kbsync/internal/category"
)

// TestSafeFileName pins the sanitizer contract: unsafe runs collapse to one
// underscore, repeats collapse, edges trim, empty falls back to "file".
func TestSafeFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"7", "7"},
		{"faq", "faq"},
		{"a/b: c", "a_b_c"},
		{"dots.and-hyphens_ok", "dots.and-hyphens_ok"},
		{"  spaces  ", "spaces"},
		{"multi///slash", "multi_slash"},
		{"__underscored__", "underscored"},
		{"___", "file"},
		{"", "file"},
		{"!!!", "file"},
		{"café", "caf"},
		{"a !? b", "a_b"},
	}

	for _, tc := range cases {
		if got := SafeFileName(tc.in); got != tc.want {
			t.Fatalf("SafeFileName(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func buildMap(t *testing.T, rows []map[string]any) *category.Map {
	t.Helper()
	a := category.NewAggregator()
	for _, r := range rows {
		a.Add(r)
	}
	return a.Result()
}

// TestWriteAll_FilesAndContent verifies one file per category, named by the
// sanitized key, containing the bucket as a JSON array in arrival order.
func TestWriteAll_FilesAndContent(t *testing.T) {
	t.Parallel()

	m := buildMap(t, []map[string]any{
		{"category_id": "7.3", "question": "q1", "answer": "a1"},
		{"category_id": "misc/other", "question": "q2", "description": "d2"},
		{"category_id": "7", "question": "q3", "answer": "a3"},
	})

	dir := t.TempDir()
	files, err := NewWriter(dir).WriteAll(m)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	want := []string{
		filepath.Join(dir, "7.json"),
		filepath.Join(dir, "misc_other.json"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("expected files %v, got %v", want, files)
	}

	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read %s: %v", files[0], err)
	}
	var items []category.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 2 || items[0].Question != "q1" || items[1].Question != "q3" {
		t.Fatalf("bucket 7 content wrong: %+v", items)
	}
}

// TestWriteAll_CollisionSuffix verifies distinct keys that sanitize to the
// same name get numeric suffixes instead of overwriting each other.
func TestWriteAll_CollisionSuffix(t *testing.T) {
	t.Parallel()

	m := buildMap(t, []map[string]any{
		{"category_id": "a b", "question": "first"},
		{"category_id": "a_b", "question": "second"},
		{"category_id": "a/b", "question": "third"},
	})

	dir := t.TempDir()
	files, err := NewWriter(dir).WriteAll(m)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a_b.json"),
		filepath.Join(dir, "a_b_2.json"),
		filepath.Join(dir, "a_b_3.json"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
}

// TestWriteAll_NoTempLeftovers verifies the atomic write leaves only the
// final files in the output directory.
func TestWriteAll_NoTempLeftovers(t *testing.T) {
	t.Parallel()

	m := buildMap(t, []map[string]any{
		{"category_id": "1", "question": "q"},
		{"category_id": "2", "question": "q"},
	})

	dir := t.TempDir()
	if _, err := NewWriter(dir).WriteAll(m); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected exactly 2 files, got %v", names)
	}
}

// TestWriteAll_CreatesDir verifies the output directory is created when
// missing.
func TestWriteAll_CreatesDir(t *testing.T) {
	t.Parallel()

	m := buildMap(t, []map[string]any{{"category_id": "1", "question": "q"}})

	dir := filepath.Join(t.TempDir(), "nested", "out")
	files, err := NewWriter(dir).WriteAll(m)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}
	if _, err := os.Stat(files[0]); err != nil {
		t.Fatalf("stat written file: %v", err)
	}
}

// TestWriteAll_EmptyMap verifies an empty map writes nothing and succeeds;
// the zero-category failure belongs to the pipeline, not the sink.
func TestWriteAll_EmptyMap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files, err := NewWriter(dir).WriteAll(category.NewMap())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}
