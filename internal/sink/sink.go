// Package sink serializes category buckets to per-category JSON files.
//
// One file per category, named by sanitizing the category key, written
// atomically so a crashed run never leaves a truncated file behind. The sink
// consumes a finished category.Map and never reaches back into parsing.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"kbsync/internal/category"
)

// Pre-compiled regexes avoid recompilation on every call.
var (
	// unsafeRunRe matches runs of characters that are not word characters,
	// dots, or hyphens.
	unsafeRunRe = regexp.MustCompile(`[^\w.\-]+`)

	underscoreRunRe = regexp.MustCompile(`_{2,}`)
)

// SafeFileName converts a category key into a filesystem-safe base name:
// runs of characters outside [A-Za-z0-9_.-] become a single underscore,
// repeated underscores collapse to one, and leading/trailing underscores are
// trimmed. A key that sanitizes to nothing becomes the literal "file".
func SafeFileName(key string) string {
	s := unsafeRunRe.ReplaceAllString(key, "_")
	s = underscoreRunRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "file"
	}
	return s
}

// Writer writes category buckets to a directory.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at dir. The directory is created on the
// first WriteAll call.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteAll serializes every bucket of m to <dir>/<SafeFileName(key)>.json in
// category order and returns the written paths in that order. Distinct keys
// that sanitize to the same name get a numeric suffix (name_2.json, ...) so
// no bucket overwrites another. On error the paths written so far are
// returned alongside it.
func (w *Writer) WriteAll(m *category.Map) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	used := make(map[string]struct{}, m.Len())
	files := make([]string, 0, m.Len())

	for _, key := range m.Keys() {
		base := SafeFileName(key)
		name := base
		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = struct{}{}

		path := filepath.Join(w.dir, name+".json")
		if err := writeJSONFile(path, m.Items(key)); err != nil {
			return files, fmt.Errorf("write category %q: %w", key, err)
		}
		files = append(files, path)
	}

	return files, nil
}

// writeJSONFile writes v as indented JSON to path atomically: encode to a
// temp file in the same directory, then rename into place. The temp file is
// removed on any failure.
func writeJSONFile(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kbsync-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	encErr := enc.Encode(v)
	closeErr := tmp.Close()

	if encErr != nil {
		_ = os.Remove(tmpName)
		return encErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpName)
		return closeErr
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
