// Package config defines the JSON configuration for sync runs and its
// validation. A config file describes one job: where the dump comes from,
// where category files go, and which optional collaborators (vector index,
// run ledger) participate.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Sync is the root configuration document.
type Sync struct {
	Job     string  `json:"job"`
	Source  Source  `json:"source"`
	Output  Output  `json:"output"`
	Index   Index   `json:"index"`
	Ledger  Ledger  `json:"ledger"`
	Runtime Runtime `json:"runtime"`
}

// Source selects where dump bytes come from.
type Source struct {
	// Kind: "http" | "file"
	Kind string      `json:"kind"`
	HTTP *HTTPSource `json:"http,omitempty"`
	File *FileSource `json:"file,omitempty"`
}

// HTTPSource fetches dumps over HTTP(S). Exactly one of URL / URLFile should
// be set; URLFile points at a text file with one dump URL per line.
type HTTPSource struct {
	URL     string  `json:"url,omitempty"`
	URLFile string  `json:"url_file,omitempty"`
	Options Options `json:"options,omitempty"`
}

// FileSource reads a dump from local disk.
type FileSource struct {
	Path string `json:"path"`
	// MaxBytes caps how much is read; 0 means no cap.
	MaxBytes int64 `json:"max_bytes,omitempty"`
}

// Output says where per-category JSON files are written.
type Output struct {
	Dir string `json:"dir"`
}

// Index configures the optional vector-indexing step.
type Index struct {
	Enabled    bool    `json:"enabled"`
	Addr       string  `json:"addr"`
	Collection string  `json:"collection"`
	Dims       int     `json:"dims"`
	EmbedURL   string  `json:"embed_url"`
	EmbedModel string  `json:"embed_model"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Options    Options `json:"options,omitempty"`
}

// Ledger configures the optional run-ledger store. Kind selects a registered
// backend ("sqlite", "postgres", "mssql"); empty disables the ledger.
type Ledger struct {
	Kind    string  `json:"kind,omitempty"`
	DSN     string  `json:"dsn,omitempty"`
	Table   string  `json:"table,omitempty"`
	Options Options `json:"options,omitempty"`
}

// Runtime controls execution behavior.
type Runtime struct {
	// Workers is the number of concurrent sync runs when the source yields
	// multiple URLs. 0 means 1.
	Workers int `json:"workers"`
}

// Load reads and decodes a Sync config from a JSON file. It does not
// validate; callers run ValidateSync on the result.
func Load(path string) (Sync, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sync{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var s Sync
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Sync{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return s, nil
}

// Options carries backend-specific knobs that do not warrant first-class
// fields. Accessors tolerate JSON's loose typing (numbers decode as float64).
type Options map[string]any

// Bool returns the named option as a bool, or def when absent or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if o == nil {
		return def
	}
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// String returns the named option as a string, or def when absent.
func (o Options) String(key string, def string) string {
	if o == nil {
		return def
	}
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Int returns the named option as an int, or def when absent. JSON numbers
// arrive as float64; numeric strings are accepted too.
func (o Options) Int(key string, def int) int {
	if o == nil {
		return def
	}
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// StringMap returns the named option as map[string]string. Values that are
// not strings are skipped. Returns nil when the option is absent.
func (o Options) StringMap(key string) map[string]string {
	if o == nil {
		return nil
	}
	raw, ok := o[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Any returns the raw option value, or nil when absent.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}
