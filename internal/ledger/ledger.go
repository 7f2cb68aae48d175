// Package ledger records completed sync runs for audit.
//
// The ledger is append-only: one row per run, written once when the run
// finishes. Backends register themselves under a kind string from init();
// the blank-import aggregator kbsync/internal/ledger/all pulls in every
// built-in backend so commands select one by config alone.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kbsync/internal/config"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultTable is the runs table name when Config.Table is empty.
const DefaultTable = "sync_runs"

// Run is one recorded sync run.
type Run struct {
	ID         string
	Job        string
	Source     string
	Statements int
	Rows       int
	Categories int
	Files      int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the backend-agnostic ledger interface.
//
// Implementations must be safe for concurrent use; the service mode records
// runs from multiple workers.
type Store interface {
	// Init creates the runs table when missing. Idempotent; call once at
	// startup.
	Init(ctx context.Context) error

	// RecordRun appends one run row. Re-recording the same run ID must not
	// duplicate the row (backends use the driver's idempotent insert form).
	RecordRun(ctx context.Context, run Run) error

	// RecentRuns returns up to limit runs, most recent first. limit <= 0
	// means a backend default.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	// Close releases connections. Treat as "call once".
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Options config.Options
}

// TableName returns the configured table or the default.
func (c Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Factory builds a Store for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Store, error)

// ErrUnknownKind is returned by New for kinds no backend registered.
var ErrUnknownKind = errors.New("ledger: unknown kind")

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend factory under kind. Call from an init()
// function in the backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. Failing fast here avoids ambiguous
//     backend selection.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("ledger: Register called with empty kind")
	}
	if f == nil {
		panic("ledger: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("ledger: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store using the registered factory for cfg.Kind.
//
// Errors:
//   - ErrUnknownKind (wrapped) when cfg.Kind is empty or unregistered.
//   - Whatever the factory returns.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnknownKind)
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for diagnostics.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
