package ledger

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	initCalls   int
	recorded    []Run
	recentLimit int
	closed      int
}

func (f *fakeStore) Init(ctx context.Context) error { f.initCalls++; return nil }

func (f *fakeStore) RecordRun(ctx context.Context, run Run) error {
	f.recorded = append(f.recorded, run)
	return nil
}

func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	f.recentLimit = limit
	return f.recorded, nil
}

func (f *fakeStore) Close() error { f.closed++; return nil }

func TestRegisterAndNew(t *testing.T) {
	fake := &fakeStore{}
	Register("fake", func(ctx context.Context, cfg Config) (Store, error) {
		return fake, nil
	})

	st, err := New(context.Background(), Config{Kind: "fake", DSN: "ignored"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if st != Store(fake) {
		t.Fatalf("New returned a different store")
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake" {
			found = true
		}
	}
	if !found {
		t.Errorf("Kinds() missing registered kind: %v", Kinds())
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("want ErrUnknownKind, got %v", err)
	}

	_, err = New(context.Background(), Config{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("empty kind: want ErrUnknownKind, got %v", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() { Register("", func(ctx context.Context, cfg Config) (Store, error) { return nil, nil }) })
	mustPanic("nil factory", func() { Register("nilfac", nil) })

	Register("dup", func(ctx context.Context, cfg Config) (Store, error) { return nil, nil })
	mustPanic("duplicate kind", func() { Register("dup", func(ctx context.Context, cfg Config) (Store, error) { return nil, nil }) })
}

func TestConfigTableName(t *testing.T) {
	t.Parallel()

	if got := (Config{}).TableName(); got != DefaultTable {
		t.Errorf("TableName() = %q, want %q", got, DefaultTable)
	}
	if got := (Config{Table: "audit_runs"}).TableName(); got != "audit_runs" {
		t.Errorf("TableName() = %q, want audit_runs", got)
	}
}
