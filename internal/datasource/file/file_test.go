package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.sql")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return path
}

func TestReadAll(t *testing.T) {
	t.Parallel()

	want := []byte("INSERT INTO kb (id) VALUES (1);\n")
	src := NewLocal(writeTemp(t, want))

	got, err := src.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadAll = %q, want %q", got, want)
	}
}

func TestReadAllCap(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 100)
	path := writeTemp(t, data)

	// Cap above size: fine.
	if _, err := NewLocal(path).WithMaxBytes(100).ReadAll(context.Background()); err != nil {
		t.Errorf("cap == size should pass: %v", err)
	}

	// Cap below size: refuse rather than truncate.
	_, err := NewLocal(path).WithMaxBytes(99).ReadAll(context.Background())
	if err == nil {
		t.Fatalf("cap < size should fail")
	}
	if !strings.Contains(err.Error(), "cap") {
		t.Errorf("error should mention the cap: %v", err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewLocal(filepath.Join(t.TempDir(), "nope.sql")).ReadAll(context.Background())
	if err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestOpenCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal(writeTemp(t, []byte("x"))).Open(ctx)
	if err == nil {
		t.Fatalf("canceled context should fail")
	}
}
