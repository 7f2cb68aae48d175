// Package file reads dump bytes from local disk.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source reads one local file.
type Source struct {
	path     string
	maxBytes int64
}

// NewLocal returns a Source for path. maxBytes caps how much ReadAll will
// accept; 0 means no cap.
func NewLocal(path string) *Source {
	return &Source{path: path}
}

// WithMaxBytes sets the read cap and returns the source for chaining.
func (s *Source) WithMaxBytes(n int64) *Source {
	s.maxBytes = n
	return s
}

// Open opens the file for streaming reads. The caller owns the ReadCloser.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	return f, nil
}

// ReadAll reads the whole file into memory. When a cap is set and the file
// is larger, ReadAll fails rather than return a truncated dump.
func (s *Source) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if s.maxBytes <= 0 {
		buf, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		return buf, nil
	}

	// Read one byte past the cap so oversize is detectable.
	buf, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if int64(len(buf)) > s.maxBytes {
		return nil, fmt.Errorf("read %s: exceeds %d byte cap", s.path, s.maxBytes)
	}
	return buf, nil
}
