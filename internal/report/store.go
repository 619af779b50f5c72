// Package report owns the append-only per-target crash report files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/covefuzz/covefuzz/internal/ferrors"
	"github.com/covefuzz/covefuzz/internal/invariant"
)

// Store opens and appends to one bad_<target>.txt file per target under a
// shared output directory. It knows only how to append; whether an entry
// is novel is decided by the caller (internal/triage.Dedup).
type Store struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewStore returns a store rooted at dir. dir is created lazily on first
// Append rather than eagerly at construction.
func NewStore(dir string) *Store {
	return &Store{dir: dir, files: make(map[string]*os.File)}
}

// Append writes entry's formatted bytes to bad_<target>.txt, opening (and,
// on first use, creating the output directory and file) as needed.
// Flushes before returning so a crashing caller never loses a partially
// buffered report.
func (s *Store) Append(target string, entry []byte) error {
	invariant.Precondition(target != "", "report target name must not be empty")

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileFor(target)
	if err != nil {
		return err
	}
	if _, err := f.Write(entry); err != nil {
		return ferrors.Wrap(ferrors.CategoryReportWrite, "append crash entry", err)
	}
	return f.Sync()
}

func (s *Store) fileFor(target string) (*os.File, error) {
	if f, ok := s.files[target]; ok {
		return f, nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryReportWrite, "create output directory", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("bad_%s.txt", target))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryReportWrite, "open report file", err)
	}
	s.files[target] = f
	return f, nil
}

// Close releases every open report file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.files = make(map[string]*os.File)
	return firstErr
}
