package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hotosm/tm-extractor/internal/domain"
)

// LocalStore writes the report to a file on local disk.
type LocalStore struct {
	path string
}

// NewLocalStore creates a local-file result store.
func NewLocalStore(path string) *LocalStore {
	if path == "" {
		path = "result.json"
	}
	return &LocalStore{path: path}
}

// Save writes the report atomically: a temp file in the same directory is
// renamed over the target so a crash never leaves a half-written artifact.
func (s *LocalStore) Save(_ context.Context, report domain.Report) error {
	data, err := report.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".result-*.json")
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write results: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// Location returns the target file path.
func (s *LocalStore) Location() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return s.path
	}
	return abs
}
