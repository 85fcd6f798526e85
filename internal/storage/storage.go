// Package storage persists the final results report, the pipeline's one
// durable artifact. Backends: local file and S3 (the extractor historically
// ran as a Lambda, so S3 is the deployed sink).
package storage

import (
	"context"
	"fmt"

	"github.com/hotosm/tm-extractor/internal/domain"
)

// ResultStore writes a completed report.
type ResultStore interface {
	// Save persists the report. It must only be called with a complete
	// report; partial reports from a cancelled run are not persisted.
	Save(ctx context.Context, report domain.Report) error

	// Location describes where the report goes, for logging.
	Location() string
}

// Config selects and configures a results backend.
type Config struct {
	Backend string // local, s3
	Path    string // local file path

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3Key       string
	S3UseSSL    bool
}

// NewResultStore creates a ResultStore for the configured backend.
func NewResultStore(cfg *Config) (ResultStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Path), nil
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Backend)
	}
}
