// Package artifact persists batch results as durable CSV artifacts and
// answers resume queries from their existence on disk.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/musecrawl/harvester/pkg/fetch"
)

// DefaultPrefix is the default artifact file name prefix.
const DefaultPrefix = "batch_"

// ErrEmptyBatch is returned when every identifier in a batch failed and no
// artifact is created for it.
var ErrEmptyBatch = errors.New("empty batch")

// Prometheus metrics for artifact operations.
var (
	artifactsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_artifacts_written_total",
		Help: "Batch artifacts durably written",
	})

	artifactRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_artifact_rows_total",
		Help: "Rows written across all batch artifacts",
	})
)

// Store writes batch artifacts into one output directory and reports which
// batches already have one. Artifact names are the prefix plus the 4-digit
// zero-padded batch sequence number.
type Store struct {
	dir    string
	prefix string
	logger zerolog.Logger
}

// New creates a store rooted at dir, creating the directory if needed. An
// output location that cannot be created is fatal to the run, so the error
// surfaces here rather than at the first batch.
func New(dir, prefix string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &Store{
		dir:    dir,
		prefix: prefix,
		logger: log.With().Str("component", "artifact").Logger(),
	}, nil
}

// Path returns the artifact path for a batch sequence number.
func (s *Store) Path(sequence int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%04d.csv", s.prefix, sequence))
}

// IsComplete reports whether the batch already has an artifact. Only
// existence is checked, never content.
func (s *Store) IsComplete(sequence int) bool {
	_, err := os.Stat(s.Path(sequence))
	return err == nil
}

// Persist filters the batch down to its successful documents, normalizes
// them into a uniform table and writes it as a new artifact. It returns the
// artifact path and row count, or ErrEmptyBatch when nothing survived the
// filter. An existing artifact for the same sequence number is left
// untouched and reported with zero rows written.
func (s *Store) Persist(outcomes []fetch.Outcome, sequence int) (string, int, error) {
	docs := make([]fetch.Document, 0, len(outcomes))
	for _, out := range outcomes {
		if out.OK() {
			docs = append(docs, out.Document)
		}
	}
	if len(docs) == 0 {
		return "", 0, fmt.Errorf("batch %d: %w", sequence, ErrEmptyBatch)
	}

	path := s.Path(sequence)
	if _, err := os.Stat(path); err == nil {
		s.logger.Info().
			Int("batch", sequence).
			Str("path", path).
			Msg("Artifact already exists, not overwriting")
		return path, 0, nil
	}

	columns, rows := Tabulate(docs)
	if err := WriteTable(path, columns, rows); err != nil {
		return "", 0, fmt.Errorf("write artifact %s: %w", path, err)
	}

	artifactsWrittenTotal.Inc()
	artifactRowsTotal.Add(float64(len(rows)))
	s.logger.Info().
		Int("batch", sequence).
		Int("rows", len(rows)).
		Int("columns", len(columns)).
		Str("path", path).
		Msg("Artifact written")

	return path, len(rows), nil
}
