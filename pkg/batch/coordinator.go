// Package batch drives the harvest run: it partitions the identifier list
// into fixed-size batches, fans each batch out through the concurrency
// limiter, collects results in input order and hands them to the artifact
// store, skipping batches the store already holds.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/musecrawl/harvester/pkg/artifact"
	"github.com/musecrawl/harvester/pkg/fetch"
	"github.com/musecrawl/harvester/pkg/limiter"
)

// Prometheus metrics for batch processing.
var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_batches_total",
		Help: "Batches finished by terminal state",
	}, []string{"state"})

	identifiersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_identifiers_total",
		Help: "Identifiers fetched by terminal result",
	}, []string{"result"})
)

// State tracks a batch through its lifecycle. Persisted and Skipped are
// terminal; Collected is terminal only for batches where every identifier
// failed and no artifact was written.
type State string

const (
	StatePlanned   State = "planned"
	StateFetching  State = "fetching"
	StateCollected State = "collected"
	StatePersisted State = "persisted"
	StateSkipped   State = "skipped"
)

// Config holds the coordinator configuration. It replaces what used to be
// ambient module-level settings in earlier harvest tooling.
type Config struct {
	// BatchSize is the number of identifiers per batch.
	BatchSize int

	// Concurrency caps in-flight network calls across the whole run.
	Concurrency int

	// Cooldown is the pause between batches, bounding load on the remote
	// server. It is not applied after the final batch.
	Cooldown time.Duration

	// Policy is the per-identifier retry policy.
	Policy fetch.Policy
}

// DefaultConfig returns the configuration the harvester runs with in
// production: 5000-record batches, 50 concurrent requests, 5s cooldown.
func DefaultConfig() Config {
	return Config{
		BatchSize:   5000,
		Concurrency: limiter.DefaultCapacity,
		Cooldown:    5 * time.Second,
		Policy:      fetch.DefaultPolicy(),
	}
}

// Store persists collected batches and reports which are already complete.
// *artifact.Store implements it.
type Store interface {
	IsComplete(sequence int) bool
	Persist(outcomes []fetch.Outcome, sequence int) (path string, rows int, err error)
}

// Summary describes one batch after it reached a terminal state.
type Summary struct {
	Sequence  int
	State     State
	Requested int
	Succeeded int
	Failed    int
	Rows      int
	Path      string
}

// Report aggregates a whole run. Skipped batches contribute to Batches but
// not to the fetch totals, since they cost no network activity.
type Report struct {
	Batches     []Summary
	Identifiers int
	Succeeded   int
	Failed      int
	Rows        int
}

// Coordinator processes batches strictly sequentially: batch N+1 does not
// start fetching until batch N is persisted or skipped.
type Coordinator struct {
	config  Config
	retrier *fetch.Retrier
	store   Store
	logger  zerolog.Logger
}

// New creates a coordinator around a fetch worker and an artifact store.
// The concurrency limiter is created here and shared by every retry-wrapped
// fetch task of the run.
func New(cfg Config, worker fetch.Worker, store Store) (*Coordinator, error) {
	if worker == nil {
		return nil, fmt.Errorf("fetch worker is required")
	}
	if store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = limiter.DefaultCapacity
	}

	pool := limiter.New(cfg.Concurrency)

	return &Coordinator{
		config:  cfg,
		retrier: fetch.NewRetrier(worker, pool, cfg.Policy),
		store:   store,
		logger:  log.With().Str("component", "coordinator").Logger(),
	}, nil
}

// Run harvests the full identifier list and returns the run report. Batches
// with an existing artifact are skipped without network activity. A batch
// where every identifier failed is logged and produces no artifact; only an
// unwritable output location or run cancellation aborts the run.
func (c *Coordinator) Run(ctx context.Context, ids []string) (Report, error) {
	spans := Plan(len(ids), c.config.BatchSize)
	report := Report{Identifiers: len(ids)}

	c.logger.Info().
		Int("identifiers", len(ids)).
		Int("batches", len(spans)).
		Int("batch_size", c.config.BatchSize).
		Int("concurrency", c.config.Concurrency).
		Msg("Starting harvest run")

	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run cancelled before batch %d: %w", span.Sequence, err)
		}

		summary, err := c.runBatch(ctx, span, ids[span.Start:span.End])
		report.Batches = append(report.Batches, summary)
		report.Succeeded += summary.Succeeded
		report.Failed += summary.Failed
		report.Rows += summary.Rows
		if err != nil {
			return report, err
		}

		if i < len(spans)-1 && c.config.Cooldown > 0 {
			c.logger.Debug().
				Dur("cooldown", c.config.Cooldown).
				Msg("Pausing before next batch")
			select {
			case <-ctx.Done():
				return report, fmt.Errorf("run cancelled during cooldown: %w", ctx.Err())
			case <-time.After(c.config.Cooldown):
			}
		}
	}

	c.logger.Info().
		Int("identifiers", report.Identifiers).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("rows", report.Rows).
		Int("batches", len(report.Batches)).
		Msg("Harvest run complete")

	return report, nil
}

// runBatch takes one batch from Planned to a terminal state.
func (c *Coordinator) runBatch(ctx context.Context, span Span, ids []string) (Summary, error) {
	summary := Summary{
		Sequence:  span.Sequence,
		State:     StatePlanned,
		Requested: len(ids),
	}

	if c.store.IsComplete(span.Sequence) {
		c.logger.Info().
			Int("batch", span.Sequence).
			Msg("Batch already persisted, skipping")
		batchesTotal.WithLabelValues(string(StateSkipped)).Inc()
		summary.State = StateSkipped
		return summary, nil
	}

	summary.State = StateFetching
	c.logger.Info().
		Int("batch", span.Sequence).
		Int("requested", len(ids)).
		Msg("Fetching batch")

	// One task per identifier, each permit-gated by the shared limiter.
	// Outcomes land in an index-aligned slice so output order matches
	// input order regardless of completion order.
	outcomes := make([]fetch.Outcome, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			outcomes[i] = c.retrier.Fetch(ctx, id)
		}(i, id)
	}
	wg.Wait()

	// A cancellation during the fan-out surfaces as per-identifier
	// failures. Persisting such a batch would mark it complete and the
	// next run would skip it, losing the interrupted identifiers, so the
	// batch must end without an artifact.
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run cancelled during batch %d: %w", span.Sequence, err)
	}

	summary.State = StateCollected
	for _, out := range outcomes {
		if out.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	identifiersTotal.WithLabelValues("success").Add(float64(summary.Succeeded))
	identifiersTotal.WithLabelValues("failure").Add(float64(summary.Failed))

	c.logger.Info().
		Int("batch", span.Sequence).
		Int("requested", summary.Requested).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Batch collected")

	path, rows, err := c.store.Persist(outcomes, span.Sequence)
	if errors.Is(err, artifact.ErrEmptyBatch) {
		c.logger.Warn().
			Int("batch", span.Sequence).
			Msg("Every identifier in batch failed, no artifact written")
		batchesTotal.WithLabelValues(string(StateCollected)).Inc()
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("persist batch %d: %w", span.Sequence, err)
	}

	summary.State = StatePersisted
	summary.Rows = rows
	summary.Path = path
	batchesTotal.WithLabelValues(string(StatePersisted)).Inc()
	return summary, nil
}
