// Package limiter bounds the number of in-flight network calls across the
// whole run with a counting permit pool.
package limiter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the default number of concurrent network calls.
const DefaultCapacity = 50

var permitsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "harvest_permits_in_flight",
	Help: "Permits currently held by active network calls",
})

// Pool is a fixed-capacity permit pool. Every fetch attempt, retries
// included, must hold a permit for the duration of its network call and
// nothing else: permits are never held across backoff sleeps or batch
// boundaries, so the pool always drains.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int
}

// New creates a pool with the given capacity. Non-positive capacities fall
// back to DefaultCapacity.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	permitsInFlight.Inc()
	return nil
}

// Release returns a permit to the pool.
func (p *Pool) Release() {
	p.sem.Release(1)
	permitsInFlight.Dec()
}

// Capacity returns the fixed pool capacity.
func (p *Pool) Capacity() int {
	return p.capacity
}
