// Package metrics provides the centralized Prometheus metrics registry for
// the harvester. All metrics are defined in their respective packages
// (fetch, limiter, batch, artifact) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Fetch Metrics (pkg/fetch):
//   - harvest_fetch_requests_total{status} (Counter): Fetch attempts by HTTP status or "error"
//   - harvest_fetch_duration_seconds (Histogram): Fetch attempt duration
//   - harvest_fetch_failures_total{reason} (Counter): Failed attempts by reason
//     (timeout, http_error, content_type_mismatch, transport_error)
//
// Retry Metrics (pkg/fetch):
//   - harvest_retries_total{reason} (Counter): Retry attempts by failure reason
//   - harvest_retry_exhausted_total{reason} (Counter): Identifiers that exhausted
//     all attempts, by last failure reason
//
// Limiter Metrics (pkg/limiter):
//   - harvest_permits_in_flight (Gauge): Permits currently held by active network calls
//
// Batch Metrics (pkg/batch):
//   - harvest_batches_total{state} (Counter): Batches finished by terminal state
//     (persisted, skipped, collected)
//   - harvest_identifiers_total{result} (Counter): Identifiers by terminal result
//     (success, failure)
//
// Artifact Metrics (pkg/artifact):
//   - harvest_artifacts_written_total (Counter): Batch artifacts durably written
//   - harvest_artifact_rows_total (Counter): Rows written across all artifacts
//
// Example Prometheus Queries:
//
//   # Fetch success rate
//   1 - (sum(rate(harvest_retry_exhausted_total[5m])) /
//        sum(rate(harvest_fetch_requests_total[5m])))
//
//   # Concurrency headroom (against a capacity of 50)
//   50 - harvest_permits_in_flight
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(harvest_fetch_duration_seconds_bucket[5m]))
//
//   # Terminal failure rate by reason
//   rate(harvest_retry_exhausted_total[5m])
