// Package fetch retrieves single collection records over HTTP and classifies
// every outcome into the harvester's failure taxonomy.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_fetch_requests_total",
		Help: "Total fetch attempts by result status",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_fetch_duration_seconds",
		Help:    "Fetch attempt duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_fetch_failures_total",
		Help: "Failed fetch attempts by failure reason",
	}, []string{"reason"})
)

// Config holds the fetch client configuration.
type Config struct {
	// BaseURL is prepended to every identifier.
	BaseURL string

	// Suffix is appended after the identifier (the collection serves
	// record documents at <identifier>.json).
	Suffix string

	// Timeout applies to each individual attempt, not to retries as a whole.
	Timeout time.Duration

	// UserAgent identifies the harvester to the remote server.
	UserAgent string
}

// DefaultConfig returns the configuration used against the Louvre collection.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://collections.louvre.fr",
		Suffix:    ".json",
		Timeout:   30 * time.Second,
		UserAgent: "musecrawl-harvester/0.1.0",
	}
}

// Worker fetches one identifier. Client implements it; tests inject fakes.
type Worker interface {
	Fetch(ctx context.Context, id string) Outcome
}

// Client is the HTTP fetch worker.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a fetch client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{},
		config:     cfg,
		logger:     log.With().Str("component", "fetch").Logger(),
	}, nil
}

// URL builds the full request URL for an identifier.
func (c *Client) URL(id string) string {
	return c.config.BaseURL + id + c.config.Suffix
}

// Fetch performs one GET for one identifier and classifies the result.
// It is total: every failure path returns a typed Failure outcome.
func (c *Client) Fetch(ctx context.Context, id string) Outcome {
	url := c.URL(id)

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fetchFailuresTotal.WithLabelValues(string(ReasonTransport)).Inc()
		return failure(id, &FetchError{
			Reason:  ReasonTransport,
			Message: "build request",
			Err:     err,
		})
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	fetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := classifyTransport(err)
		c.logger.Warn().
			Err(err).
			Str("identifier", id).
			Str("reason", string(reason)).
			Msg("Fetch attempt failed")
		fetchRequestsTotal.WithLabelValues("error").Inc()
		fetchFailuresTotal.WithLabelValues(string(reason)).Inc()
		return failure(id, &FetchError{
			Reason:  reason,
			Message: "request " + url,
			Err:     err,
		})
	}
	defer resp.Body.Close()

	fetchRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Str("identifier", id).
			Int("status", resp.StatusCode).
			Msg("Non-success response")
		fetchFailuresTotal.WithLabelValues(string(ReasonHTTP)).Inc()
		return failure(id, &FetchError{
			Reason:     ReasonHTTP,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		})
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		c.logger.Warn().
			Str("identifier", id).
			Str("content_type", ct).
			Msg("Non-JSON response")
		fetchFailuresTotal.WithLabelValues(string(ReasonContentType)).Inc()
		return failure(id, &FetchError{
			Reason:     ReasonContentType,
			StatusCode: resp.StatusCode,
			Message:    "content type " + ct,
		})
	}

	var doc Document
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		fetchFailuresTotal.WithLabelValues(string(ReasonTransport)).Inc()
		return failure(id, &FetchError{
			Reason:     ReasonTransport,
			StatusCode: resp.StatusCode,
			Message:    "decode body",
			Err:        err,
		})
	}

	return success(id, doc)
}

// classifyTransport separates timeouts from other connection-level failures.
func classifyTransport(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
