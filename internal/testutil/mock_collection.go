// Package testutil provides testing utilities for the harvester.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock collection endpoint.
type MockResponse struct {
	StatusCode  int
	Body        string
	ContentType string
	Delay       time.Duration
}

// MockCollection is a configurable mock of the remote collection server. It
// tracks request counts per path and the peak number of requests it served
// concurrently, which lets tests verify the limiter bound and resume
// behavior ("zero additional network calls").
type MockCollection struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requestCount  int
	pathCounts    map[string]int
	inFlight      int
	maxConcurrent int
}

// NewMockCollection creates a mock collection server. Paths without a
// configured handler answer with a minimal JSON record.
func NewMockCollection() *MockCollection {
	mock := &MockCollection{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.inFlight++
		if mock.inFlight > mock.maxConcurrent {
			mock.maxConcurrent = mock.inFlight
		}
		handler := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if handler != nil {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL, usable as the fetch client's BaseURL.
func (m *MockCollection) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCollection) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCollection) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.maxConcurrent = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCollection) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCollection) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		ct := resp.ContentType
		if ct == "" {
			ct = "application/json; charset=utf-8"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetRecord configures a path to serve the given record as JSON.
func (m *MockCollection) SetRecord(path string, record map[string]any) {
	body, _ := json.Marshal(record)
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
	})
}

// SetFlaky configures a path to fail with the given status a number of
// times before serving the record, for retry tests.
func (m *MockCollection) SetFlaky(path string, failures, failStatus int, record map[string]any) {
	body, _ := json.Marshal(record)
	var mu sync.Mutex
	remaining := failures

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := remaining > 0
		if fail {
			remaining--
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if fail {
			w.WriteHeader(failStatus)
			w.Write([]byte(`{"error": "try again"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// RequestCount returns the total number of requests served.
func (m *MockCollection) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PathCount returns the number of requests served for one path.
func (m *MockCollection) PathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[path]
}

// MaxConcurrent returns the peak number of simultaneously served requests.
func (m *MockCollection) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}

// defaultHandler serves a minimal collection record.
func (m *MockCollection) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	record, _ := json.Marshal(map[string]any{
		"url":   r.URL.Path,
		"title": "Untitled",
	})
	w.Write(record)
}
