package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()

	client, err := New(Config{
		BaseURL:   baseURL,
		Suffix:    ".json",
		Timeout:   timeout,
		UserAgent: "harvester-test/0.0.0",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected error for missing base URL, got nil")
	}

	client, err := New(Config{BaseURL: "https://collections.example.org"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if client.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.config.Timeout)
	}
}

func TestClient_URL(t *testing.T) {
	client := newTestClient(t, "https://collections.example.org", time.Second)

	got := client.URL("/ark:/53355/cl010066723")
	want := "https://collections.example.org/ark:/53355/cl010066723.json"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/1.json" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept: application/json, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"title": "La Joconde", "room": {"floor": 1}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, time.Second)
	out := client.Fetch(context.Background(), "/works/1")

	if !out.OK() {
		t.Fatalf("Expected success, got failure: %v", out.Failure)
	}
	if out.Identifier != "/works/1" {
		t.Errorf("Identifier = %q, want /works/1", out.Identifier)
	}
	if out.Document["title"] != "La Joconde" {
		t.Errorf("Document title = %v, want La Joconde", out.Document["title"])
	}
}

func TestFetch_Classification(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason FailureReason
		wantStatus int
	}{
		{
			name: "http error on 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
			},
			wantReason: ReasonHTTP,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "http error on 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantReason: ReasonHTTP,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "content type mismatch on html body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>maintenance</html>"))
			},
			wantReason: ReasonContentType,
			wantStatus: http.StatusOK,
		},
		{
			name: "transport error on truncated JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"title": `))
			},
			wantReason: ReasonTransport,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(t, server.URL, time.Second)
			out := client.Fetch(context.Background(), "/works/1")

			if out.OK() {
				t.Fatal("Expected failure, got success")
			}
			if out.Failure.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", out.Failure.Reason, tt.wantReason)
			}
			if out.Failure.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", out.Failure.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 20*time.Millisecond)
	out := client.Fetch(context.Background(), "/works/slow")

	if out.OK() {
		t.Fatal("Expected timeout failure, got success")
	}
	if out.Failure.Reason != ReasonTimeout {
		t.Errorf("Reason = %s, want %s", out.Failure.Reason, ReasonTimeout)
	}
}

func TestFetch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server.URL, time.Second)
	out := client.Fetch(context.Background(), "/works/1")

	if out.OK() {
		t.Fatal("Expected transport failure, got success")
	}
	if out.Failure.Reason != ReasonTransport {
		t.Errorf("Reason = %s, want %s", out.Failure.Reason, ReasonTransport)
	}
}

func TestFetch_NeverReturnsBothDocumentAndFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title": "ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, time.Second)
	out := client.Fetch(context.Background(), "/works/1")

	if out.Document != nil && out.Failure != nil {
		t.Error("Outcome carries both a document and a failure")
	}
}
