package fetch

import (
	"errors"
	"strings"
	"testing"
)

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FetchError
		contains []string
	}{
		{
			name: "with wrapped error",
			err: &FetchError{
				Reason:  ReasonTransport,
				Message: "request https://collections.example.org/x.json",
				Err:     errors.New("connection refused"),
			},
			contains: []string{"transport_error", "connection refused"},
		},
		{
			name: "without wrapped error",
			err: &FetchError{
				Reason:     ReasonHTTP,
				StatusCode: 503,
				Message:    "503 Service Unavailable",
			},
			contains: []string{"http_error", "503"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want it to contain %q", msg, want)
				}
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := &FetchError{Reason: ReasonTimeout, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestOutcome_OK(t *testing.T) {
	ok := success("/works/1", Document{"title": "x"})
	if !ok.OK() {
		t.Error("success outcome should be OK")
	}

	failed := failure("/works/1", &FetchError{Reason: ReasonHTTP})
	if failed.OK() {
		t.Error("failure outcome should not be OK")
	}
}
