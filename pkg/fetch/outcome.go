package fetch

import (
	"fmt"
)

// FailureReason classifies a failed fetch attempt.
type FailureReason string

const (
	// ReasonTimeout indicates the per-request timeout elapsed.
	ReasonTimeout FailureReason = "timeout"

	// ReasonHTTP indicates the server answered with a non-2xx status.
	ReasonHTTP FailureReason = "http_error"

	// ReasonContentType indicates a 2xx response whose Content-Type is not JSON.
	ReasonContentType FailureReason = "content_type_mismatch"

	// ReasonTransport indicates a connection-level failure or an unreadable body.
	ReasonTransport FailureReason = "transport_error"
)

// Document is one parsed collection record. Field sets vary between records;
// the artifact layer unions them into columns.
type Document map[string]any

// FetchError carries the classification and context of one failed attempt.
type FetchError struct {
	Reason     FailureReason
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (status %d): %s: %v",
			e.Reason, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s (status %d): %s",
		e.Reason, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Outcome is the total result of fetching one identifier: either a parsed
// document or a classified failure, never a panic and never a bare error.
type Outcome struct {
	Identifier string
	Document   Document
	Failure    *FetchError
}

// OK reports whether the fetch produced a document.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

func success(id string, doc Document) Outcome {
	return Outcome{Identifier: id, Document: doc}
}

func failure(id string, ferr *FetchError) Outcome {
	return Outcome{Identifier: id, Failure: ferr}
}
