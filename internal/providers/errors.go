package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// NetworkError is a transport failure before a backend reply was received.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError is a non-success reply from the model backend.
type BackendError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// EmptyResponseError means the backend replied without any candidate text.
type EmptyResponseError struct {
	Provider string
	Reason   string
}

func (e *EmptyResponseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: empty response", e.Provider)
	}
	return fmt.Sprintf("%s: empty response: %s", e.Provider, e.Reason)
}

// BlockedError is an EmptyResponseError caused by a safety or policy block.
type BlockedError struct {
	EmptyResponseError
	BlockReason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: response blocked: %s", e.Provider, e.BlockReason)
}

func (e *BlockedError) Unwrap() error { return &e.EmptyResponseError }

func blocked(provider, reason string) error {
	return &BlockedError{
		EmptyResponseError: EmptyResponseError{Provider: provider, Reason: "blocked"},
		BlockReason:        reason,
	}
}

// MalformedResponseError means the reply could not be decoded, or a candidate
// was present without any text to extract.
type MalformedResponseError struct {
	Provider string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func malformed(provider, reason string) error {
	return &MalformedResponseError{Provider: provider, Err: errors.New(reason)}
}

// IsRetryable reports whether err is a transient gateway failure: a network
// error that was not a cancellation, a 429, or a 5xx.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.StatusCode == http.StatusTooManyRequests || be.StatusCode >= 500
	}
	return false
}

// classifyTransport maps an SDK error that is not a backend status reply.
func classifyTransport(provider string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &MalformedResponseError{Provider: provider, Err: err}
	}
	return &NetworkError{Provider: provider, Err: err}
}
