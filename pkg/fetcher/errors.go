package fetcher

import (
	"errors"
	"fmt"
)

// ErrorKind classifies image fetch failures.
type ErrorKind string

const (
	// KindConnection represents network/transport errors.
	KindConnection ErrorKind = "connection"

	// KindProtocol represents non-200 HTTP responses and oversized payloads.
	KindProtocol ErrorKind = "protocol"

	// KindEmptyPayload represents a 200 response with an empty body.
	KindEmptyPayload ErrorKind = "empty_payload"

	// KindDecode represents a payload that is not a decodable image.
	KindDecode ErrorKind = "decode"
)

// FetchError represents an image fetch failure with its classification.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s error (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error", e.URL, e.Kind)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Kind extracts the classification from an error chain.
// Returns "" if the error is not a FetchError.
func Kind(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
