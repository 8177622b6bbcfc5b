package remote

import (
	"errors"
	"fmt"
)

// FetchErrorCode categorizes fetch failures.
type FetchErrorCode string

const (
	// ErrCodeNotFound indicates the document does not exist upstream (404).
	ErrCodeNotFound FetchErrorCode = "NOT_FOUND"

	// ErrCodeBadContent indicates a response that is not usable JSON: wrong
	// content type (an SPA index.html served for unknown paths is the usual
	// culprit) or a body that fails to decode.
	ErrCodeBadContent FetchErrorCode = "BAD_CONTENT"

	// ErrCodeTransport indicates a network failure or non-2xx status.
	ErrCodeTransport FetchErrorCode = "TRANSPORT"
)

// FetchError is the typed failure for every remote document operation.
// Callers treat any FetchError as "document absent" and degrade to empty
// data; the type exists so tests and logs can distinguish why.
type FetchError struct {
	Code FetchErrorCode
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsAbsent reports whether err represents a document that should be treated
// as missing rather than surfaced as a hard failure.
func IsAbsent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
