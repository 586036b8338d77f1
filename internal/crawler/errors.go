package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel causes wrapped by ExtractionError.
var (
	ErrNoTable       = errors.New("stat table not found")
	ErrMissingCell   = errors.New("row is missing cells")
	ErrMalformedCell = errors.New("malformed cell")
	ErrNegativeValue = errors.New("negative value")
	ErrBatterSide    = errors.New("unknown batter side")
)

// FetchError reports a non-200 response or a transport failure.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *FetchError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// ExtractionError reports a table, control or row that could not be parsed.
// Row is -1 when the failure is not tied to a single row.
type ExtractionError struct {
	URL string
	Row int
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("extract %s row %d: %v", e.URL, e.Row, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
