package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrUnparseable is returned when a fetched page cannot be loaded as HTML.
	ErrUnparseable = errors.New("document cannot be parsed")
	// ErrInvalidURL rejects targets that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid forecast url")
	// ErrHostNotAllowed rejects targets outside the configured domains.
	ErrHostNotAllowed = errors.New("host not allowed")
	// ErrBodyTooLarge is returned instead of a truncated page.
	ErrBodyTooLarge = errors.New("response body too large")
)

// FetchError reports that a forecast page could not be retrieved.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
