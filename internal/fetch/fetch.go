package fetch

import (
	"context"
	"fmt"
)

// Fetcher performs a single GET for a url.
type Fetcher interface {
	// Fetch returns the raw body, any failure is a *NetworkError.
	Fetch(ctx context.Context, url string) (string, error)
}

// NetworkError is returned when a url could not be fetched, either because of
// a transport failure (Err is set) or a non-success status (StatusCode is set).
type NetworkError struct {
	Url        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s", e.Url, e.Err.Error())
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.Url, e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
