package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by fetchers when the requested page does not exist.
	ErrNotFound = errors.New("page not found")
	// ErrNoWorkAvailable aborts a run that has no titles left to crawl.
	ErrNoWorkAvailable = errors.New("no new titles to crawl")
	// ErrPendingNotEmpty is returned when a level is advanced before its batch is done.
	ErrPendingNotEmpty = errors.New("pending titles remain in the current level")
	// ErrBlobExists is returned by blob stores asked to overwrite an object.
	ErrBlobExists = errors.New("blob already exists")
)

// FetchError wraps a per-title fetch failure. It never aborts a batch.
type FetchError struct {
	Title Title
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", string(e.Title), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ConfigError reports a missing or invalid setting detected at startup.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Key, e.Reason)
}
