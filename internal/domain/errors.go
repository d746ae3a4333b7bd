package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration aborts a batch before any item is touched.
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("file not found")
	ErrStore         = errors.New("store error")
	ErrTimeout       = errors.New("timeout")
	ErrOptimization  = errors.New("optimization error")
	ErrDeletion      = errors.New("deletion error")
	// ErrOutsideBaseDir is returned when a file does not live under the
	// media library's base directory.
	ErrOutsideBaseDir = errors.New("path outside base directory")
	ErrItemNotFound   = errors.New("media item not found")
)

// ConfigError wraps ErrConfiguration with a human readable reason.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// StoreError wraps an object store failure so it classifies as ErrStore
// while keeping the store's own message.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return e.Err.Error()
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}
