package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/rs/zerolog/log"
)

// WithSession opens a store, runs fn with it and always closes it, on
// every exit path including a panic in fn.
func WithSession(ctx context.Context, open Opener, fn func(ObjectStorage) error) (err error) {
	if open == nil {
		return domain.ConfigError("object store client unavailable")
	}
	store, err := open(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return err
		}
		return fmt.Errorf("%w: object store client unavailable: %v", domain.ErrConfiguration, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close object store session")
		}
	}()
	return fn(store)
}
