package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/andresuchdata/gcs-media-sync/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called by the batch loop after each item with the
// number of items done so far and the running totals.
type ProgressFunc func(done int, outcome domain.SyncOutcome, totals domain.BatchResult)

// BatchOptions are the parameters of a sync_all run.
type BatchOptions struct {
	// Limit < 0 processes every candidate.
	Limit    int
	Offset   int
	Force    bool
	Timeout  time.Duration
	Progress ProgressFunc
}

type indexedOutcome struct {
	index   int
	outcome domain.SyncOutcome
}

// SyncBatch syncs the given item ids in ascending order. Item-level errors
// never stop the batch; a cancelled ctx stops it between items and is
// returned alongside the partial result. Items not started before the
// cancellation have no outcome and are not counted.
func (e *Engine) SyncBatch(ctx context.Context, store storage.ObjectStorage, ids []int64, force bool, timeout time.Duration, progress ProgressFunc) (domain.BatchResult, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	result := domain.BatchResult{RunID: uuid.NewString(), Total: len(sorted)}
	logger := log.With().Str("run_id", result.RunID).Logger()
	logger.Info().Int("total", result.Total).Bool("force", force).Msg("starting sync batch")

	workers := e.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}

	results := make(chan indexedOutcome, workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	go func() {
		defer close(results)
		for i, id := range sorted {
			if gctx.Err() != nil {
				break
			}
			i, id := i, id
			g.Go(func() error {
				// g.Go may have waited for a slot past cancellation
				if ctx.Err() != nil {
					return nil
				}
				results <- indexedOutcome{index: i, outcome: e.syncID(ctx, store, id, force, timeout)}
				return nil
			})
		}
		_ = g.Wait()
	}()

	// Only this loop touches the counters.
	outcomes := make([]*domain.SyncOutcome, len(sorted))
	done := 0
	for r := range results {
		o := r.outcome
		outcomes[r.index] = &o
		result.Add(o)
		done++
		if o.Status == domain.StatusError {
			logger.Warn().Int64("item_id", o.ItemID).Str("reason", o.Reason).Msg("media item failed")
		}
		if progress != nil {
			progress(done, o, result)
		}
	}

	result.Outcomes = result.Outcomes[:0]
	for _, o := range outcomes {
		if o != nil {
			result.Outcomes = append(result.Outcomes, *o)
		}
	}

	logger.Info().
		Int("total", result.Total).
		Int("success", result.SuccessCount).
		Int("error", result.ErrorCount).
		Int("skipped", result.SkippedCount).
		Msg("sync batch finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) syncID(ctx context.Context, store storage.ObjectStorage, id int64, force bool, timeout time.Duration) domain.SyncOutcome {
	item, err := e.library.GetItem(ctx, id)
	if err != nil {
		return failed(id, err)
	}
	return e.SyncItem(ctx, store, item, force, timeout)
}

// SyncAll syncs every candidate selected by opts. Without Force only items
// lacking a committed record are selected.
func (e *Engine) SyncAll(ctx context.Context, opts BatchOptions) (domain.BatchResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return domain.BatchResult{}, err
	}

	var result domain.BatchResult
	err := storage.WithSession(ctx, e.open, func(store storage.ObjectStorage) error {
		ids, err := e.library.ListItemIDs(ctx, repository.CandidateQuery{
			Limit:         opts.Limit,
			Offset:        opts.Offset,
			IncludeSynced: opts.Force,
		})
		if err != nil {
			return err
		}
		result, err = e.SyncBatch(ctx, store, ids, opts.Force, opts.Timeout, opts.Progress)
		return err
	})
	return result, err
}

// SyncOne syncs a single item. The returned error is set only for
// configuration problems or an unknown item; sync failures are reported
// in the outcome.
func (e *Engine) SyncOne(ctx context.Context, itemID int64, force bool, timeout time.Duration) (domain.SyncOutcome, error) {
	if err := e.cfg.Validate(); err != nil {
		return domain.SyncOutcome{}, err
	}

	item, err := e.library.GetItem(ctx, itemID)
	if err != nil {
		return failed(itemID, err), err
	}

	var out domain.SyncOutcome
	err = storage.WithSession(ctx, e.open, func(store storage.ObjectStorage) error {
		out = e.SyncItem(ctx, store, item, force, timeout)
		return nil
	})
	return out, err
}

// HandleUpload is called by the host once a new item and its variants are
// written to disk.
func (e *Engine) HandleUpload(ctx context.Context, itemID int64) domain.SyncOutcome {
	out, err := e.SyncOne(ctx, itemID, false, e.cfg.ItemTimeout)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			log.Debug().Err(err).Int64("item_id", itemID).Msg("upload not synced")
			return domain.Skipped(itemID, err.Error())
		}
		log.Error().Err(err).Int64("item_id", itemID).Msg("upload sync failed")
		return failed(itemID, fmt.Errorf("upload sync: %w", err))
	}
	if out.Status == domain.StatusError {
		log.Error().Err(out.Err).Int64("item_id", itemID).Msg("upload sync failed")
	}
	return out
}
