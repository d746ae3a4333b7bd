package syncer

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/storage"
	"github.com/rs/zerolog/log"
)

type itemFile struct {
	Variant string
	Path    string
	Key     string
}

func (e *Engine) itemFiles(item *domain.MediaItem) ([]itemFile, error) {
	key, variants, err := e.itemKeys(item)
	if err != nil {
		return nil, err
	}
	files := []itemFile{{Variant: domain.FullVariant, Path: item.LocalOriginalPath, Key: key}}
	for _, v := range variants {
		files = append(files, itemFile{Variant: v.Name, Path: v.Path, Key: v.Key})
	}
	return files, nil
}

// DeleteLocalIfSynced removes the local original and variants whose remote
// copy exists right now. Each file is checked and reported on its own.
func (e *Engine) DeleteLocalIfSynced(ctx context.Context, store storage.ObjectStorage, item *domain.MediaItem) domain.DeletionReport {
	report := domain.DeletionReport{ItemID: item.ID}
	logger := log.With().Int64("item_id", item.ID).Logger()

	files, err := e.itemFiles(item)
	if err != nil {
		logger.Error().Err(err).Msg("cannot resolve keys for local deletion")
		report.Files = append(report.Files, domain.FileReport{
			Variant: domain.FullVariant,
			Path:    item.LocalOriginalPath,
			Action:  domain.ActionNotConfirmed,
			Error:   err.Error(),
		})
		return report
	}

	for _, f := range files {
		fr := domain.FileReport{Variant: f.Variant, Path: f.Path, Key: f.Key}

		exists, err := store.ObjectExists(ctx, f.Key)
		switch {
		case err != nil:
			fr.Action = domain.ActionNotConfirmed
			fr.Error = err.Error()
			logger.Warn().Err(err).Str("key", f.Key).Msg("could not confirm remote copy, keeping local file")
		case !exists:
			fr.Action = domain.ActionNotConfirmed
			logger.Warn().Str("key", f.Key).Msg("skipping local file deletion - file not confirmed in store")
		default:
			if _, statErr := os.Stat(f.Path); statErr != nil {
				fr.Action = domain.ActionMissing
			} else if rmErr := os.Remove(f.Path); rmErr != nil {
				fr.Action = domain.ActionFailed
				fr.Error = fmt.Errorf("%w: %v", domain.ErrDeletion, rmErr).Error()
				logger.Warn().Err(rmErr).Str("path", f.Path).Msg("failed to delete local file")
			} else {
				fr.Action = domain.ActionDeleted
				logger.Info().Str("path", f.Path).Msg("deleted local file after sync")
			}
		}
		report.Files = append(report.Files, fr)
	}
	return report
}

// DeleteRemote removes every remote object of an item and clears its
// SyncRecord. It is used when the item is removed from the media library.
func (e *Engine) DeleteRemote(ctx context.Context, item *domain.MediaItem) (domain.DeletionReport, error) {
	report := domain.DeletionReport{ItemID: item.ID}
	if err := e.cfg.Validate(); err != nil {
		return report, err
	}

	files, err := e.itemFiles(item)
	if err != nil {
		return report, err
	}

	err = storage.WithSession(ctx, e.open, func(store storage.ObjectStorage) error {
		for _, f := range files {
			fr := domain.FileReport{Variant: f.Variant, Key: f.Key}
			exists, err := store.ObjectExists(ctx, f.Key)
			switch {
			case err != nil:
				fr.Action, fr.Error = domain.ActionFailed, err.Error()
			case !exists:
				fr.Action = domain.ActionMissing
			default:
				if err := store.DeleteObject(ctx, f.Key); err != nil {
					fr.Action, fr.Error = domain.ActionFailed, err.Error()
					log.Warn().Err(err).Int64("item_id", item.ID).Str("key", f.Key).Msg("remote deletion failed")
				} else {
					fr.Action = domain.ActionDeleted
				}
			}
			report.Files = append(report.Files, fr)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if err := e.records.DeleteSyncRecord(ctx, item.ID); err != nil {
		return report, err
	}
	return report, nil
}

// DeleteRemoteByID looks the item up and calls DeleteRemote.
func (e *Engine) DeleteRemoteByID(ctx context.Context, itemID int64) (domain.DeletionReport, error) {
	item, err := e.library.GetItem(ctx, itemID)
	if err != nil {
		return domain.DeletionReport{ItemID: itemID}, err
	}
	return e.DeleteRemote(ctx, item)
}

// RemoteStatus reports, per file, whether the item's objects exist remotely.
func (e *Engine) RemoteStatus(ctx context.Context, itemID int64) ([]domain.RemoteObjectStatus, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	item, err := e.library.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	files, err := e.itemFiles(item)
	if err != nil {
		return nil, err
	}

	var statuses []domain.RemoteObjectStatus
	err = storage.WithSession(ctx, e.open, func(store storage.ObjectStorage) error {
		for _, f := range files {
			st := domain.RemoteObjectStatus{Variant: f.Variant, Key: f.Key, URL: store.PublicURL(f.Key)}
			exists, err := store.ObjectExists(ctx, f.Key)
			if err != nil {
				st.Error = err.Error()
			}
			st.Exists = exists
			statuses = append(statuses, st)
		}
		return nil
	})
	return statuses, err
}
