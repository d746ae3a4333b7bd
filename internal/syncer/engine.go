// Package syncer uploads media items to an object store, records their
// remote URLs and removes local copies once they are confirmed remotely.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/objectkey"
	"github.com/andresuchdata/gcs-media-sync/internal/optimizer"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/andresuchdata/gcs-media-sync/internal/storage"
	"github.com/rs/zerolog/log"
)

// OptimizeFunc rewrites an image in place before upload.
type OptimizeFunc func(path string, quality, maxWidth int) (optimizer.Result, error)

// Engine is the sync engine. Its configuration is a snapshot taken at
// construction and never re-read.
type Engine struct {
	cfg      config.SyncConfig
	library  repository.MediaLibrary
	records  repository.SyncRecordStore
	open     storage.Opener
	locker   Locker
	optimize OptimizeFunc
	now      func() time.Time
}

type Option func(*Engine)

// WithLocker replaces the in-process per-item locker, e.g. with a Redis lock.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

func WithOptimizer(fn OptimizeFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.optimize = fn
		}
	}
}

// WithClock sets the clock used for per-item timeout checkpoints.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(cfg config.SyncConfig, library repository.MediaLibrary, records repository.SyncRecordStore, open storage.Opener, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		library:  library,
		records:  records,
		open:     open,
		locker:   newKeyedLocker(),
		optimize: optimizer.Optimize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the configuration snapshot the engine runs with.
func (e *Engine) Config() config.SyncConfig {
	return e.cfg
}

// variantFile is one declared variant resolved against the original.
type variantFile struct {
	Name string
	Path string
	Key  string
}

// itemKeys resolves the original's key and every declared variant's path
// and key, ordered by variant name.
func (e *Engine) itemKeys(item *domain.MediaItem) (string, []variantFile, error) {
	key, err := objectkey.Resolve(e.cfg.BaseDir, item.LocalOriginalPath, e.cfg.Folder)
	if err != nil {
		return "", nil, err
	}
	dir := filepath.Dir(item.LocalOriginalPath)

	names := make([]string, 0, len(item.Variants))
	for name := range item.Variants {
		names = append(names, name)
	}
	sort.Strings(names)

	variants := make([]variantFile, 0, len(names))
	for _, name := range names {
		file := item.Variants[name]
		if file == "" || name == domain.FullVariant {
			continue
		}
		variants = append(variants, variantFile{
			Name: name,
			Path: filepath.Join(dir, file),
			Key:  objectkey.Variant(key, file),
		})
	}
	return key, variants, nil
}

// deadline implements the cooperative per-item timeout.
type deadline struct {
	at  time.Time
	now func() time.Time
}

func (d deadline) check(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.at.IsZero() && d.now().After(d.at) {
		return fmt.Errorf("%w after %s", domain.ErrTimeout, stage)
	}
	return nil
}

// SyncItem uploads item and its variants to store and commits its
// SyncRecord. A zero timeout disables the per-item deadline.
func (e *Engine) SyncItem(ctx context.Context, store storage.ObjectStorage, item *domain.MediaItem, force bool, timeout time.Duration) (out domain.SyncOutcome) {
	logger := log.With().Int64("item_id", item.ID).Logger()

	dl := deadline{now: e.now}
	if timeout > 0 {
		dl.at = e.now().Add(timeout)
	}

	unlock, err := e.locker.Lock(ctx, item.ID)
	if err != nil {
		return failed(item.ID, fmt.Errorf("failed to lock item: %w", err))
	}
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("sync aborted")
			out = failed(item.ID, fmt.Errorf("sync aborted: %v", r))
		}
	}()

	if !force {
		rec, ok, err := e.records.GetSyncRecord(ctx, item.ID)
		if err != nil {
			return failed(item.ID, err)
		}
		if ok && rec.Synced {
			return domain.Skipped(item.ID, "already synced")
		}
	}

	if item.LocalOriginalPath == "" {
		return failed(item.ID, fmt.Errorf("%w: unknown", domain.ErrNotFound))
	}
	if _, err := os.Stat(item.LocalOriginalPath); err != nil {
		return failed(item.ID, fmt.Errorf("%w: %s", domain.ErrNotFound, item.LocalOriginalPath))
	}
	if err := dl.check(ctx, "file validation"); err != nil {
		return failed(item.ID, err)
	}

	if store == nil {
		return failed(item.ID, domain.ConfigError("object store client unavailable"))
	}
	if err := dl.check(ctx, "store client init"); err != nil {
		return failed(item.ID, err)
	}

	if res, err := e.optimize(item.LocalOriginalPath, e.cfg.ImageQuality, e.cfg.MaxWidth); err != nil {
		logger.Warn().Err(err).Str("path", item.LocalOriginalPath).Msg("image optimization failed, uploading original bytes")
	} else if res.Action != optimizer.ActionNone {
		logger.Debug().Str("action", string(res.Action)).Int("width", res.Width).Int("height", res.Height).Msg("image optimized")
	}
	if err := dl.check(ctx, "optimization"); err != nil {
		return failed(item.ID, err)
	}

	key, variants, err := e.itemKeys(item)
	if err != nil {
		return failed(item.ID, err)
	}

	data, err := os.ReadFile(item.LocalOriginalPath)
	if err != nil {
		logger.Error().Err(err).Str("path", item.LocalOriginalPath).Msg("failed to read file content")
		return failed(item.ID, errors.New("failed to read file content"))
	}
	if err := store.PutObject(ctx, key, data, putOptions(key)); err != nil {
		return failed(item.ID, err)
	}
	bytes := int64(len(data))
	urls := map[string]string{domain.FullVariant: store.PublicURL(key)}
	logger.Debug().Str("key", key).Msg("uploaded original")
	if err := dl.check(ctx, "original upload"); err != nil {
		return failed(item.ID, err)
	}

	for _, v := range variants {
		if err := dl.check(ctx, "variant "+v.Name); err != nil {
			return failed(item.ID, err)
		}
		if _, err := os.Stat(v.Path); err != nil {
			continue
		}
		vdata, err := os.ReadFile(v.Path)
		if err != nil {
			logger.Warn().Err(err).Str("variant", v.Name).Str("path", v.Path).Msg("skipping unreadable variant")
			continue
		}
		if err := store.PutObject(ctx, v.Key, vdata, putOptions(v.Key)); err != nil {
			return failed(item.ID, err)
		}
		bytes += int64(len(vdata))
		urls[v.Name] = store.PublicURL(v.Key)
	}

	if err := dl.check(ctx, "record commit"); err != nil {
		return failed(item.ID, err)
	}
	rec := &domain.SyncRecord{
		ItemID:             item.ID,
		Synced:             true,
		RemoteURL:          urls[domain.FullVariant],
		RemoteURLByVariant: urls,
		SyncedAt:           e.now().UTC(),
	}
	if err := e.records.SaveSyncRecord(ctx, rec); err != nil {
		return failed(item.ID, err)
	}

	out = domain.Succeeded(item.ID, bytes)
	if e.cfg.AutoDeleteLocal {
		report := e.DeleteLocalIfSynced(ctx, store, item)
		out.Deletion = &report
	}
	logger.Info().Str("key", key).Int("variants", len(urls)-1).Msg("media item synced")
	return out
}

// failed builds an error outcome; timeouts and missing files keep their
// short canonical reasons.
func failed(id int64, err error) domain.SyncOutcome {
	out := domain.Failed(id, err)
	switch {
	case errors.Is(err, domain.ErrTimeout):
		out.Reason = "timeout"
	case errors.Is(err, domain.ErrNotFound):
		out.Reason = domain.ErrNotFound.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Reason = "cancelled"
	}
	return out
}

func putOptions(key string) storage.PutOptions {
	return storage.PutOptions{
		PublicRead:  true,
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}
}
