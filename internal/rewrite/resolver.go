// Package rewrite maps local media URLs onto their remote copies.
package rewrite

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = time.Minute
)

// ResolvePublicURL returns the remote URL serving localURL for item, or
// localURL unchanged when the item has no committed record.
//
// When the requested file is neither the original nor a known variant the
// local base URL prefix is swapped for the remote original URL. That last
// step is a best-effort substitution and may produce a URL that does not
// exist remotely.
func ResolvePublicURL(localURL, baseURL string, item *domain.MediaItem, rec *domain.SyncRecord) string {
	if item == nil || rec == nil || !rec.Synced {
		return localURL
	}
	fullURL, ok := rec.URLFor(domain.FullVariant)
	if !ok || fullURL == "" {
		return localURL
	}

	filename := requestedFilename(localURL)
	if filename == filepath.Base(item.LocalOriginalPath) {
		return fullURL
	}

	for _, variant := range sortedVariants(rec.RemoteURLByVariant) {
		if variant != domain.FullVariant && strings.Contains(filename, variant) {
			return rec.RemoteURLByVariant[variant]
		}
	}
	for _, variant := range sortedVariants(item.Variants) {
		if item.Variants[variant] != filename {
			continue
		}
		if u, ok := rec.URLFor(variant); ok {
			return u
		}
	}

	if baseURL == "" {
		return localURL
	}
	return strings.Replace(localURL, baseURL, fullURL, 1)
}

func requestedFilename(localURL string) string {
	if u, err := url.Parse(localURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(localURL)
}

func sortedVariants[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SrcsetSource is one candidate of an image srcset.
type SrcsetSource struct {
	URL        string `json:"url"`
	Descriptor string `json:"descriptor,omitempty"`
}

type entry struct {
	item *domain.MediaItem
	rec  *domain.SyncRecord
}

// Resolver resolves URLs for items looked up in the media library. Item
// and record lookups are held in an in-process LRU cache until they expire
// or Invalidate is called for the item.
type Resolver struct {
	cfg     config.SyncConfig
	library repository.MediaLibrary
	records repository.SyncRecordStore
	cache   *expirable.LRU[int64, entry]
}

// NewResolver builds a Resolver. Zero cacheSize or ttl select the defaults.
func NewResolver(cfg config.SyncConfig, library repository.MediaLibrary, records repository.SyncRecordStore, cacheSize int, ttl time.Duration) *Resolver {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{
		cfg:     cfg,
		library: library,
		records: records,
		cache:   expirable.NewLRU[int64, entry](cacheSize, nil, ttl),
	}
}

func (r *Resolver) lookup(ctx context.Context, itemID int64) (entry, error) {
	if e, ok := r.cache.Get(itemID); ok {
		return e, nil
	}
	item, err := r.library.GetItem(ctx, itemID)
	if err != nil {
		return entry{}, err
	}
	rec, ok, err := r.records.GetSyncRecord(ctx, itemID)
	if err != nil {
		return entry{}, err
	}
	e := entry{item: item}
	if ok {
		e.rec = rec
	}
	r.cache.Add(itemID, e)
	return e, nil
}

// Invalidate drops any cached state for itemID. Call it after the item
// is synced or its remote copy is removed.
func (r *Resolver) Invalidate(itemID int64) {
	r.cache.Remove(itemID)
}

// Resolve returns the URL to serve for localURL. Lookup failures leave the
// URL unchanged; the error is returned for the caller to report.
func (r *Resolver) Resolve(ctx context.Context, localURL string, itemID int64) (string, error) {
	if !r.cfg.Enabled {
		return localURL, nil
	}
	e, err := r.lookup(ctx, itemID)
	if err != nil {
		return localURL, err
	}
	return ResolvePublicURL(localURL, r.cfg.BaseURL, e.item, e.rec), nil
}

// ResolveImageSrc rewrites a single image src.
func (r *Resolver) ResolveImageSrc(ctx context.Context, src string, itemID int64) string {
	if src == "" {
		return src
	}
	resolved, err := r.Resolve(ctx, src, itemID)
	if err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("image src left unchanged")
	}
	return resolved
}

// ResolveSrcset rewrites every URL of a srcset, keeping descriptors.
func (r *Resolver) ResolveSrcset(ctx context.Context, sources []SrcsetSource, itemID int64) []SrcsetSource {
	if !r.cfg.Enabled || len(sources) == 0 {
		return sources
	}
	out := make([]SrcsetSource, len(sources))
	for i, s := range sources {
		out[i] = SrcsetSource{URL: r.ResolveImageSrc(ctx, s.URL, itemID), Descriptor: s.Descriptor}
	}
	return out
}

// KeepLocalOnHostDelete reports whether the host must keep local files
// when it would otherwise delete them. With auto-delete enabled the
// engine removes local files itself after confirming the upload.
func KeepLocalOnHostDelete(cfg config.SyncConfig) bool {
	return cfg.Enabled && !cfg.AutoDeleteLocal
}
