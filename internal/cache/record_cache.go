package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	recordKeyPrefix  = "media:sync_record:"
	scanBatchSize    = 100
	defaultRecordTTL = 5 * time.Minute
)

// RecordCache caches SyncRecords for the URL rewrite read path.
type RecordCache interface {
	Get(ctx context.Context, itemID int64) (*domain.SyncRecord, bool, error)
	Set(ctx context.Context, rec *domain.SyncRecord) error
	Invalidate(ctx context.Context, itemID int64) error
	InvalidateAll(ctx context.Context) error
}

type redisRecordCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRecordCache struct{}

func NewRecordCache(cfg config.CacheConfig) (RecordCache, error) {
	if !cfg.Enabled {
		return &noopRecordCache{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return newRedisRecordCache(client, cfg.RecordTTLSeconds), nil
}

func newRedisRecordCache(client *redis.Client, ttlSeconds int) *redisRecordCache {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultRecordTTL
	}
	return &redisRecordCache{client: client, ttl: ttl}
}

func NewNoopRecordCache() RecordCache {
	return &noopRecordCache{}
}

func recordKey(itemID int64) string {
	return recordKeyPrefix + strconv.FormatInt(itemID, 10)
}

func (c *redisRecordCache) Get(ctx context.Context, itemID int64) (*domain.SyncRecord, bool, error) {
	payload, err := c.client.Get(ctx, recordKey(itemID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var rec domain.SyncRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false, fmt.Errorf("decode sync record cache: %w", err)
	}
	return &rec, true, nil
}

func (c *redisRecordCache) Set(ctx context.Context, rec *domain.SyncRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode sync record cache: %w", err)
	}
	if err := c.client.Set(ctx, recordKey(rec.ItemID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisRecordCache) Invalidate(ctx context.Context, itemID int64) error {
	if err := c.client.Del(ctx, recordKey(itemID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisRecordCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, recordKeyPrefix, scanBatchSize)
}

func (n *noopRecordCache) Get(context.Context, int64) (*domain.SyncRecord, bool, error) {
	return nil, false, nil
}

func (n *noopRecordCache) Set(context.Context, *domain.SyncRecord) error { return nil }

func (n *noopRecordCache) Invalidate(context.Context, int64) error { return nil }

func (n *noopRecordCache) InvalidateAll(context.Context) error { return nil }

// CachedRecordStore reads through a RecordCache and invalidates it on
// every write. Cache failures fall back to the underlying store.
type CachedRecordStore struct {
	repository.SyncRecordStore
	cache RecordCache
}

func NewCachedRecordStore(store repository.SyncRecordStore, cache RecordCache) *CachedRecordStore {
	if cache == nil {
		cache = &noopRecordCache{}
	}
	return &CachedRecordStore{SyncRecordStore: store, cache: cache}
}

func (s *CachedRecordStore) GetSyncRecord(ctx context.Context, itemID int64) (*domain.SyncRecord, bool, error) {
	if rec, ok, err := s.cache.Get(ctx, itemID); err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("sync record cache read failed")
	} else if ok {
		return rec, true, nil
	}

	rec, ok, err := s.SyncRecordStore.GetSyncRecord(ctx, itemID)
	if err != nil || !ok {
		return rec, ok, err
	}
	if err := s.cache.Set(ctx, rec); err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("sync record cache write failed")
	}
	return rec, true, nil
}

func (s *CachedRecordStore) SaveSyncRecord(ctx context.Context, rec *domain.SyncRecord) error {
	if err := s.SyncRecordStore.SaveSyncRecord(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.ItemID)
	return nil
}

func (s *CachedRecordStore) DeleteSyncRecord(ctx context.Context, itemID int64) error {
	if err := s.SyncRecordStore.DeleteSyncRecord(ctx, itemID); err != nil {
		return err
	}
	s.invalidate(ctx, itemID)
	return nil
}

func (s *CachedRecordStore) PurgeSyncRecords(ctx context.Context) (int64, error) {
	n, err := s.SyncRecordStore.PurgeSyncRecords(ctx)
	if err != nil {
		return n, err
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("sync record cache purge failed")
	}
	return n, nil
}

func (s *CachedRecordStore) invalidate(ctx context.Context, itemID int64) {
	if err := s.cache.Invalidate(ctx, itemID); err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("sync record cache invalidation failed")
	}
}
