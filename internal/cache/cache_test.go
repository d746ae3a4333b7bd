package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecords struct {
	records map[int64]*domain.SyncRecord
	reads   int
}

func (m *memoryRecords) GetSyncRecord(_ context.Context, id int64) (*domain.SyncRecord, bool, error) {
	m.reads++
	rec, ok := m.records[id]
	return rec, ok, nil
}

func (m *memoryRecords) SaveSyncRecord(_ context.Context, rec *domain.SyncRecord) error {
	m.records[rec.ItemID] = rec
	return nil
}

func (m *memoryRecords) DeleteSyncRecord(_ context.Context, id int64) error {
	delete(m.records, id)
	return nil
}

func (m *memoryRecords) PurgeSyncRecords(context.Context) (int64, error) {
	n := int64(len(m.records))
	m.records = map[int64]*domain.SyncRecord{}
	return n, nil
}

// mapCache is an in-process RecordCache used to observe invalidation.
type mapCache struct {
	entries map[int64]*domain.SyncRecord
	failGet bool
}

func (c *mapCache) Get(_ context.Context, id int64) (*domain.SyncRecord, bool, error) {
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	rec, ok := c.entries[id]
	return rec, ok, nil
}

func (c *mapCache) Set(_ context.Context, rec *domain.SyncRecord) error {
	c.entries[rec.ItemID] = rec
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id int64) error {
	delete(c.entries, id)
	return nil
}

func (c *mapCache) InvalidateAll(context.Context) error {
	c.entries = map[int64]*domain.SyncRecord{}
	return nil
}

func TestCachedRecordStore_readThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &memoryRecords{records: map[int64]*domain.SyncRecord{
		1: {ItemID: 1, Synced: true, RemoteURLByVariant: map[string]string{"full": "u0"}},
	}}
	c := &mapCache{entries: map[int64]*domain.SyncRecord{}}
	s := NewCachedRecordStore(inner, c)

	rec, ok, err := s.GetSyncRecord(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u0", rec.RemoteURLByVariant["full"])

	_, _, err = s.GetSyncRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads, "second read should be served from cache")

	require.NoError(t, s.SaveSyncRecord(ctx, &domain.SyncRecord{ItemID: 1, Synced: true}))
	assert.NotContains(t, c.entries, int64(1))

	_, ok, err = s.GetSyncRecord(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedRecordStore_cacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	inner := &memoryRecords{records: map[int64]*domain.SyncRecord{7: {ItemID: 7, Synced: true}}}
	s := NewCachedRecordStore(inner, &mapCache{entries: map[int64]*domain.SyncRecord{}, failGet: true})

	rec, ok, err := s.GetSyncRecord(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rec.Synced)
}

func TestCachedRecordStore_purgeClearsCache(t *testing.T) {
	ctx := context.Background()
	inner := &memoryRecords{records: map[int64]*domain.SyncRecord{
		1: {ItemID: 1, Synced: true},
		2: {ItemID: 2, Synced: true},
	}}
	c := &mapCache{entries: map[int64]*domain.SyncRecord{}}
	s := NewCachedRecordStore(inner, c)

	_, _, err := s.GetSyncRecord(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, c.entries, int64(1))

	n, err := s.PurgeSyncRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, c.entries)

	_, ok, err := s.GetSyncRecord(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRecordCache_disabledIsNoop(t *testing.T) {
	c, err := NewRecordCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	_, ok, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "::bad"})
	assert.Error(t, err)
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "media:sync_record:42", recordKey(42))
}
