package rewrite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL = "https://example.com/uploads"
	u0      = "https://storage.googleapis.com/bucket/site/2024/01/photo.jpg"
	u1      = "https://storage.googleapis.com/bucket/site/2024/01/photo-thumbnail.jpg"
)

func syncedPhoto() (*domain.MediaItem, *domain.SyncRecord) {
	item := &domain.MediaItem{
		ID:                7,
		LocalOriginalPath: "/base/2024/01/photo.jpg",
		Variants:          map[string]string{"thumbnail": "photo-thumbnail.jpg", "medium": "photo-300x200.jpg"},
	}
	rec := &domain.SyncRecord{
		ItemID:    7,
		Synced:    true,
		RemoteURL: u0,
		RemoteURLByVariant: map[string]string{
			domain.FullVariant: u0,
			"thumbnail":        u1,
			"medium":           "https://storage.googleapis.com/bucket/site/2024/01/photo-300x200.jpg",
		},
	}
	return item, rec
}

func TestResolvePublicURL(t *testing.T) {
	item, rec := syncedPhoto()

	tests := []struct {
		name  string
		local string
		rec   *domain.SyncRecord
		want  string
	}{
		{"original", baseURL + "/2024/01/photo.jpg", rec, u0},
		{"variant by name", baseURL + "/2024/01/photo-thumbnail.jpg", rec, u1},
		{"variant by filename", baseURL + "/2024/01/photo-300x200.jpg?ver=2", rec, rec.RemoteURLByVariant["medium"]},
		{"unsynced", baseURL + "/2024/01/photo.jpg", nil, baseURL + "/2024/01/photo.jpg"},
		{"synced false", baseURL + "/2024/01/photo.jpg", &domain.SyncRecord{ItemID: 7, RemoteURL: u0}, baseURL + "/2024/01/photo.jpg"},
		{"fallback substitution", baseURL + "/2024/01/photo-1024x768.jpg", rec, u0 + "/2024/01/photo-1024x768.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePublicURL(tt.local, baseURL, item, tt.rec))
		})
	}
}

type memSource struct {
	items   map[int64]*domain.MediaItem
	records map[int64]*domain.SyncRecord
	gets    int
}

func (m *memSource) ListItemIDs(context.Context, repository.CandidateQuery) ([]int64, error) {
	return nil, nil
}

func (m *memSource) GetItem(_ context.Context, id int64) (*domain.MediaItem, error) {
	m.gets++
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (m *memSource) GetSyncRecord(_ context.Context, id int64) (*domain.SyncRecord, bool, error) {
	rec, ok := m.records[id]
	return rec, ok, nil
}

func (m *memSource) SaveSyncRecord(_ context.Context, rec *domain.SyncRecord) error {
	m.records[rec.ItemID] = rec
	return nil
}

func (m *memSource) DeleteSyncRecord(_ context.Context, id int64) error {
	delete(m.records, id)
	return nil
}

func (m *memSource) PurgeSyncRecords(context.Context) (int64, error) {
	return 0, nil
}

func newResolver(t *testing.T, enabled bool) (*Resolver, *memSource) {
	t.Helper()
	item, rec := syncedPhoto()
	src := &memSource{
		items:   map[int64]*domain.MediaItem{7: item},
		records: map[int64]*domain.SyncRecord{7: rec},
	}
	return NewResolver(config.SyncConfig{Enabled: enabled, BaseURL: baseURL}, src, src, 0, 0), src
}

func TestResolver_CachesLookups(t *testing.T) {
	r, src := newResolver(t, true)

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), baseURL+"/2024/01/photo.jpg", 7)
		require.NoError(t, err)
		assert.Equal(t, u0, got)
	}
	assert.Equal(t, 1, src.gets)

	delete(src.records, 7)
	r.Invalidate(7)
	got, err := r.Resolve(context.Background(), baseURL+"/2024/01/photo.jpg", 7)
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/2024/01/photo.jpg", got)
}

func TestResolver_Disabled(t *testing.T) {
	r, src := newResolver(t, false)

	got, err := r.Resolve(context.Background(), baseURL+"/2024/01/photo.jpg", 7)

	require.NoError(t, err)
	assert.Equal(t, baseURL+"/2024/01/photo.jpg", got)
	assert.Zero(t, src.gets)
}

func TestResolver_UnknownItemKeepsURL(t *testing.T) {
	r, _ := newResolver(t, true)

	got, err := r.Resolve(context.Background(), "/x.jpg", 99)

	assert.True(t, errors.Is(err, domain.ErrItemNotFound))
	assert.Equal(t, "/x.jpg", got)
	assert.Equal(t, "/x.jpg", r.ResolveImageSrc(context.Background(), "/x.jpg", 99))
}

func TestResolver_ResolveSrcset(t *testing.T) {
	r, _ := newResolver(t, true)

	got := r.ResolveSrcset(context.Background(), []SrcsetSource{
		{URL: baseURL + "/2024/01/photo-thumbnail.jpg", Descriptor: "150w"},
		{URL: baseURL + "/2024/01/photo.jpg", Descriptor: "1024w"},
	}, 7)

	assert.Equal(t, []SrcsetSource{{URL: u1, Descriptor: "150w"}, {URL: u0, Descriptor: "1024w"}}, got)
}

func TestKeepLocalOnHostDelete(t *testing.T) {
	assert.True(t, KeepLocalOnHostDelete(config.SyncConfig{Enabled: true}))
	assert.False(t, KeepLocalOnHostDelete(config.SyncConfig{Enabled: true, AutoDeleteLocal: true}))
	assert.False(t, KeepLocalOnHostDelete(config.SyncConfig{}))
}

func TestResolver_CacheExpires(t *testing.T) {
	item, rec := syncedPhoto()
	src := &memSource{
		items:   map[int64]*domain.MediaItem{7: item},
		records: map[int64]*domain.SyncRecord{7: rec},
	}
	r := NewResolver(config.SyncConfig{Enabled: true, BaseURL: baseURL}, src, src, 8, 10*time.Millisecond)

	_, err := r.Resolve(context.Background(), baseURL+"/2024/01/photo.jpg", 7)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := r.Resolve(context.Background(), baseURL+"/2024/01/photo.jpg", 7)
		return err == nil && src.gets > 1
	}, time.Second, 20*time.Millisecond)
}
