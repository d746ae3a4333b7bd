package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/optimizer"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/andresuchdata/gcs-media-sync/internal/storage"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ObjectStorage.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      []string
	deletes   []string
	failPutOn map[string]error
	hidden    map[string]bool // keys that report as absent even after a put
	onPut     func(key string)
	closed    int
}

func newMemStore() *memStore {
	return &memStore{
		objects:   map[string][]byte{},
		failPutOn: map[string]error{},
		hidden:    map[string]bool{},
	}
}

func (m *memStore) PutObject(_ context.Context, key string, data []byte, _ storage.PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onPut != nil {
		m.onPut(key)
	}
	if err := m.failPutOn[key]; err != nil {
		return err
	}
	m.puts = append(m.puts, key)
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hidden[key] {
		return false, nil
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.objects, key)
	return nil
}

func (m *memStore) PublicURL(key string) string {
	return "https://storage.googleapis.com/bucket/" + key
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

func (m *memStore) opener() storage.Opener {
	return func(context.Context) (storage.ObjectStorage, error) { return m, nil }
}

// memLibrary is an in-memory media library and record store.
type memLibrary struct {
	mu      sync.Mutex
	items   map[int64]*domain.MediaItem
	records map[int64]*domain.SyncRecord
}

func newMemLibrary() *memLibrary {
	return &memLibrary{items: map[int64]*domain.MediaItem{}, records: map[int64]*domain.SyncRecord{}}
}

func (l *memLibrary) ListItemIDs(_ context.Context, q repository.CandidateQuery) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []int64
	for id := range l.items {
		if rec, ok := l.records[id]; ok && rec.Synced && !q.IncludeSynced {
			continue
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	if q.Offset > 0 {
		if q.Offset >= len(ids) {
			return nil, nil
		}
		ids = ids[q.Offset:]
	}
	if q.Limit >= 0 && q.Limit < len(ids) {
		ids = ids[:q.Limit]
	}
	return ids, nil
}

func sortIDs(ids []int64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func (l *memLibrary) GetItem(_ context.Context, id int64) (*domain.MediaItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	return item, nil
}

func (l *memLibrary) GetSyncRecord(_ context.Context, id int64) (*domain.SyncRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (l *memLibrary) SaveSyncRecord(_ context.Context, rec *domain.SyncRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *rec
	l.records[rec.ItemID] = &cp
	return nil
}

func (l *memLibrary) DeleteSyncRecord(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, id)
	return nil
}

func (l *memLibrary) PurgeSyncRecords(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := int64(len(l.records))
	l.records = map[int64]*domain.SyncRecord{}
	return n, nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	base    string
	cfg     config.SyncConfig
	store   *memStore
	library *memLibrary
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	return &fixture{
		base: base,
		cfg: config.SyncConfig{
			Enabled:      true,
			Provider:     "gcs",
			Bucket:       "bucket",
			Folder:       "site",
			BaseDir:      base,
			ImageQuality: 85,
			MaxWidth:     1982,
			Concurrency:  1,
		},
		store:   newMemStore(),
		library: newMemLibrary(),
		clock:   &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
}

func noopOptimize(string, int, int) (optimizer.Result, error) {
	return optimizer.Result{Action: optimizer.ActionNone}, nil
}

func (f *fixture) engine(opts ...Option) *Engine {
	all := append([]Option{WithClock(f.clock.Now), WithOptimizer(noopOptimize)}, opts...)
	return New(f.cfg, f.library, f.library, f.store.opener(), all...)
}

// addItem writes an original plus the named variant files under
// base/2024/01 and registers the item. Variants listed in missing are
// declared but not written.
func (f *fixture) addItem(t *testing.T, id int64, name string, variants map[string]string, missing ...string) *domain.MediaItem {
	t.Helper()
	dir := filepath.Join(f.base, "2024", "01")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("original-"+name), 0o644))

	skip := map[string]bool{}
	for _, m := range missing {
		skip[m] = true
	}
	for variant, file := range variants {
		if skip[variant] {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(variant+"-"+file), 0o644))
	}

	item := &domain.MediaItem{ID: id, Title: name, LocalOriginalPath: path, Variants: variants}
	f.library.items[id] = item
	return item
}

var errBoom = errors.New("403 forbidden: bucket policy denies write")
