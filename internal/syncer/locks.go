package syncer

import (
	"context"
	"sync"
)

// Locker serialises sync work on a single media item.
type Locker interface {
	Lock(ctx context.Context, itemID int64) (unlock func(), err error)
}

// keyedLocker is an in-process Locker with one slot per item id.
type keyedLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{slots: make(map[int64]*slot)}
}

func (l *keyedLocker) Lock(ctx context.Context, itemID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[itemID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[itemID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(itemID, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(itemID, s)
		return nil, ctx.Err()
	}
}

func (l *keyedLocker) release(itemID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, itemID)
	}
}
