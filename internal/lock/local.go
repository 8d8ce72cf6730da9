package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker implements Locker within one process. It is used when Redis is
// disabled and only one instance serves checkouts.
type LocalLocker struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	held   map[string]localEntry
	nextID uint64
}

type localEntry struct {
	id        uint64
	expiresAt time.Time
}

// NewLocalLocker creates a locker whose locks expire after ttl.
func NewLocalLocker(ttl time.Duration) *LocalLocker {
	return &LocalLocker{
		ttl:  ttl,
		now:  time.Now,
		held: make(map[string]localEntry),
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, ErrNotAcquired
	}

	l.nextID++
	l.held[key] = localEntry{id: l.nextID, expiresAt: now.Add(l.ttl)}
	return &localLock{locker: l, key: key, id: l.nextID}, nil
}

func (l *LocalLocker) release(key string, id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[key]; ok && entry.id == id {
		delete(l.held, key)
	}
}

type localLock struct {
	locker *LocalLocker
	key    string
	id     uint64
}

func (l *localLock) Release(context.Context) error {
	l.locker.release(l.key, l.id)
	return nil
}
