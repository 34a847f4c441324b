package locker

import (
	"context"
	"sync"

	"github.com/trezcool/horarios/core/schedule"
)

// Local is an in-process keyed lock. It only serializes callers of the same process.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // buffered, holds a token while the key is locked
	refs int
}

var _ schedule.Locker = (*Local)(nil) // interface compliance check

func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func() error, error) {
	kl := l.acquireRef(key)

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-kl.ch
			l.releaseRef(key)
		})
		return nil
	}, nil
}

func (l *Local) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *Local) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.locks[key]; ok {
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
	}
}
