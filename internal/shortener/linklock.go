package shortener

import (
	"context"
	"sync"
)

// linkLocks serializes cache check-then-insert for the same long link
// across concurrent calls. Each call still does its own lookup and
// provider request, so per-call tags and group ids are honored.
type linkLocks struct {
	mu    sync.Mutex
	locks map[string]*linkLock
}

type linkLock struct {
	sem  chan struct{}
	refs int // holders plus waiters
}

// acquire blocks until link is free or ctx is done.
// The returned func releases the lock.
func (l *linkLocks) acquire(ctx context.Context, link string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*linkLock)
	}
	lk, ok := l.locks[link]
	if !ok {
		lk = &linkLock{sem: make(chan struct{}, 1)}
		l.locks[link] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		return func() {
			<-lk.sem
			l.release(link, lk)
		}, nil
	case <-ctx.Done():
		l.release(link, lk)
		return nil, ctx.Err()
	}
}

func (l *linkLocks) release(link string, lk *linkLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, link)
	}
}

// contenders returns how many calls hold or wait for link.
func (l *linkLocks) contenders(link string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lk, ok := l.locks[link]; ok {
		return lk.refs
	}
	return 0
}
