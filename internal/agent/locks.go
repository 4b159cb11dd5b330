package agent

import (
	"context"
	"sync"
)

// ThreadLocks serializes turns per thread id. Entries are reference counted
// and removed once no caller holds or waits for them.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	sem  chan struct{}
	refs int
}

// NewThreadLocks creates an empty lock table.
func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{locks: make(map[string]*threadLock)}
}

// Lock blocks until the thread is free or ctx ends. The returned func
// releases the lock and must be called exactly once.
func (l *ThreadLocks) Lock(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.locks[threadID]
	if !ok {
		tl = &threadLock{sem: make(chan struct{}, 1)}
		l.locks[threadID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(threadID, tl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-tl.sem
			l.release(threadID, tl)
		})
	}, nil
}

func (l *ThreadLocks) release(threadID string, tl *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, threadID)
	}
}

// Len returns the number of threads currently locked or awaited.
func (l *ThreadLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
