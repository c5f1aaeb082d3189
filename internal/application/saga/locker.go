package saga

import (
	"context"
	"sync"
)

// UserLocker serializes flows that must not interleave for the same user.
type UserLocker interface {
	// Lock blocks until the user's lock is held or ctx is done. The
	// returned func releases it.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// KeyedMutex is an in-process UserLocker with one channel-based mutex per
// user, so waiting respects context cancellation.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock implements UserLocker.
func (k *KeyedMutex) Lock(ctx context.Context, userID string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[userID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.release(userID, l)
		})
	}, nil
}

func (k *KeyedMutex) release(userID string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, userID)
	}
}
