package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LOCK
// ══════════════════════════════════════════════════════════════════════════════

// UserLock serializes work per user across processes with SET NX PX. The
// lock value is a random token; release deletes the key only while it still
// holds that token, so an expired lock re-acquired by another process is
// never released by the old holder.
type UserLock struct {
	cache *Cache
	ttl   time.Duration
	poll  time.Duration
	log   *logger.Logger
}

// NewUserLock creates a new UserLock.
func NewUserLock(cache *Cache, ttl time.Duration, log *logger.Logger) *UserLock {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UserLock{
		cache: cache,
		ttl:   ttl,
		poll:  25 * time.Millisecond,
		log:   log.With(logger.Component("user_lock")),
	}
}

// Lock blocks until the user's lock is held or ctx is done.
func (l *UserLock) Lock(ctx context.Context, userID string) (func(), error) {
	key := LockKey("achievements:" + userID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token, userID), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *UserLock) releaser(key, token, userID string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		deleted, err := l.cache.DeleteIfValue(ctx, key, token)
		if err != nil {
			l.log.Warn("lock release failed", logger.UserID(userID), logger.Err(err))
			return
		}
		if !deleted {
			l.log.Warn("lock expired before release", logger.UserID(userID))
		}
	}
}
