// Package memory provides in-process implementations of every repository.
// It backs development runs without DATABASE_URL and the application tests.
package memory

import (
	"sync"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
)

// DB is the shared state. A single mutex plays the role of the database's
// row locks: every repository method is one transaction.
type DB struct {
	mu sync.Mutex

	users       map[string]*user.User
	usernames   map[string]string
	stats       map[string]*points.Statistics
	entries     map[string][]*points.LogEntry
	idempotency map[string]struct{}
	configs     map[string]map[points.Category]points.CategoryConfig

	achievements map[string]map[achievement.Type]*achievement.Achievement

	content map[string]content.Content

	friendships []*social.Friendship

	snapshots map[string]*leaderboard.Snapshot

	now func() time.Time
}

// NewDB creates an empty store.
func NewDB() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		usernames:    make(map[string]string),
		stats:        make(map[string]*points.Statistics),
		entries:      make(map[string][]*points.LogEntry),
		idempotency:  make(map[string]struct{}),
		configs:      make(map[string]map[points.Category]points.CategoryConfig),
		achievements: make(map[string]map[achievement.Type]*achievement.Achievement),
		content:      make(map[string]content.Content),
		snapshots:    make(map[string]*leaderboard.Snapshot),
		now:          time.Now,
	}
}

// SetClock overrides the time source used for created_at columns.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func contentKey(t content.Type, id string) string {
	return string(t) + ":" + id
}

func snapshotKey(ownerID string, p leaderboard.Period) string {
	return ownerID + ":" + string(p)
}

func copyStats(s *points.Statistics) *points.Statistics {
	c := *s
	if s.LastActivityDate != nil {
		d := *s.LastActivityDate
		c.LastActivityDate = &d
	}
	return &c
}

func filterSet(ids []string) map[string]struct{} {
	if ids == nil {
		return nil
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func included(set map[string]struct{}, id string) bool {
	if set == nil {
		return true
	}
	_, ok := set[id]
	return ok
}
