package leaderboard

import "context"

// SnapshotRepository stores one latest snapshot per (owner, period).
type SnapshotRepository interface {
	// GetLatest returns shared.ErrSnapshotNotFound when none exists.
	GetLatest(ctx context.Context, ownerID string, period Period) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

// Cache stores requester-independent rankings.
type Cache interface {
	// Get returns nil rows and no error on a miss.
	Get(ctx context.Context, scope Scope, period Period) ([]*Row, error)
	Set(ctx context.Context, scope Scope, period Period, rows []*Row) error
	Invalidate(ctx context.Context) error
}
