package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository stores user profiles and provisions their statistics row.
type UserRepository struct{ db *DB }

// NewUserRepository creates a user repository backed by db.
func NewUserRepository(db *DB) *UserRepository { return &UserRepository{db: db} }

var _ user.Repository = (*UserRepository)(nil)

// Create stores u and an empty statistics row. Duplicate ids and taken
// usernames are rejected.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.users[u.ID]; exists {
		return shared.NewDomainError("user", "Create", shared.ErrAlreadyExists, "user already exists")
	}
	if _, taken := r.db.usernames[u.Username]; taken {
		return shared.ErrUsernameTaken
	}
	c := *u
	r.db.users[u.ID] = &c
	r.db.usernames[u.Username] = u.ID
	r.db.stats[u.ID] = &points.Statistics{UserID: u.ID, UpdatedAt: r.db.now().UTC()}
	return nil
}

// FindByID returns a copy of the user or ErrUserNotFound.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// ListIDs returns every user id in ascending order.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ids := make([]string, 0, len(r.db.users))
	for id := range r.db.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DisplayNames maps each known id to its display name. Unknown ids are
// left out.
func (r *UserRepository) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out[id] = u.DisplayName
		}
	}
	return out, nil
}

// DropStatistics deletes a user's statistics row. Tests use it to reproduce
// a provisioning defect.
func (db *DB) DropStatistics(userID string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.stats, userID)
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// ConfigRepository stores per-user category overrides.
type ConfigRepository struct{ db *DB }

// NewConfigRepository creates a config repository backed by db.
func NewConfigRepository(db *DB) *ConfigRepository { return &ConfigRepository{db: db} }

var _ points.ConfigRepository = (*ConfigRepository)(nil)

// GetConfig returns the default table with the user's overrides applied.
func (r *ConfigRepository) GetConfig(ctx context.Context, userID string) (*points.ActivityPointsConfig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cfg := points.NewDefaultConfig(userID)
	for c, cc := range r.db.configs[userID] {
		cfg.Categories[c] = cc
	}
	return cfg, nil
}

// SaveCategoryConfig upserts a single category override.
func (r *ConfigRepository) SaveCategoryConfig(ctx context.Context, userID string, category points.Category, cfg points.CategoryConfig) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	m, ok := r.db.configs[userID]
	if !ok {
		m = make(map[points.Category]points.CategoryConfig)
		r.db.configs[userID] = m
	}
	m[category] = cfg
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository stores unlocked achievements keyed by user and type.
type AchievementRepository struct{ db *DB }

// NewAchievementRepository creates an achievement repository backed by db.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

var _ achievement.Repository = (*AchievementRepository)(nil)

// Unlock inserts a and bumps the unlock counter in the same critical
// section. It reports false when the user already holds that type.
func (r *AchievementRepository) Unlock(ctx context.Context, a *achievement.Achievement) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stats, ok := r.db.stats[a.UserID]
	if !ok {
		return false, shared.ErrStatisticsNotFound
	}
	byType, ok := r.db.achievements[a.UserID]
	if !ok {
		byType = make(map[achievement.Type]*achievement.Achievement)
		r.db.achievements[a.UserID] = byType
	}
	if _, exists := byType[a.Type]; exists {
		return false, nil
	}
	c := *a
	byType[a.Type] = &c
	stats.AchievementsUnlocked++
	return true, nil
}

// ListByUser returns the user's achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.Achievement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]*achievement.Achievement, 0, len(r.db.achievements[userID]))
	for _, a := range r.db.achievements[userID] {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AchievedAt.Equal(out[j].AchievedAt) {
			return out[i].AchievedAt.After(out[j].AchievedAt)
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// CountInWindow counts achievements unlocked in [from, to) per user. An
// empty userIDs means every user.
func (r *AchievementRepository) CountInWindow(ctx context.Context, userIDs []string, from, to time.Time) (map[string]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	set := filterSet(userIDs)
	out := make(map[string]int)
	for uid, byType := range r.db.achievements {
		if !included(set, uid) {
			continue
		}
		for _, a := range byType {
			if !a.AchievedAt.Before(from) && a.AchievedAt.Before(to) {
				out[uid]++
			}
		}
	}
	return out, nil
}

// MarkSeen clears the new flag and returns how many were cleared.
func (r *AchievementRepository) MarkSeen(ctx context.Context, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := 0
	for _, a := range r.db.achievements[userID] {
		if a.IsNew {
			a.IsNew = false
			n++
		}
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT
// ══════════════════════════════════════════════════════════════════════════════

// ContentRepository stores reusable content keyed by type and id.
type ContentRepository struct{ db *DB }

// NewContentRepository creates a content repository backed by db.
func NewContentRepository(db *DB) *ContentRepository { return &ContentRepository{db: db} }

var _ content.Repository = (*ContentRepository)(nil)

// Find returns the content or ErrContentNotFound.
func (r *ContentRepository) Find(ctx context.Context, t content.Type, id string) (content.Content, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.content[contentKey(t, id)]
	if !ok {
		return nil, shared.ErrContentNotFound
	}
	return c, nil
}

// Save inserts or replaces c.
func (r *ContentRepository) Save(ctx context.Context, c content.Content) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.content[contentKey(c.Kind(), c.ContentID())] = c
	return nil
}

// IncrementUsage bumps the usage counter and returns the new value.
func (r *ContentRepository) IncrementUsage(ctx context.Context, t content.Type, id string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := contentKey(t, id)
	c, ok := r.db.content[key]
	if !ok {
		return 0, shared.ErrContentNotFound
	}
	n := c.UsageCount() + 1
	r.db.content[key] = content.WithUsage(c, n)
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SOCIAL
// ══════════════════════════════════════════════════════════════════════════════

// SocialRepository stores friendships.
type SocialRepository struct{ db *DB }

// NewSocialRepository creates a social repository backed by db.
func NewSocialRepository(db *DB) *SocialRepository { return &SocialRepository{db: db} }

var _ social.Repository = (*SocialRepository)(nil)

// Request creates a pending friendship. A pair may hold only one
// friendship in either direction.
func (r *SocialRepository) Request(ctx context.Context, requesterID, addresseeID string) (*social.Friendship, error) {
	if requesterID == addresseeID {
		return nil, shared.ErrSelfFriendship
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, f := range r.db.friendships {
		if f.Involves(requesterID) && f.Involves(addresseeID) {
			return nil, shared.ErrFriendshipExists
		}
	}
	f := &social.Friendship{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      social.StatusPending,
		CreatedAt:   r.db.now().UTC(),
	}
	r.db.friendships = append(r.db.friendships, f)
	c := *f
	return &c, nil
}

// Accept moves a pending request from requesterID to addresseeID to
// accepted.
func (r *SocialRepository) Accept(ctx context.Context, requesterID, addresseeID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, f := range r.db.friendships {
		if f.RequesterID == requesterID && f.AddresseeID == addresseeID && f.Status == social.StatusPending {
			now := r.db.now().UTC()
			f.Status = social.StatusAccepted
			f.AcceptedAt = &now
			return nil
		}
	}
	return shared.ErrFriendshipNotFound
}

// ListForUser returns every friendship involving userID, in any status.
func (r *SocialRepository) ListForUser(ctx context.Context, userID string) ([]*social.Friendship, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*social.Friendship
	for _, f := range r.db.friendships {
		if f.Involves(userID) {
			c := *f
			out = append(out, &c)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository keeps the latest ranking snapshot per owner and period.
type SnapshotRepository struct{ db *DB }

// NewSnapshotRepository creates a snapshot repository backed by db.
func NewSnapshotRepository(db *DB) *SnapshotRepository { return &SnapshotRepository{db: db} }

var _ leaderboard.SnapshotRepository = (*SnapshotRepository)(nil)

// GetLatest returns the stored snapshot or ErrSnapshotNotFound.
func (r *SnapshotRepository) GetLatest(ctx context.Context, ownerID string, period leaderboard.Period) (*leaderboard.Snapshot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.snapshots[snapshotKey(ownerID, period)]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	return s, nil
}

// Save replaces the snapshot for s.OwnerID and s.Period.
func (r *SnapshotRepository) Save(ctx context.Context, s *leaderboard.Snapshot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.snapshots[snapshotKey(s.OwnerID, s.Period)] = s
	return nil
}
