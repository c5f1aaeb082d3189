package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

var _ user.Repository = (*UserRepository)(nil)

// Create inserts the user and its zeroed statistics row in one transaction.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, username, display_name, created_at) VALUES ($1, $2, $3, $4)`,
			u.ID, u.Username, u.DisplayName, u.CreatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				if constraintName(err) == "users_pkey" {
					return shared.NewDomainError("user", "Create", shared.ErrAlreadyExists, "user id already registered")
				}
				return shared.ErrUsernameTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO user_statistics (user_id, updated_at) VALUES ($1, $2)`,
			u.ID, u.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create statistics: %w", err)
		}
		return nil
	})
}

// FindByID returns a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.conn.QueryRow(ctx,
		`SELECT id, username, display_name, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListIDs returns every user id in ascending order.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan user ids: %w", err)
	}
	return ids, nil
}

// DisplayNames resolves display names for ids.
func (r *UserRepository) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.conn.Query(ctx, `SELECT id, display_name FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query display names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan display name: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS CONFIG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ConfigRepository implements points.ConfigRepository.
type ConfigRepository struct {
	conn *Connection
}

// NewConfigRepository creates a new ConfigRepository.
func NewConfigRepository(conn *Connection) *ConfigRepository {
	return &ConfigRepository{conn: conn}
}

var _ points.ConfigRepository = (*ConfigRepository)(nil)

// GetConfig returns the stored categories merged over the defaults.
func (r *ConfigRepository) GetConfig(ctx context.Context, userID string) (*points.ActivityPointsConfig, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT category, base, multiplier FROM activity_points_config WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points config: %w", err)
	}
	defer rows.Close()

	cfg := points.NewDefaultConfig(userID)
	for rows.Next() {
		var (
			category string
			cc       points.CategoryConfig
		)
		if err := rows.Scan(&category, &cc.Base, &cc.Multiplier); err != nil {
			return nil, fmt.Errorf("failed to scan points config: %w", err)
		}
		cfg.Categories[points.Category(category)] = cc
	}
	return cfg, rows.Err()
}

// SaveCategoryConfig upserts one category row.
func (r *ConfigRepository) SaveCategoryConfig(ctx context.Context, userID string, category points.Category, cfg points.CategoryConfig) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO activity_points_config (user_id, category, base, multiplier, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, category) DO UPDATE SET
			base = EXCLUDED.base,
			multiplier = EXCLUDED.multiplier,
			updated_at = EXCLUDED.updated_at
	`, userID, string(category), cfg.Base, cfg.Multiplier)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrUserNotFound
		}
		return fmt.Errorf("failed to save points config: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

var _ achievement.Repository = (*AchievementRepository)(nil)

// Unlock inserts the achievement and bumps achievements_unlocked only when
// the insert created a row.
func (r *AchievementRepository) Unlock(ctx context.Context, a *achievement.Achievement) (bool, error) {
	created := false
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx,
			`SELECT user_id FROM user_statistics WHERE user_id = $1 FOR UPDATE`, a.UserID).Scan(&locked)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrStatisticsNotFound
			}
			return fmt.Errorf("failed to lock statistics: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO achievements (id, user_id, achievement_type, title, description, icon, achieved_at, is_new)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, achievement_type) DO NOTHING
		`, a.ID, a.UserID, string(a.Type), a.Title, a.Description, a.Icon, a.AchievedAt, a.IsNew)
		if err != nil {
			return fmt.Errorf("failed to insert achievement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_statistics
			SET achievements_unlocked = achievements_unlocked + 1, updated_at = NOW()
			WHERE user_id = $1
		`, a.UserID)
		if err != nil {
			return fmt.Errorf("failed to count achievement: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// ListByUser returns a user's achievements, newest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.Achievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, achievement_type, title, description, icon, achieved_at, is_new
		FROM achievements
		WHERE user_id = $1
		ORDER BY achieved_at DESC, achievement_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	out := make([]*achievement.Achievement, 0)
	for rows.Next() {
		var (
			a   achievement.Achievement
			typ string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &typ, &a.Title, &a.Description, &a.Icon, &a.AchievedAt, &a.IsNew); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Type = achievement.Type(typ)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// CountInWindow counts achievements with achieved_at in [from, to).
func (r *AchievementRepository) CountInWindow(ctx context.Context, userIDs []string, from, to time.Time) (map[string]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, COUNT(*)
		FROM achievements
		WHERE achieved_at >= $1 AND achieved_at < $2
		  AND ($3::text[] IS NULL OR user_id = ANY($3))
		GROUP BY user_id
	`, from, to, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count achievements: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan achievement count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// MarkSeen clears is_new on the user's achievements.
func (r *AchievementRepository) MarkSeen(ctx context.Context, userID string) (int, error) {
	tag, err := r.conn.Exec(ctx,
		`UPDATE achievements SET is_new = FALSE WHERE user_id = $1 AND is_new`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark achievements seen: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ContentRepository implements content.Repository over shared_content. The
// kind-specific fields live in the details column.
type ContentRepository struct {
	conn *Connection
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(conn *Connection) *ContentRepository {
	return &ContentRepository{conn: conn}
}

var _ content.Repository = (*ContentRepository)(nil)

// Find returns a content item by kind and id.
func (r *ContentRepository) Find(ctx context.Context, t content.Type, id string) (content.Content, error) {
	var (
		item     content.Item
		category string
		details  []byte
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, creator_id, category, title, usage_count, details
		FROM shared_content
		WHERE content_type = $1 AND id = $2
	`, string(t), id).Scan(&item.ID, &item.Creator, &category, &item.Title, &item.Usage, &details)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	item.Cat = points.Category(category)
	return decodeContent(t, item, details)
}

// Save upserts a content item. usage_count is never overwritten.
func (r *ContentRepository) Save(ctx context.Context, c content.Content) error {
	details, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	var title string
	if item, ok := itemOf(c); ok {
		title = item.Title
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO shared_content (content_type, id, creator_id, category, title, usage_count, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (content_type, id) DO UPDATE SET
			creator_id = EXCLUDED.creator_id,
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			details = EXCLUDED.details
	`, string(c.Kind()), c.ContentID(), c.CreatorID(), string(c.Category()), title, c.UsageCount(), details)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrUserNotFound
		}
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

// IncrementUsage adds one to usage_count atomically.
func (r *ContentRepository) IncrementUsage(ctx context.Context, t content.Type, id string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		UPDATE shared_content SET usage_count = usage_count + 1
		WHERE content_type = $1 AND id = $2
		RETURNING usage_count
	`, string(t), id).Scan(&n)
	if err != nil {
		if IsNoRows(err) {
			return 0, shared.ErrContentNotFound
		}
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return n, nil
}

func decodeContent(t content.Type, item content.Item, details []byte) (content.Content, error) {
	var (
		c   content.Content
		err error
	)
	switch t {
	case content.TypeRoutine:
		var v content.Routine
		err = unmarshalDetails(details, &v)
		v.Item = item
		c = v
	case content.TypeArticle:
		var v content.Article
		err = unmarshalDetails(details, &v)
		v.Item = item
		c = v
	case content.TypeMealPlan:
		var v content.MealPlan
		err = unmarshalDetails(details, &v)
		v.Item = item
		c = v
	default:
		return nil, shared.ErrInvalidContentType
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal content details: %w", err)
	}
	return c, nil
}

func unmarshalDetails(details []byte, v any) error {
	if len(details) == 0 {
		return nil
	}
	return json.Unmarshal(details, v)
}

func itemOf(c content.Content) (content.Item, bool) {
	switch v := c.(type) {
	case content.Routine:
		return v.Item, true
	case content.Article:
		return v.Item, true
	case content.MealPlan:
		return v.Item, true
	}
	return content.Item{}, false
}

// ══════════════════════════════════════════════════════════════════════════════
// SOCIAL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SocialRepository implements social.Repository over friendships.
type SocialRepository struct {
	conn *Connection
}

// NewSocialRepository creates a new SocialRepository.
func NewSocialRepository(conn *Connection) *SocialRepository {
	return &SocialRepository{conn: conn}
}

var _ social.Repository = (*SocialRepository)(nil)

// Request creates a pending friendship.
func (r *SocialRepository) Request(ctx context.Context, requesterID, addresseeID string) (*social.Friendship, error) {
	if requesterID == addresseeID {
		return nil, shared.ErrSelfFriendship
	}

	f := &social.Friendship{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      social.StatusPending,
	}
	err := r.conn.QueryRow(ctx, `
		INSERT INTO friendships (requester_id, addressee_id, status)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, requesterID, addresseeID, string(social.StatusPending)).Scan(&f.CreatedAt)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return nil, shared.ErrFriendshipExists
		case IsForeignKeyViolation(err):
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create friendship: %w", err)
	}
	return f, nil
}

// Accept marks the pending request accepted.
func (r *SocialRepository) Accept(ctx context.Context, requesterID, addresseeID string) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE friendships SET status = $3, accepted_at = NOW()
		WHERE requester_id = $1 AND addressee_id = $2 AND status = $4
	`, requesterID, addresseeID, string(social.StatusAccepted), string(social.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to accept friendship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrFriendshipNotFound
	}
	return nil
}

// ListForUser returns every friendship involving the user.
func (r *SocialRepository) ListForUser(ctx context.Context, userID string) ([]*social.Friendship, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT requester_id, addressee_id, status, created_at, accepted_at
		FROM friendships
		WHERE requester_id = $1 OR addressee_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query friendships: %w", err)
	}
	defer rows.Close()

	var out []*social.Friendship
	for rows.Next() {
		var (
			f      social.Friendship
			status string
		)
		if err := rows.Scan(&f.RequesterID, &f.AddresseeID, &status, &f.CreatedAt, &f.AcceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friendship: %w", err)
		}
		f.Status = social.FriendshipStatus(status)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING SNAPSHOT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements leaderboard.SnapshotRepository.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

var _ leaderboard.SnapshotRepository = (*SnapshotRepository)(nil)

// GetLatest returns the owner's snapshot for a period.
func (r *SnapshotRepository) GetLatest(ctx context.Context, ownerID string, p leaderboard.Period) (*leaderboard.Snapshot, error) {
	var (
		s      leaderboard.Snapshot
		period string
		ranks  []byte
	)
	err := r.conn.QueryRow(ctx, `
		SELECT owner_id, period, ranks, taken_at
		FROM ranking_snapshots
		WHERE owner_id = $1 AND period = $2
	`, ownerID, string(p)).Scan(&s.OwnerID, &period, &ranks, &s.TakenAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.Period = leaderboard.Period(period)
	if err := json.Unmarshal(ranks, &s.Ranks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot ranks: %w", err)
	}
	return &s, nil
}

// Save replaces the owner's snapshot for the period.
func (r *SnapshotRepository) Save(ctx context.Context, s *leaderboard.Snapshot) error {
	ranks, err := json.Marshal(s.Ranks)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot ranks: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO ranking_snapshots (owner_id, period, ranks, taken_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, period) DO UPDATE SET
			ranks = EXCLUDED.ranks,
			taken_at = EXCLUDED.taken_at
	`, s.OwnerID, string(s.Period), ranks, s.TakenAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
