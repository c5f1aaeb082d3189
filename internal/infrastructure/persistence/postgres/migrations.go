package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS, STATISTICS, LEDGER, POINTS CONFIG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username VARCHAR(32) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- One row per user, created together with the user. Only the ledger writes it.
CREATE TABLE IF NOT EXISTS user_statistics (
    user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    total_points INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    achievements_unlocked INTEGER NOT NULL DEFAULT 0,
    activities_logged INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total CHECK (total_points >= 0),
    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_user_statistics_ranking
    ON user_statistics(total_points DESC, achievements_unlocked DESC, user_id);

CREATE TABLE IF NOT EXISTS activity_log_entries (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    category VARCHAR(20) NOT NULL,
    activity_name VARCHAR(200) NOT NULL,
    points INTEGER NOT NULL,
    date DATE NOT NULL,
    time_of_day VARCHAR(8),
    duration_minutes INTEGER,
    notes TEXT,
    source VARCHAR(20) NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    idempotency_key TEXT UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_points CHECK (points >= 0),
    CONSTRAINT valid_category CHECK (category IN ('fitness', 'mindset', 'nutrition', 'work', 'social', 'bonus'))
);

CREATE INDEX IF NOT EXISTS idx_activity_log_user_date ON activity_log_entries(user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_activity_log_date ON activity_log_entries(date);

CREATE TABLE IF NOT EXISTS activity_points_config (
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    category VARCHAR(20) NOT NULL,
    base INTEGER NOT NULL,
    multiplier DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, category),
    CONSTRAINT valid_base CHECK (base >= 0 AND base <= 500),
    CONSTRAINT valid_multiplier CHECK (multiplier > 0)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACHIEVEMENTS, SHARED CONTENT
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    achievement_type VARCHAR(50) NOT NULL,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(20) NOT NULL DEFAULT '',
    achieved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    is_new BOOLEAN NOT NULL DEFAULT TRUE,

    UNIQUE(user_id, achievement_type)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id, achieved_at DESC);
CREATE INDEX IF NOT EXISTS idx_achievements_achieved_at ON achievements(achieved_at);

-- Routines, articles and meal plans share one table keyed by kind.
CREATE TABLE IF NOT EXISTS shared_content (
    content_type VARCHAR(20) NOT NULL,
    id TEXT NOT NULL,
    creator_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    category VARCHAR(20) NOT NULL,
    title VARCHAR(200) NOT NULL DEFAULT '',
    usage_count INTEGER NOT NULL DEFAULT 0,
    details JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (content_type, id),
    CONSTRAINT valid_content_type CHECK (content_type IN ('routine', 'article', 'meal_plan')),
    CONSTRAINT valid_usage CHECK (usage_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_shared_content_creator ON shared_content(creator_id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: FRIENDSHIPS, RANKING SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS friendships (
    requester_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    addressee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    accepted_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (requester_id, addressee_id),
    CONSTRAINT no_self_friendship CHECK (requester_id != addressee_id),
    CONSTRAINT valid_friendship_status CHECK (status IN ('pending', 'accepted'))
);

-- At most one relation per unordered pair.
CREATE UNIQUE INDEX IF NOT EXISTS idx_friendships_pair
    ON friendships(LEAST(requester_id, addressee_id), GREATEST(requester_id, addressee_id));
CREATE INDEX IF NOT EXISTS idx_friendships_addressee ON friendships(addressee_id);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
    owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    period VARCHAR(20) NOT NULL,
    ranks JSONB NOT NULL,
    taken_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (owner_id, period)
);
`
