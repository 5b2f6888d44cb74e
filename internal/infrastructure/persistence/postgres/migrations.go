package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users table
-- Version: 001

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Study preferences (JSONB for flexibility)
    preferences JSONB NOT NULL DEFAULT '{
        "daily_goal_minutes": 60,
        "preferred_session_type": "pomodoro",
        "reminders_enabled": true
    }'::jsonb,

    -- Materialized statistics. Incremented by the progress synchronizer
    -- and rebuilt by the reconciliation job from the session history.
    total_study_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_sessions INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_study_date TIMESTAMP WITH TIME ZONE,
    completed_topics INTEGER NOT NULL DEFAULT 0,
    average_session_length DOUBLE PRECISION NOT NULL DEFAULT 0,

    CONSTRAINT valid_hours CHECK (total_study_hours >= 0),
    CONSTRAINT valid_sessions CHECK (total_sessions >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND longest_streak >= 0)
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

-- Unlocked achievements, one row per (user, type)
CREATE TABLE IF NOT EXISTS achievements (
    id SERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type VARCHAR(50) NOT NULL,
    title VARCHAR(100) NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, type)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE TOPICS AND PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create topics and user_progress tables
-- Version: 002

CREATE TABLE IF NOT EXISTS topics (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(30) NOT NULL,
    difficulty VARCHAR(20) NOT NULL DEFAULT 'beginner',
    estimated_hours INTEGER NOT NULL DEFAULT 0,
    milestones JSONB NOT NULL DEFAULT '[]'::jsonb,
    resources JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_by UUID REFERENCES users(id) ON DELETE SET NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Aggregate usage statistics across all users
    total_study_minutes INTEGER NOT NULL DEFAULT 0,
    session_count INTEGER NOT NULL DEFAULT 0,
    completion_count INTEGER NOT NULL DEFAULT 0,
    average_rating DECIMAL(3,2) NOT NULL DEFAULT 0.00,
    rating_count INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_difficulty CHECK (difficulty IN ('beginner', 'intermediate', 'advanced')),
    CONSTRAINT valid_avg_rating CHECK (average_rating >= 0 AND average_rating <= 5)
);

CREATE INDEX IF NOT EXISTS idx_topics_category ON topics(category);
CREATE INDEX IF NOT EXISTS idx_topics_created_by ON topics(created_by);

-- Per-user per-topic progress. Created lazily on first interaction.
CREATE TABLE IF NOT EXISTS user_progress (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'not_started',
    progress INTEGER NOT NULL DEFAULT 0,
    time_spent_minutes INTEGER NOT NULL DEFAULT 0,
    completed_milestones JSONB NOT NULL DEFAULT '{}'::jsonb,
    completed_resources JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_bookmarked BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT NOT NULL DEFAULT '',
    rating INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    last_studied_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, topic_id),

    CONSTRAINT valid_progress CHECK (progress >= 0 AND progress <= 100),
    CONSTRAINT valid_status CHECK (status IN ('not_started', 'in_progress', 'completed', 'on_hold')),
    CONSTRAINT valid_rating CHECK (rating >= 0 AND rating <= 5),
    CONSTRAINT valid_time_spent CHECK (time_spent_minutes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_user ON user_progress(user_id);
CREATE INDEX IF NOT EXISTS idx_progress_topic ON user_progress(topic_id);
CREATE INDEX IF NOT EXISTS idx_progress_bookmarked ON user_progress(user_id) WHERE is_bookmarked;
`

const migration002Down = `
DROP TABLE IF EXISTS user_progress;
DROP TABLE IF EXISTS topics;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE STUDY SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create study_sessions table
-- Version: 003

-- The session history is the source of truth for streaks and statistics.
-- Terminal rows (completed/cancelled) are immutable by contract.
CREATE TABLE IF NOT EXISTS study_sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
    type VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'planned',
    planned_duration INTEGER NOT NULL,
    actual_duration INTEGER NOT NULL DEFAULT 0,
    paused_time INTEGER NOT NULL DEFAULT 0,
    start_time TIMESTAMP WITH TIME ZONE,
    end_time TIMESTAMP WITH TIME ZONE,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT NOT NULL DEFAULT '',
    productivity JSONB,
    environment JSONB NOT NULL DEFAULT '{}'::jsonb,
    breaks JSONB NOT NULL DEFAULT '[]'::jsonb,
    focus_metrics JSONB NOT NULL DEFAULT '{}'::jsonb,
    tags JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_type CHECK (type IN ('pomodoro', 'focused', 'break', 'review')),
    CONSTRAINT valid_session_status CHECK (status IN ('planned', 'active', 'paused', 'completed', 'cancelled')),
    CONSTRAINT valid_planned CHECK (planned_duration >= 1 AND planned_duration <= 480),
    CONSTRAINT valid_actual CHECK (actual_duration >= 0),
    CONSTRAINT valid_paused CHECK (paused_time >= 0)
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON study_sessions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_user_topic ON study_sessions(user_id, topic_id);
CREATE INDEX IF NOT EXISTS idx_sessions_completed ON study_sessions(user_id, end_time) WHERE status = 'completed';

-- At most one active or paused session per user
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
    ON study_sessions(user_id) WHERE status IN ('active', 'paused');
`

const migration003Down = `
DROP TABLE IF EXISTS study_sessions;
`
