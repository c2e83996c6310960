// Package postgres - embedded schema migrations for Student Ranking Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Student profile tables (scoring input)
-- Version: 001

CREATE TABLE IF NOT EXISTS student_profiles (
    user_id UUID PRIMARY KEY,
    current_year INTEGER,
    university TEXT,
    grades TEXT,
    industry_exposure TEXT,
    months_of_experience INTEGER,
    awards INTEGER,
    certifications INTEGER,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS student_gcses (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    subject TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_student_gcses_user_id ON student_gcses(user_id);

CREATE TABLE IF NOT EXISTS student_alevels (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    subject TEXT NOT NULL,
    grade TEXT,
    category TEXT
);
CREATE INDEX IF NOT EXISTS idx_student_alevels_user_id ON student_alevels(user_id);

CREATE TABLE IF NOT EXISTS student_internships (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    tier TEXT,
    months INTEGER,
    year INTEGER,
    end_month INTEGER
);
CREATE INDEX IF NOT EXISTS idx_student_internships_user_id ON student_internships(user_id);

CREATE TABLE IF NOT EXISTS student_society_roles (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    role_title TEXT,
    society_size TEXT,
    years_active INTEGER
);
CREATE INDEX IF NOT EXISTS idx_student_society_roles_user_id ON student_society_roles(user_id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE RANKINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Ranking rows, breakdowns, history and audit log
-- Version: 002

CREATE TABLE IF NOT EXISTS student_rankings (
    user_id UUID PRIMARY KEY,
    composite NUMERIC(8,3) NOT NULL,
    academic NUMERIC(6,3) NOT NULL,
    experience NUMERIC(6,3) NOT NULL,
    rank INT NULL,
    percentile NUMERIC(5,2),
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    config_version TEXT NOT NULL,
    compute_run_id UUID NOT NULL,
    input_checksum TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_student_rankings_composite_desc ON student_rankings (composite DESC);
CREATE INDEX IF NOT EXISTS idx_student_rankings_updated_at_desc ON student_rankings (updated_at DESC);

CREATE TABLE IF NOT EXISTS student_score_breakdown (
    user_id UUID PRIMARY KEY,
    academic_components JSONB NOT NULL,
    experience_components JSONB NOT NULL,
    effective_academic_weights JSONB NOT NULL,
    academic_total NUMERIC(6,3) NOT NULL,
    experience_total NUMERIC(6,3) NOT NULL,
    composite NUMERIC(8,3) NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    config_version TEXT NOT NULL,
    compute_run_id UUID NOT NULL
);

CREATE TABLE IF NOT EXISTS student_score_history (
    user_id UUID NOT NULL,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    academic NUMERIC(6,3) NOT NULL,
    experience NUMERIC(6,3) NOT NULL,
    composite NUMERIC(8,3) NOT NULL,
    config_version TEXT NOT NULL,
    compute_run_id UUID NOT NULL,
    PRIMARY KEY (user_id, computed_at)
);

CREATE TABLE IF NOT EXISTS ranking_updates_log (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL,
    reason TEXT NOT NULL,
    old_score NUMERIC(8,3),
    new_score NUMERIC(8,3) NOT NULL,
    delta NUMERIC(8,3),
    payload JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    config_version TEXT NOT NULL,
    compute_run_id UUID NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ranking_updates_log_user_id ON ranking_updates_log(user_id);
CREATE INDEX IF NOT EXISTS idx_ranking_updates_log_created_at ON ranking_updates_log(created_at DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Histogram and global statistics (aggregation outputs)
-- Version: 003

CREATE TABLE IF NOT EXISTS score_histogram (
    bucket_id INT PRIMARY KEY,
    count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS global_ranking_stats (
    id INT PRIMARY KEY,
    total_users BIGINT NOT NULL DEFAULT 0,
    mean_composite NUMERIC(8,3),
    p50 NUMERIC(8,3),
    p90 NUMERIC(8,3),
    p99 NUMERIC(8,3),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    config_version TEXT NOT NULL
);
`

