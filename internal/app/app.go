// Package app initializes every component of the engine.
// app.go is the assembly point: it creates the DB pool, runs migrations,
// builds repositories, services, and handlers, and wires them into the
// HTTP server and the scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/config"
	"rewards-engine/internal/db/postgres"
	"rewards-engine/internal/features/analysis"
	"rewards-engine/internal/features/ledger"
	"rewards-engine/internal/features/rewards"
	"rewards-engine/internal/jobs"
	"rewards-engine/internal/server"
)

// App holds every long-lived component of the engine.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New creates and initializes the application. Initialization order
// matters, components depend on each other.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// === 2. Repositories ===
	ledgerRepo := ledger.NewRepository(pool, cfg.DBQueryTimeout)
	analysisRepo := analysis.NewRepository(pool, cfg.DBQueryTimeout)

	// === 3. Services ===
	var dispatcher analysis.Dispatcher
	if cfg.RewardWebhookURL != "" {
		dispatcher = rewards.NewWebhookDispatcher(cfg.RewardWebhookURL, cfg.RewardWebhookTimeout)
	} else {
		log.Warn("REWARD_WEBHOOK_URL is empty, analysis results will not be delivered")
	}
	ledgerService := ledger.NewService(ledgerRepo, cfg)
	analysisService := analysis.NewService(analysisRepo, dispatcher, cfg)

	// === 4. Handlers ===
	ledgerHandler := ledger.NewHandler(ledgerService)
	analysisHandler := analysis.NewHandler(analysisService)

	// === 5. HTTP server and scheduler ===
	srv := server.New(cfg, ledgerHandler, analysisHandler)
	scheduler := jobs.NewScheduler(analysisService, cfg.AnalysisCron)

	return &App{
		Server:    srv,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}

// runMigrations applies every schema migration in order.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001UserScores},
		{2, migration002AwardEvents},
		{3, migration003AnalysisRuns},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}
	log.Info("Migrations applied")
	return nil
}

// Schema migrations, embedded so a single binary deploys the whole
// engine.

// migration001UserScores holds one row per user: the six capped point
// totals, the six trailing-window stamp logs, the six lifetime counters,
// one-time grants, and the streak/empathy state the analysis job owns.
var migration001UserScores = `
CREATE TABLE IF NOT EXISTS user_scores (
    user_id VARCHAR(255) PRIMARY KEY,

    points_from_posts     DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_from_likes     DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_from_comments  DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_from_referrals DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_from_tipping   DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_from_crypto    DOUBLE PRECISION NOT NULL DEFAULT 0,

    daily_posts_timestamps     TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
    daily_likes_timestamps     TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
    daily_comments_timestamps  TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
    daily_referrals_timestamps TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
    daily_tipping_timestamps   TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
    daily_crypto_timestamps    TIMESTAMPTZ[] NOT NULL DEFAULT '{}',

    lifetime_posts     BIGINT NOT NULL DEFAULT 0,
    lifetime_likes     BIGINT NOT NULL DEFAULT 0,
    lifetime_comments  BIGINT NOT NULL DEFAULT 0,
    lifetime_referrals BIGINT NOT NULL DEFAULT 0,
    lifetime_tipping   BIGINT NOT NULL DEFAULT 0,
    lifetime_crypto    BIGINT NOT NULL DEFAULT 0,

    one_time_points DOUBLE PRECISION NOT NULL DEFAULT 0,
    one_time_events TEXT[] NOT NULL DEFAULT '{}',

    last_active_date            DATE,
    consecutive_activity_days   INTEGER NOT NULL DEFAULT 0,
    historical_engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// migration002AwardEvents is the append-only history of credited awards.
// The stamp arrays on user_scores get pruned to the trailing window; this
// table never does.
var migration002AwardEvents = `
CREATE TABLE IF NOT EXISTS award_events (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    category VARCHAR(32) NOT NULL,
    points DOUBLE PRECISION NOT NULL,
    quality_score INTEGER,
    originality DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_award_events_user_created
    ON award_events (user_id, created_at);
`

// migration003AnalysisRuns stores each committed daily analysis with its
// full result payload, so delivery can be retried without recomputation.
var migration003AnalysisRuns = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id UUID PRIMARY KEY,
    run_at TIMESTAMPTZ NOT NULL,
    users_analyzed INTEGER NOT NULL,
    results JSONB NOT NULL,
    delivered BOOLEAN NOT NULL DEFAULT FALSE,
    delivered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_run_at
    ON analysis_runs (run_at DESC);
`
