package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewards-engine/internal/common"
	"rewards-engine/internal/features/ledger"
)

// Repository reads population snapshots and persists analysis runs.
type Repository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewRepository creates the analysis repository. timeout bounds every
// storage operation issued through it; the snapshot and the run batch
// get a longer allowance since they touch the whole population.
func NewRepository(db *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// Snapshot loads every user's full score record without taking row
// locks. Awards committed after the read are picked up by the next run.
func (r *Repository) Snapshot(ctx context.Context) ([]*ledger.UserScore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT user_id, last_active_date, consecutive_activity_days,
		       historical_engagement_score,
		       points_from_posts, points_from_likes, points_from_comments,
		       points_from_referrals, points_from_tipping, points_from_crypto,
		       lifetime_posts, lifetime_likes, lifetime_comments,
		       lifetime_referrals, lifetime_tipping, lifetime_crypto,
		       daily_posts_timestamps, daily_likes_timestamps,
		       daily_comments_timestamps, daily_referrals_timestamps,
		       daily_tipping_timestamps, daily_crypto_timestamps
		FROM user_scores
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query population snapshot: %w", err)
	}
	defer rows.Close()

	var users []*ledger.UserScore
	for rows.Next() {
		u := &ledger.UserScore{
			Points:   make(map[ledger.Category]float64, 6),
			Lifetime: make(map[ledger.Category]int64, 6),
			Stamps:   make(map[ledger.Category][]time.Time, 6),
		}
		var (
			points   [6]float64
			lifetime [6]int64
			stamps   [6][]time.Time
		)
		err := rows.Scan(
			&u.UserID, &u.LastActiveDate, &u.Streak, &u.EngagementScore,
			&points[0], &points[1], &points[2], &points[3], &points[4], &points[5],
			&lifetime[0], &lifetime[1], &lifetime[2], &lifetime[3], &lifetime[4], &lifetime[5],
			&stamps[0], &stamps[1], &stamps[2], &stamps[3], &stamps[4], &stamps[5],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score record: %w", err)
		}
		for i, cat := range ledger.AllCategories() {
			u.Points[cat] = points[i]
			u.Lifetime[cat] = lifetime[i]
			u.Stamps[cat] = stamps[i]
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read population snapshot: %w", err)
	}
	return users, nil
}

// SaveRun commits the whole run in one transaction: every user's streak
// and empathy-score mutation plus the run record itself, batched into a
// single round-trip set. Any failure rolls everything back.
func (r *Repository) SaveRun(ctx context.Context, run *Run, updates []UserUpdate) error {
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to encode run results: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin run tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE user_scores
			SET consecutive_activity_days = $2,
			    historical_engagement_score = $3,
			    updated_at = NOW()
			WHERE user_id = $1
		`, u.UserID, u.Streak, u.EngagementScore)
	}
	batch.Queue(`
		INSERT INTO analysis_runs (id, run_at, users_analyzed, results)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.RunAt, run.UsersAnalyzed, resultsJSON)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("run batch statement %d failed: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close run batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun loads a committed run by id.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	run := &Run{}
	var resultsJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, run_at, users_analyzed, results, delivered, delivered_at
		FROM analysis_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.RunAt, &run.UsersAnalyzed, &resultsJSON, &run.Delivered, &run.DeliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to decode run results: %w", err)
	}
	return run, nil
}

// MarkDelivered records a successful hand-off to the reward collaborator.
func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE analysis_runs SET delivered = TRUE, delivered_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark run delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrRunNotFound
	}
	return nil
}
