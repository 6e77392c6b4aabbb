package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rewards-engine/internal/common"
)

// categoryColumns resolves a category to its column names. The map is the
// only place category names meet SQL; it is total over the closed enum.
var categoryColumns = map[Category]struct {
	points   string
	stamps   string
	lifetime string
}{
	CategoryPosts:     {"points_from_posts", "daily_posts_timestamps", "lifetime_posts"},
	CategoryLikes:     {"points_from_likes", "daily_likes_timestamps", "lifetime_likes"},
	CategoryComments:  {"points_from_comments", "daily_comments_timestamps", "lifetime_comments"},
	CategoryReferrals: {"points_from_referrals", "daily_referrals_timestamps", "lifetime_referrals"},
	CategoryTipping:   {"points_from_tipping", "daily_tipping_timestamps", "lifetime_tipping"},
	CategoryCrypto:    {"points_from_crypto", "daily_crypto_timestamps", "lifetime_crypto"},
}

// Repository performs all operations on the user_scores and
// award_events tables.
//
// Every mutation runs in a transaction that takes the user's row with
// SELECT ... FOR UPDATE, so there is at most one in-flight award per
// user while unrelated users proceed in parallel. Every operation
// carries a bounded timeout; on any failure the whole transaction
// rolls back.
type Repository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewRepository creates the ledger repository. timeout bounds every
// storage operation issued through it.
func NewRepository(db *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// EnsureUser creates the user's score record if it does not exist yet.
// Idempotent; records are never deleted afterwards.
func (r *Repository) EnsureUser(ctx context.Context, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_scores (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure user record: %w", err)
	}
	return nil
}

// ApplyAward runs one award attempt for a single category.
//
// Inside one transaction: ensure the row exists, lock it FOR UPDATE, hand
// the current state to decide, and either roll back (rejection) or write
// the clamped total, the pruned stamp log, last_active_date, the lifetime
// counter, and the append-only award_events entry. The caller supplies
// decide fully computed; no external work happens under the lock.
func (r *Repository) ApplyAward(
	ctx context.Context,
	userID string,
	cat Category,
	now time.Time,
	post *PostContent,
	decide func(total float64, stamps []time.Time) decision,
) (AwardResult, error) {
	cols := categoryColumns[cat]

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return AwardResult{}, fmt.Errorf("failed to begin award tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_scores (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return AwardResult{}, fmt.Errorf("failed to ensure user record: %w", err)
	}

	var (
		total  float64
		stamps []time.Time
	)
	query := fmt.Sprintf(
		`SELECT %s, %s FROM user_scores WHERE user_id = $1 FOR UPDATE`,
		cols.points, cols.stamps,
	)
	if err := tx.QueryRow(ctx, query, userID).Scan(&total, &stamps); err != nil {
		return AwardResult{}, fmt.Errorf("failed to lock score row: %w", err)
	}

	d := decide(total, stamps)
	if d.Result.Rejected() {
		// No mutation: the deferred rollback discards the row lock.
		return d.Result, nil
	}

	update := fmt.Sprintf(`
		UPDATE user_scores
		SET %s = $2, %s = $3, %s = %s + 1,
		    last_active_date = $4, updated_at = NOW()
		WHERE user_id = $1
	`, cols.points, cols.stamps, cols.lifetime, cols.lifetime)
	if _, err := tx.Exec(ctx, update, userID, d.NewTotal, d.NewStamps, common.DateUTC(now)); err != nil {
		return AwardResult{}, fmt.Errorf("failed to update score row: %w", err)
	}

	var quality *int
	var originality *float64
	if post != nil {
		quality = &post.QualityScore
		originality = &post.OriginalityDistance
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO award_events (user_id, category, points, quality_score, originality, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, string(cat), d.Result.Points, quality, originality, now)
	if err != nil {
		return AwardResult{}, fmt.Errorf("failed to append award event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AwardResult{}, fmt.Errorf("failed to commit award: %w", err)
	}
	return d.Result, nil
}

// ApplyOneTime credits a one-time grant if the event has not been claimed
// yet. Returns false without mutation when it has.
func (r *Repository) ApplyOneTime(ctx context.Context, userID string, event OneTimeEvent, points float64) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin one-time tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_scores (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure user record: %w", err)
	}

	var claimed bool
	err = tx.QueryRow(ctx, `
		SELECT $2 = ANY(one_time_events) FROM user_scores WHERE user_id = $1 FOR UPDATE
	`, userID, string(event)).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("failed to lock score row: %w", err)
	}
	if claimed {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_scores
		SET one_time_points = one_time_points + $2,
		    one_time_events = array_append(one_time_events, $3),
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, points, string(event))
	if err != nil {
		return false, fmt.Errorf("failed to apply one-time grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit one-time grant: %w", err)
	}
	return true, nil
}

// DeductPoints removes points from a category, clamped at zero. Used when
// awarded content is deleted. The stamp log and lifetime counter are left
// untouched; the action still happened.
func (r *Repository) DeductPoints(ctx context.Context, userID string, cat Category, points float64) error {
	cols := categoryColumns[cat]

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		UPDATE user_scores
		SET %s = GREATEST(0, %s - $2), updated_at = NOW()
		WHERE user_id = $1
	`, cols.points, cols.points)
	tag, err := r.db.Exec(ctx, query, userID, points)
	if err != nil {
		return fmt.Errorf("failed to deduct points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrInvalidUserID
	}
	return nil
}

// CategoryPoints returns the capped per-category totals for one user,
// materializing the record if this is the first time the user is seen.
func (r *Repository) CategoryPoints(ctx context.Context, userID string) (map[Category]float64, error) {
	if err := r.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var posts, likes, comments, referrals, tipping, crypto float64
	err := r.db.QueryRow(ctx, `
		SELECT points_from_posts, points_from_likes, points_from_comments,
		       points_from_referrals, points_from_tipping, points_from_crypto
		FROM user_scores WHERE user_id = $1
	`, userID).Scan(&posts, &likes, &comments, &referrals, &tipping, &crypto)
	if err != nil {
		return nil, fmt.Errorf("failed to read category points: %w", err)
	}

	return map[Category]float64{
		CategoryPosts:     posts,
		CategoryLikes:     likes,
		CategoryComments:  comments,
		CategoryReferrals: referrals,
		CategoryTipping:   tipping,
		CategoryCrypto:    crypto,
	}, nil
}
