// Package ledger implements the per-user engagement points ledger: six
// independently capped categories, trailing-24h rate limits, one-time
// grants, and the normalized final score.
package ledger

import (
	"time"

	"rewards-engine/internal/common"
)

// Category is one of the six independently tracked engagement types.
// The set is closed: every switch over categories is exhaustive and SQL
// column names are resolved through a private map, so an unknown value
// can never reach the database.
type Category string

const (
	CategoryPosts     Category = "posts"
	CategoryLikes     Category = "likes"
	CategoryComments  Category = "comments"
	CategoryReferrals Category = "referrals"
	CategoryTipping   Category = "tipping"
	CategoryCrypto    Category = "crypto"
)

// AllCategories returns the six categories in their canonical order.
func AllCategories() []Category {
	return []Category{
		CategoryPosts, CategoryLikes, CategoryComments,
		CategoryReferrals, CategoryTipping, CategoryCrypto,
	}
}

// ParseCategory validates a category name arriving at the API boundary.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryPosts, CategoryLikes, CategoryComments,
		CategoryReferrals, CategoryTipping, CategoryCrypto:
		return Category(s), nil
	}
	return "", common.ErrUnknownCategory
}

// Outcome tags the result of an award attempt. A rejected award and a
// genuinely zero-value award are distinguishable by the tag, not by the
// point count.
type Outcome string

const (
	// OutcomeAwarded means points were credited, possibly truncated by
	// the monthly cap.
	OutcomeAwarded Outcome = "awarded"
	// OutcomeCapReached means the monthly cap was already met; nothing
	// changed.
	OutcomeCapReached Outcome = "cap_reached"
	// OutcomeRateLimited means the daily limit inside the trailing 24h
	// window was already met; nothing changed.
	OutcomeRateLimited Outcome = "rate_limited"
)

// AwardResult is the outcome of a single award attempt.
type AwardResult struct {
	Outcome Outcome `json:"outcome"`
	// Points actually credited after cap truncation; 0 on rejection.
	Points float64 `json:"points_awarded"`
}

// Rejected reports whether no points were credited because of a limit.
func (r AwardResult) Rejected() bool {
	return r.Outcome != OutcomeAwarded
}

// PostContent carries the qualitative inputs the content-validation
// collaborator supplies for post awards. Both values are computed
// upstream; the ledger only folds them into the point value.
type PostContent struct {
	QualityScore        int     `json:"quality_score"`        // [0,10]
	OriginalityDistance float64 `json:"originality_distance"` // [0,1]
}

// OneTimeEvent is a grant that can be claimed at most once per user.
type OneTimeEvent string

const (
	EventRegistration OneTimeEvent = "registration"
	EventVerification OneTimeEvent = "verification"
)

// ParseOneTimeEvent validates a one-time event name.
func ParseOneTimeEvent(s string) (OneTimeEvent, error) {
	switch OneTimeEvent(s) {
	case EventRegistration, EventVerification:
		return OneTimeEvent(s), nil
	}
	return "", common.ErrUnknownOneTimeEvent
}

// UserScore is the full per-user record. The analysis job reads a
// lock-free snapshot of these; the award path never loads more than one
// category's slice of it.
type UserScore struct {
	UserID          string
	Points          map[Category]float64     // clamped to [0, monthly cap]
	Stamps          map[Category][]time.Time // in-window award instants
	Lifetime        map[Category]int64       // explicit lifetime action counters
	OneTimePoints   float64
	OneTimeEvents   []string
	LastActiveDate  *time.Time // UTC date of the most recent award
	Streak          int        // consecutive qualifying days
	EngagementScore float64    // empathy potential; 0 while qualified
}
