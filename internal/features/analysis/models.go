// Package analysis implements the daily job over the ledger: per-category
// qualification against the trailing-24h thresholds, empathy selection
// for users who missed them, and the batched streak write-back.
package analysis

import (
	"time"

	"github.com/google/uuid"

	"rewards-engine/internal/features/ledger"
)

// CategoryStats summarizes one category's pass over the population.
type CategoryStats struct {
	UsersAnalyzed     int `json:"total_users_analyzed"`
	QualifiedCount    int `json:"qualified_count"`
	EmpathyCandidates int `json:"empathy_candidates"`
	EmpathyRecipients int `json:"empathy_recipients"`
}

// CategoryResult is one category's outcome: who qualified and who was
// selected for the empathy reward path.
type CategoryResult struct {
	Qualified []string      `json:"qualified"`
	Empathy   []string      `json:"empathy"`
	Stats     CategoryStats `json:"stats"`
}

// Results maps every category to its outcome for one run.
type Results map[ledger.Category]CategoryResult

// Run is one committed daily analysis. The full Results payload is stored
// alongside it so delivery to the reward collaborator can be retried
// without recomputation.
type Run struct {
	ID            uuid.UUID  `json:"run_id"`
	RunAt         time.Time  `json:"run_at"`
	UsersAnalyzed int        `json:"users_analyzed"`
	Results       Results    `json:"results"`
	Delivered     bool       `json:"delivered"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

// UserUpdate is one user's streak/empathy mutation, applied in the run's
// single batched transaction.
type UserUpdate struct {
	UserID          string
	Streak          int
	EngagementScore float64
}
