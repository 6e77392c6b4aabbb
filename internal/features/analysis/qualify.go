package analysis

import (
	"time"

	"rewards-engine/internal/config"
	"rewards-engine/internal/features/ledger"
)

// Evaluator checks whether a user met a category's daily threshold.
// Stateless and side-effect free; each category is judged independently,
// so a user may qualify for zero, some, or all six on the same day.
type Evaluator struct {
	cfg *config.Config
}

// NewEvaluator creates the qualification evaluator.
func NewEvaluator(cfg *config.Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Qualifies reports whether rec meets cat's threshold: the count of stamp
// entries inside (now-24h, now] must reach the configured minimum.
func (e *Evaluator) Qualifies(rec *ledger.UserScore, cat ledger.Category, now time.Time) bool {
	params, ok := e.cfg.Category(string(cat))
	if !ok {
		return false
	}
	return countInWindow(rec.Stamps[cat], now) >= params.Threshold
}

// countInWindow counts stamps inside the trailing 24h window. Entries at
// or before the cutoff are ignored, never removed; pruning belongs to
// the award path.
func countInWindow(stamps []time.Time, now time.Time) int {
	cutoff := now.Add(-24 * time.Hour)
	n := 0
	for _, ts := range stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
