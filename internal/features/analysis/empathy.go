package analysis

import (
	"math"
	"sort"

	"rewards-engine/internal/config"
	"rewards-engine/internal/features/ledger"
)

// Scorer computes the composite loyalty score for users who missed a
// category's threshold.
type Scorer struct {
	cfg *config.Config
}

// NewScorer creates the empathy scorer.
func NewScorer(cfg *config.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// candidate is a non-qualifying user with empathy potential in one
// category.
type candidate struct {
	UserID string
	Score  float64
}

// Score computes the empathy score for rec in cat:
//
//	streakWeight · streak-before-reset + lifetime-count · categoryWeight
//
// The streak value comes from the snapshot taken before this pass writes
// anything back, so the score rewards exactly the loyalty that is about
// to be lost. The lifetime count is the explicit per-category counter,
// not a back-computation from points, so repricing a category never
// distorts historical scores.
func (s *Scorer) Score(rec *ledger.UserScore, cat ledger.Category) float64 {
	params, ok := s.cfg.Category(string(cat))
	if !ok {
		return 0
	}
	return s.cfg.EmpathyStreakWeight*float64(rec.Streak) +
		float64(rec.Lifetime[cat])*params.EmpathyWeight
}

// selectTop picks ceil(len·fraction) candidates by descending score.
// Ties break on ascending user id so runs over the same population are
// reproducible.
func selectTop(cands []candidate, fraction float64) []string {
	if len(cands) == 0 {
		return nil
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].UserID < cands[j].UserID
	})

	n := int(math.Ceil(float64(len(cands)) * fraction))
	if n > len(cands) {
		n = len(cands)
	}

	selected := make([]string, 0, n)
	for _, c := range cands[:n] {
		selected = append(selected, c.UserID)
	}
	return selected
}
