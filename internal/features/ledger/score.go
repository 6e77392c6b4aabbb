package ledger

import "context"

// FinalScore returns the user's normalized score: the sum of capped
// per-category points over the sum of all six monthly caps, times 100,
// clamped to [0,100].
//
// Monotonic non-decreasing in any category's points up to that category's
// cap; a user pinned at every cap scores exactly 100. A never-seen user
// scores 0.0 and has a record materialized as a side effect.
func (s *Service) FinalScore(ctx context.Context, userID string) (float64, error) {
	if err := ValidateUserID(userID); err != nil {
		return 0, err
	}

	points, err := s.store.CategoryPoints(ctx, userID)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, cat := range AllCategories() {
		total += points[cat]
	}

	score := total / s.cfg.TotalMonthlyCap() * 100
	if score < 0 {
		return 0, nil
	}
	if score > 100 {
		return 100, nil
	}
	return score, nil
}
