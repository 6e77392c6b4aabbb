package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// decision is what the award transaction applies on success. On a
// rejection only Result is meaningful and the transaction rolls back.
type decision struct {
	Result    AwardResult
	NewTotal  float64     // clamped points_from_<category>
	NewStamps []time.Time // pruned in-window stamps plus the new one
}

// decideAward applies the award rules to the current row state, in
// contract order:
//  1. a monthly total already at or above the cap is cap_reached, no
//     mutation;
//  2. a stamp count inside (now-24h, now] already at the daily limit is
//     rate_limited, no mutation;
//  3. otherwise credit min(cap, total+points), prune the stamp log to
//     the window, and append now.
//
// An award that would overflow the cap is truncated to the remaining
// headroom, not rejected. Arithmetic goes through decimal so repeated
// small awards land on exact totals (five 0.1 likes make exactly 0.5)
// and cap truncation lands exactly on the cap.
func decideAward(total float64, stamps []time.Time, points, cap decimal.Decimal, dailyLimit int, now time.Time) decision {
	cur := decimal.NewFromFloat(total)

	if cur.GreaterThanOrEqual(cap) {
		return decision{Result: AwardResult{Outcome: OutcomeCapReached}}
	}

	cutoff := now.Add(-24 * time.Hour)
	recent := make([]time.Time, 0, len(stamps)+1)
	for _, ts := range stamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= dailyLimit {
		return decision{Result: AwardResult{Outcome: OutcomeRateLimited}}
	}

	newTotal := decimal.Min(cap, cur.Add(points))
	credited := newTotal.Sub(cur)

	return decision{
		Result: AwardResult{
			Outcome: OutcomeAwarded,
			Points:  credited.InexactFloat64(),
		},
		NewTotal:  newTotal.InexactFloat64(),
		NewStamps: append(recent, now),
	}
}

// postPoints computes the point value of a qualitative post award:
// base + (quality/10)·qualityWeight + originality·originalityWeight.
// Runs before any lock is taken; the collaborator inputs are already in
// hand, so nothing slow ever happens under the row lock.
func postPoints(base, qualityWeight, originalityWeight float64, post PostContent) decimal.Decimal {
	quality := decimal.NewFromInt(int64(post.QualityScore)).
		Div(decimal.NewFromInt(10)).
		Mul(decimal.NewFromFloat(qualityWeight))
	originality := decimal.NewFromFloat(post.OriginalityDistance).
		Mul(decimal.NewFromFloat(originalityWeight))
	return decimal.NewFromFloat(base).Add(quality).Add(originality)
}
