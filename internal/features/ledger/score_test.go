package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards-engine/internal/common"
)

func TestFinalScore_FreshUserIsZero(t *testing.T) {
	// GIVEN: a user with no prior record
	// THEN: the score is exactly 0.0, not an error
	svc := newTestService(newFakeStore())

	score, err := svc.FinalScore(context.Background(), "never-seen")

	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestFinalScore_AllCapsIsHundred(t *testing.T) {
	// GIVEN: every category pinned at its monthly cap (sum 110)
	// THEN: the score is exactly 100
	store := newFakeStore()
	store.points = map[Category]float64{
		CategoryPosts:     30,
		CategoryLikes:     15,
		CategoryComments:  15,
		CategoryReferrals: 10,
		CategoryTipping:   20,
		CategoryCrypto:    20,
	}
	svc := newTestService(store)

	score, err := svc.FinalScore(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 100.0, score)
}

func TestFinalScore_PartialNormalization(t *testing.T) {
	// GIVEN: 11 points of a 110 point cap sum
	// THEN: the score is 10
	store := newFakeStore()
	store.points = map[Category]float64{CategoryReferrals: 10, CategoryLikes: 1}
	svc := newTestService(store)

	score, err := svc.FinalScore(context.Background(), "u1")

	require.NoError(t, err)
	assert.InDelta(t, 10.0, score, 1e-9)
}

func TestFinalScore_InvalidUserID(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.FinalScore(context.Background(), "")

	assert.ErrorIs(t, err, common.ErrInvalidUserID)
}
