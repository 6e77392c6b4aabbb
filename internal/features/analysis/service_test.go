package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards-engine/internal/common"
	"rewards-engine/internal/features/ledger"
	"rewards-engine/internal/features/rewards"
)

type fakeAnalysisStore struct {
	users       []*ledger.UserScore
	snapshotErr error
	saveErr     error
	markErr     error

	savedRun     *Run
	savedUpdates []UserUpdate
	runs         map[uuid.UUID]*Run
	delivered    []uuid.UUID
}

func newFakeAnalysisStore(users ...*ledger.UserScore) *fakeAnalysisStore {
	return &fakeAnalysisStore{users: users, runs: make(map[uuid.UUID]*Run)}
}

func (f *fakeAnalysisStore) Snapshot(context.Context) ([]*ledger.UserScore, error) {
	return f.users, f.snapshotErr
}

func (f *fakeAnalysisStore) SaveRun(_ context.Context, run *Run, updates []UserUpdate) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedRun = run
	f.savedUpdates = updates
	f.runs[run.ID] = run
	return nil
}

func (f *fakeAnalysisStore) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, common.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeAnalysisStore) MarkDelivered(_ context.Context, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.delivered = append(f.delivered, id)
	return nil
}

type fakeDispatcher struct {
	err      error
	payloads []rewards.Payload
}

func (f *fakeDispatcher) Deliver(_ context.Context, p rewards.Payload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func newTestAnalysisService(store Store, dispatcher Dispatcher, now time.Time) *Service {
	svc := NewService(store, dispatcher, testConfig())
	svc.now = func() time.Time { return now }
	return svc
}

func updateFor(t *testing.T, updates []UserUpdate, userID string) UserUpdate {
	t.Helper()
	for _, u := range updates {
		if u.UserID == userID {
			return u
		}
	}
	t.Fatalf("no update for user %s", userID)
	return UserUpdate{}
}

func TestRun_StreakExtendsAfterConsecutiveDay(t *testing.T) {
	// GIVEN: a user qualified today whose last award date was yesterday
	// THEN: the streak grows by exactly one
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)
	yesterday := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)

	u := newUser("u1")
	u.Stamps[ledger.CategoryLikes] = inWindow(now, 5)
	u.LastActiveDate = &yesterday
	u.Streak = 3

	store := newFakeAnalysisStore(u)
	svc := newTestAnalysisService(store, nil, now)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	upd := updateFor(t, store.savedUpdates, "u1")
	assert.Equal(t, 4, upd.Streak)
	assert.Zero(t, upd.EngagementScore)
	assert.Contains(t, run.Results[ledger.CategoryLikes].Qualified, "u1")
}

func TestRun_StreakStartsAtOneAfterGap(t *testing.T) {
	// GIVEN: a qualified user whose previous award was three days ago
	// THEN: the streak restarts at one
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)
	old := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)

	u := newUser("u1")
	u.Stamps[ledger.CategoryReferrals] = inWindow(now, 1)
	u.LastActiveDate = &old
	u.Streak = 9

	store := newFakeAnalysisStore(u)
	svc := newTestAnalysisService(store, nil, now)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, updateFor(t, store.savedUpdates, "u1").Streak)
}

func TestRun_StreakResetsWhenNotQualified(t *testing.T) {
	// GIVEN: an active streak but no qualifying category today
	// THEN: the streak resets and the empathy potential is preserved as
	//       the best candidate score
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)

	u := newUser("u1")
	u.Streak = 4
	u.Lifetime[ledger.CategoryLikes] = 50 // score 0.5*4 + 50*0.08 = 6

	store := newFakeAnalysisStore(u)
	svc := newTestAnalysisService(store, nil, now)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	upd := updateFor(t, store.savedUpdates, "u1")
	assert.Zero(t, upd.Streak)
	assert.InDelta(t, 6.0, upd.EngagementScore, 1e-9)
	assert.Contains(t, run.Results[ledger.CategoryLikes].Empathy, "u1")
}

func TestRun_CandidatesNeedLifetimeHistory(t *testing.T) {
	// GIVEN: a non-qualifying user with a streak but zero lifetime actions
	// THEN: they are not an empathy candidate in any category
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)

	u := newUser("u1")
	u.Streak = 10

	store := newFakeAnalysisStore(u)
	svc := newTestAnalysisService(store, nil, now)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	for _, res := range run.Results {
		assert.Empty(t, res.Empathy)
		assert.Zero(t, res.Stats.EmpathyCandidates)
	}
	assert.Zero(t, updateFor(t, store.savedUpdates, "u1").EngagementScore)
}

func TestRun_SaveFailureFailsTheRun(t *testing.T) {
	store := newFakeAnalysisStore(newUser("u1"))
	store.saveErr = errors.New("boom")
	svc := newTestAnalysisService(store, nil, time.Now().UTC())

	_, err := svc.Run(context.Background())

	assert.Error(t, err)
}

func TestRun_DeliveryFailureDoesNotFailTheRun(t *testing.T) {
	// GIVEN: a dispatcher that always errors
	// THEN: the run still commits; it just stays undelivered
	store := newFakeAnalysisStore(newUser("u1"))
	dispatcher := &fakeDispatcher{err: errors.New("webhook down")}
	svc := newTestAnalysisService(store, dispatcher, time.Now().UTC())

	run, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, run.Delivered)
	assert.Empty(t, store.delivered)
	assert.NotNil(t, store.savedRun)
}

func TestRun_SuccessfulDeliveryMarksRun(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)

	u := newUser("u1")
	u.Stamps[ledger.CategoryLikes] = inWindow(now, 5)

	store := newFakeAnalysisStore(u)
	dispatcher := &fakeDispatcher{}
	svc := newTestAnalysisService(store, dispatcher, now)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, run.Delivered)
	assert.Equal(t, []uuid.UUID{run.ID}, store.delivered)

	require.Len(t, dispatcher.payloads, 1)
	p := dispatcher.payloads[0]
	assert.Equal(t, "category_based", p.RewardType)
	assert.Equal(t, run.ID.String(), p.RunID)
	assert.Equal(t, 6, p.Summary.TotalCategories)
	assert.Equal(t, 1, p.Summary.TotalQualifiedUsers)
	assert.Contains(t, p.Categories["likes"].Qualified, "u1")
}

func TestSummary_DoesNotMutate(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)

	u := newUser("u1")
	u.Stamps[ledger.CategoryLikes] = inWindow(now, 5)

	store := newFakeAnalysisStore(u)
	svc := newTestAnalysisService(store, nil, now)

	results, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Contains(t, results[ledger.CategoryLikes].Qualified, "u1")
	assert.Nil(t, store.savedRun)
	assert.Empty(t, store.savedUpdates)
}

func TestRedeliver_UnknownRun(t *testing.T) {
	svc := newTestAnalysisService(newFakeAnalysisStore(), &fakeDispatcher{}, time.Now().UTC())

	_, err := svc.Redeliver(context.Background(), uuid.New())

	assert.ErrorIs(t, err, common.ErrRunNotFound)
}

func TestRedeliver_ResendsStoredResults(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.UTC)

	u := newUser("u1")
	u.Stamps[ledger.CategoryLikes] = inWindow(now, 5)

	store := newFakeAnalysisStore(u)
	failing := &fakeDispatcher{err: errors.New("webhook down")}
	svc := newTestAnalysisService(store, failing, now)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.False(t, run.Delivered)

	// Webhook recovers; redeliver the stored payload.
	working := &fakeDispatcher{}
	svc.dispatcher = working

	redelivered, err := svc.Redeliver(context.Background(), run.ID)
	require.NoError(t, err)

	assert.True(t, redelivered.Delivered)
	require.Len(t, working.payloads, 1)
	assert.Equal(t, run.ID.String(), working.payloads[0].RunID)
}
