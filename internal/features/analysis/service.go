package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/common"
	"rewards-engine/internal/config"
	"rewards-engine/internal/features/ledger"
	"rewards-engine/internal/features/rewards"
)

// Store is the storage the job needs. *Repository implements it; tests
// substitute a fake.
type Store interface {
	Snapshot(ctx context.Context) ([]*ledger.UserScore, error)
	SaveRun(ctx context.Context, run *Run, updates []UserUpdate) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}

// Dispatcher delivers a run's results to the external reward system.
type Dispatcher interface {
	Deliver(ctx context.Context, p rewards.Payload) error
}

// Service orchestrates the daily analysis: one lock-free population
// snapshot, six independent category passes, one batched write-back, and
// a best-effort hand-off to the reward distribution collaborator.
type Service struct {
	store      Store
	dispatcher Dispatcher // nil when delivery is disabled
	cfg        *config.Config
	eval       *Evaluator
	scorer     *Scorer
	now        func() time.Time
}

// NewService creates the analysis service. dispatcher may be nil when no
// webhook is configured; runs are then persisted but never delivered.
func NewService(store Store, dispatcher Dispatcher, cfg *config.Config) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		eval:       NewEvaluator(cfg),
		scorer:     NewScorer(cfg),
		now:        time.Now,
	}
}

// Run executes one full analysis pass.
//
// The snapshot is read without per-row locks; an award landing between
// snapshot and commit is judged against slightly stale data, which is
// acceptable because qualification is recomputed from scratch on every
// run. All streak/empathy mutations from the whole pass commit in one
// transaction; any failure rolls the entire run back. Delivery failure
// never touches the committed results; they can be re-sent with
// Redeliver.
func (s *Service) Run(ctx context.Context) (*Run, error) {
	now := s.now().UTC()
	log.WithField("run_at", now).Info("Starting daily analysis")

	users, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot population: %w", err)
	}

	results, qualifiedAny, topScores := s.analyze(users, now)
	updates := s.planUpdates(users, qualifiedAny, topScores, now)

	run := &Run{
		ID:            uuid.New(),
		RunAt:         now,
		UsersAnalyzed: len(users),
		Results:       results,
	}
	if err := s.store.SaveRun(ctx, run, updates); err != nil {
		return nil, fmt.Errorf("analysis batch failed, run rolled back: %w", err)
	}

	log.WithFields(log.Fields{
		"run_id": run.ID,
		"users":  len(users),
	}).Info("Daily analysis committed")

	s.deliver(ctx, run)
	return run, nil
}

// Summary recomputes the category results from the current ledger state
// without mutating anything or recording a run.
func (s *Service) Summary(ctx context.Context) (Results, error) {
	users, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot population: %w", err)
	}
	results, _, _ := s.analyze(users, s.now().UTC())
	return results, nil
}

// Redeliver re-sends a committed run's stored results to the reward
// collaborator.
func (s *Service) Redeliver(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.dispatcher == nil {
		return nil, fmt.Errorf("reward webhook is not configured")
	}
	if err := s.dispatcher.Deliver(ctx, s.payload(run)); err != nil {
		return nil, fmt.Errorf("redelivery failed: %w", err)
	}
	if err := s.store.MarkDelivered(ctx, run.ID); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Error("Failed to mark run delivered")
	}
	run.Delivered = true
	return run, nil
}

// analyze runs the six independent category passes over the snapshot.
// Returns the per-category results, the set of users who qualified in at
// least one category, and each non-qualifying user's highest candidate
// score across categories.
func (s *Service) analyze(users []*ledger.UserScore, now time.Time) (Results, map[string]bool, map[string]float64) {
	results := make(Results, 6)
	qualifiedAny := make(map[string]bool)
	topScores := make(map[string]float64)

	for _, cat := range ledger.AllCategories() {
		var qualified []string
		var cands []candidate

		for _, u := range users {
			if s.eval.Qualifies(u, cat, now) {
				qualified = append(qualified, u.UserID)
				qualifiedAny[u.UserID] = true
				continue
			}
			// Candidates need a positive lifetime contribution in the
			// category and a positive composite score.
			if u.Lifetime[cat] <= 0 {
				continue
			}
			score := s.scorer.Score(u, cat)
			if score <= 0 {
				continue
			}
			cands = append(cands, candidate{UserID: u.UserID, Score: score})
			if score > topScores[u.UserID] {
				topScores[u.UserID] = score
			}
		}

		sort.Strings(qualified)
		selected := selectTop(cands, s.cfg.EmpathyRewardFraction)

		results[cat] = CategoryResult{
			Qualified: qualified,
			Empathy:   selected,
			Stats: CategoryStats{
				UsersAnalyzed:     len(users),
				QualifiedCount:    len(qualified),
				EmpathyCandidates: len(cands),
				EmpathyRecipients: len(selected),
			},
		}

		log.WithFields(log.Fields{
			"category":   cat,
			"qualified":  len(qualified),
			"candidates": len(cands),
			"selected":   len(selected),
		}).Debug("Category analyzed")
	}

	return results, qualifiedAny, topScores
}

// planUpdates derives every user's streak/empathy mutation from the
// snapshot.
//
// Streak policy: a day qualifies when the user met at least one
// category's threshold. A qualifying day extends the streak by exactly 1
// when the previous qualifying award date is yesterday, otherwise starts
// it at 1; a non-qualifying day resets it to 0. Qualifying users carry no
// empathy potential; non-qualifying users store their best candidate
// score (selected or not) for future runs.
func (s *Service) planUpdates(users []*ledger.UserScore, qualifiedAny map[string]bool, topScores map[string]float64, now time.Time) []UserUpdate {
	yesterday := common.Yesterday(now)

	updates := make([]UserUpdate, 0, len(users))
	for _, u := range users {
		if qualifiedAny[u.UserID] {
			streak := 1
			if u.LastActiveDate != nil && common.SameDate(*u.LastActiveDate, yesterday) {
				streak = u.Streak + 1
			}
			updates = append(updates, UserUpdate{UserID: u.UserID, Streak: streak, EngagementScore: 0})
			continue
		}
		updates = append(updates, UserUpdate{
			UserID:          u.UserID,
			Streak:          0,
			EngagementScore: topScores[u.UserID],
		})
	}
	return updates
}

// deliver hands the run's result sets to the reward collaborator.
// Best effort only: the committed analysis is authoritative and a
// delivery failure is logged, not propagated.
func (s *Service) deliver(ctx context.Context, run *Run) {
	if s.dispatcher == nil {
		log.WithField("run_id", run.ID).Debug("Reward webhook disabled, run not delivered")
		return
	}
	if err := s.dispatcher.Deliver(ctx, s.payload(run)); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Error("Reward delivery failed, results remain committed")
		return
	}
	if err := s.store.MarkDelivered(ctx, run.ID); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Error("Failed to mark run delivered")
		return
	}
	run.Delivered = true
}

// payload converts a run to the collaborator's wire format.
func (s *Service) payload(run *Run) rewards.Payload {
	categories := make(map[string]rewards.CategoryOutcome, len(run.Results))
	summary := rewards.Summary{TotalCategories: len(run.Results)}
	for cat, res := range run.Results {
		categories[string(cat)] = rewards.CategoryOutcome{
			Qualified: res.Qualified,
			Empathy:   res.Empathy,
			Stats: rewards.Stats{
				TotalUsersAnalyzed: res.Stats.UsersAnalyzed,
				QualifiedCount:     res.Stats.QualifiedCount,
				EmpathyCandidates:  res.Stats.EmpathyCandidates,
				EmpathyRecipients:  res.Stats.EmpathyRecipients,
			},
		}
		summary.TotalQualifiedUsers += len(res.Qualified)
		summary.TotalEmpathyUsers += len(res.Empathy)
	}
	return rewards.Payload{
		RewardType: "category_based",
		RunID:      run.ID.String(),
		Categories: categories,
		Timestamp:  run.RunAt,
		Summary:    summary,
	}
}
