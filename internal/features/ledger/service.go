package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/common"
	"rewards-engine/internal/config"
)

// Store is the storage the service needs. *Repository implements it;
// tests substitute an in-memory fake.
type Store interface {
	EnsureUser(ctx context.Context, userID string) error
	ApplyAward(ctx context.Context, userID string, cat Category, now time.Time, post *PostContent,
		decide func(total float64, stamps []time.Time) decision) (AwardResult, error)
	ApplyOneTime(ctx context.Context, userID string, event OneTimeEvent, points float64) (bool, error)
	DeductPoints(ctx context.Context, userID string, cat Category, points float64) error
	CategoryPoints(ctx context.Context, userID string) (map[Category]float64, error)
}

// Service is the points ledger.
type Service struct {
	store Store
	cfg   *config.Config
	now   func() time.Time
}

// NewService creates the ledger service.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// ValidateUserID rejects ids that can't be a key: empty, over 255 bytes,
// or containing whitespace.
func ValidateUserID(userID string) error {
	if userID == "" || len(userID) > 255 || strings.ContainsAny(userID, " \t\n\r") {
		return common.ErrInvalidUserID
	}
	return nil
}

// Award attempts to credit one engagement action.
//
// post must be non-nil for the posts category (its quality and originality
// come from the content-validation collaborator) and nil for every other
// category. Validation failures return an error before storage is touched;
// cap and rate rejections are normal outcomes on the result, not errors.
func (s *Service) Award(ctx context.Context, userID string, cat Category, post *PostContent) (AwardResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return AwardResult{}, err
	}
	params, ok := s.cfg.Category(string(cat))
	if !ok {
		return AwardResult{}, common.ErrUnknownCategory
	}

	// Point value is fully computed here, before the row lock: for posts it
	// folds in the collaborator-supplied quality and originality bonuses.
	var points decimal.Decimal
	switch cat {
	case CategoryPosts:
		if post == nil || post.QualityScore < 0 || post.QualityScore > 10 {
			return AwardResult{}, common.ErrInvalidQualityScore
		}
		if post.OriginalityDistance < 0 || post.OriginalityDistance > 1 {
			return AwardResult{}, common.ErrInvalidOriginality
		}
		points = postPoints(params.PointValue, s.cfg.PostQualityWeight, s.cfg.PostOriginalityWeight, *post)
	default:
		post = nil
		points = decimal.NewFromFloat(params.PointValue)
	}

	now := s.now().UTC()
	cap := decimal.NewFromFloat(params.MonthlyCap)

	result, err := s.store.ApplyAward(ctx, userID, cat, now, post,
		func(total float64, stamps []time.Time) decision {
			return decideAward(total, stamps, points, cap, params.DailyLimit, now)
		})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id":  userID,
			"category": cat,
		}).Error("Award failed")
		return AwardResult{}, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"category": cat,
		"outcome":  result.Outcome,
		"points":   result.Points,
	}).Debug("Award processed")
	return result, nil
}

// AwardOneTime credits a registration or verification grant, at most once
// per user per event.
func (s *Service) AwardOneTime(ctx context.Context, userID string, event OneTimeEvent) (bool, float64, error) {
	if err := ValidateUserID(userID); err != nil {
		return false, 0, err
	}

	var points float64
	switch event {
	case EventRegistration:
		points = s.cfg.RegistrationPoints
	case EventVerification:
		points = s.cfg.VerificationPoints
	default:
		return false, 0, common.ErrUnknownOneTimeEvent
	}

	claimed, err := s.store.ApplyOneTime(ctx, userID, event, points)
	if err != nil {
		return false, 0, err
	}
	if claimed {
		log.WithFields(log.Fields{
			"user_id": userID,
			"event":   event,
			"points":  points,
		}).Info("One-time grant credited")
		return true, points, nil
	}
	return false, 0, nil
}

// Deduct removes points from a category (content deletion), clamped at 0.
func (s *Service) Deduct(ctx context.Context, userID string, cat Category, points float64) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if _, ok := s.cfg.Category(string(cat)); !ok {
		return common.ErrUnknownCategory
	}
	if points <= 0 {
		return common.ErrInvalidPoints
	}
	return s.store.DeductPoints(ctx, userID, cat, points)
}
