package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"engagement-service/internal/cache"
	"engagement-service/internal/models"
	"engagement-service/internal/observability"
	"engagement-service/internal/repositories"
)

var (
	// ErrActionNotFound reports an unknown action id. The award is a no-op.
	ErrActionNotFound = repositories.ErrActionNotFound
	// ErrThrottled reports that the cooldown for (user, action) is still
	// active. The award is a no-op, distinguishable from ErrActionNotFound.
	ErrThrottled = repositories.ErrThrottled
	// ErrInvalidArgument reports malformed input rejected before any
	// persistence attempt.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Awarder is the fire-and-forget contract upstream subsystems (store creation,
// advertisement creation, supply comments) call after their own work commits.
type Awarder interface {
	Award(ctx context.Context, userID int, actionID string) (models.PointAward, error)
}

// Service is the points engine: award with per-action throttling, totals and
// paginated history over the append-only ledger.
type Service struct {
	actions repositories.ActionRepository
	ledger  repositories.PointsRepository
	totals  *cache.Cache
}

// NewService builds a Service. totals may be nil when no cache is configured.
func NewService(actions repositories.ActionRepository, ledger repositories.PointsRepository, totals *cache.Cache) *Service {
	return &Service{actions: actions, ledger: ledger, totals: totals}
}

// IsEligible reports whether the user can currently earn points for the
// action. Any lookup failure resolves to false: the engine never awards on
// uncertainty. The comparison is strict, so an award landing exactly on the
// throttle boundary is still throttled.
func (s *Service) IsEligible(ctx context.Context, userID int, actionID string) bool {
	last, err := s.ledger.LastAward(ctx, userID, actionID)
	if errors.Is(err, repositories.ErrNoAwards) {
		return true
	}
	if err != nil {
		log.Warn().Err(err).Int("user_id", userID).Str("action_id", actionID).
			Msg("eligibility lookup failed, failing closed")
		return false
	}

	action, err := s.actions.GetAction(ctx, actionID)
	if err != nil {
		log.Warn().Err(err).Str("action_id", actionID).
			Msg("action lookup failed, failing closed")
		return false
	}

	throttle := time.Duration(action.ThrottleSeconds) * time.Second
	return time.Since(last.CreatedAt) > throttle
}

// Award appends one ledger row for (user, action) if the action exists and the
// throttle window has elapsed. The point value is snapshotted from the rule at
// award time. Returns ErrActionNotFound or ErrThrottled for the two no-op
// outcomes; anything else wrapping a storage failure.
func (s *Service) Award(ctx context.Context, userID int, actionID string) (models.PointAward, error) {
	if actionID == "" {
		return models.PointAward{}, ErrInvalidArgument
	}

	action, err := s.actions.GetAction(ctx, actionID)
	if err != nil {
		if errors.Is(err, ErrActionNotFound) {
			return models.PointAward{}, ErrActionNotFound
		}
		return models.PointAward{}, fmt.Errorf("resolve action: %w", err)
	}

	throttle := time.Duration(action.ThrottleSeconds) * time.Second
	award, err := s.ledger.InsertAward(ctx, userID, action.ID, action.Points, throttle)
	if err != nil {
		if errors.Is(err, ErrThrottled) {
			observability.IncPointsThrottled(action.ID)
			return models.PointAward{}, ErrThrottled
		}
		return models.PointAward{}, fmt.Errorf("insert award: %w", err)
	}

	observability.IncPointsAwarded(action.ID)
	if err := s.totals.Delete(ctx, totalKey(userID)); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("totals cache invalidation failed")
	}

	_ = observability.PublishEvent(ctx, "points.awarded", observability.EventEnvelope{
		EventType: "points_events",
		EventName: "points_awarded",
		Payload: map[string]interface{}{
			"user_id":   award.UserID,
			"action_id": award.ActionID,
			"points":    award.Points,
			"award_id":  award.ID,
		},
	}, nil)

	return award, nil
}

// AwardAsync runs Award on a detached context and swallows every outcome,
// logging only. Upstream callers use this after their own transaction commits
// so a points failure can never affect their primary operation.
func (s *Service) AwardAsync(userID int, actionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := s.Award(ctx, userID, actionID)
		switch {
		case err == nil:
		case errors.Is(err, ErrThrottled):
			log.Debug().Int("user_id", userID).Str("action_id", actionID).
				Msg("points throttled")
		case errors.Is(err, ErrActionNotFound):
			log.Warn().Str("action_id", actionID).Msg("points action unknown")
		default:
			log.Error().Err(err).Int("user_id", userID).Str("action_id", actionID).
				Msg("points award failed")
		}
	}()
}

// TotalPoints returns the sum of the user's ledger rows, 0 when there are
// none. Totals are served cache-aside; cache failures fall through to the
// store.
func (s *Service) TotalPoints(ctx context.Context, userID int) (int, error) {
	var total int
	hit, err := s.totals.Get(ctx, totalKey(userID), &total)
	if err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("totals cache read failed")
	}
	if hit {
		return total, nil
	}

	total, err = s.ledger.TotalPoints(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}

	if err := s.totals.Set(ctx, totalKey(userID), total); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("totals cache write failed")
	}
	return total, nil
}

// History returns the user's ledger newest first, plus the total row count for
// pagination. page and limit must both be positive.
func (s *Service) History(ctx context.Context, userID int, page int, limit int) ([]models.PointsHistoryEntry, int, error) {
	if page < 1 || limit < 1 {
		return nil, 0, ErrInvalidArgument
	}

	offset := (page - 1) * limit
	entries, err := s.ledger.History(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("read history: %w", err)
	}

	count, err := s.ledger.CountAwards(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count awards: %w", err)
	}
	return entries, count, nil
}

func totalKey(userID int) string {
	return fmt.Sprintf("points:total:%d", userID)
}
