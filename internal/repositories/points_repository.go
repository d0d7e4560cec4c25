package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"engagement-service/internal/models"
)

var (
	ErrNoAwards  = errors.New("no awards for user and action")
	ErrThrottled = errors.New("award throttled")
)

// PointsRepository owns the append-only points ledger.
type PointsRepository interface {
	LastAward(ctx context.Context, userID int, actionID string) (models.PointAward, error)
	InsertAward(ctx context.Context, userID int, actionID string, points int, throttle time.Duration) (models.PointAward, error)
	TotalPoints(ctx context.Context, userID int) (int, error)
	History(ctx context.Context, userID int, limit int, offset int) ([]models.PointsHistoryEntry, error)
	CountAwards(ctx context.Context, userID int) (int, error)
}

// PointsRepo is a sqlx-backed repository.
type PointsRepo struct {
	db *sqlx.DB
}

// NewPointsRepo constructs a PointsRepo.
func NewPointsRepo(db *sqlx.DB) *PointsRepo {
	return &PointsRepo{db: db}
}

// advisory lock namespace for the points ledger, shared by every instance of
// the service so the throttle check serializes across a load-balanced fleet.
const pointsLockNamespace = 1

// LastAward returns the most recent ledger row for (user, action).
func (r *PointsRepo) LastAward(ctx context.Context, userID int, actionID string) (models.PointAward, error) {
	var award models.PointAward
	err := r.db.GetContext(ctx, &award,
		`SELECT id, user_id, action_id, points, created_at FROM user_points
         WHERE user_id=$1 AND action_id=$2
         ORDER BY created_at DESC LIMIT 1`, userID, actionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PointAward{}, ErrNoAwards
	}
	return award, err
}

// InsertAward appends a ledger row if the throttle window has elapsed. The
// eligibility re-check and the insert run inside one transaction guarded by a
// per-(user, action) advisory lock, closing the read-then-write race between
// concurrent awarders on any instance.
func (r *PointsRepo) InsertAward(ctx context.Context, userID int, actionID string, points int, throttle time.Duration) (models.PointAward, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.PointAward{}, fmt.Errorf("begin award tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock($1, hashtext($2 || ':' || $3))`,
		pointsLockNamespace, fmt.Sprint(userID), actionID); err != nil {
		return models.PointAward{}, fmt.Errorf("acquire award lock: %w", err)
	}

	var last models.PointAward
	err = tx.GetContext(ctx, &last,
		`SELECT id, user_id, action_id, points, created_at FROM user_points
         WHERE user_id=$1 AND action_id=$2
         ORDER BY created_at DESC LIMIT 1`, userID, actionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first award, no cooldown to honor
	case err != nil:
		return models.PointAward{}, fmt.Errorf("read last award: %w", err)
	default:
		// strict greater-than: a call landing exactly on the boundary is
		// still throttled
		if time.Since(last.CreatedAt) <= throttle {
			return models.PointAward{}, ErrThrottled
		}
	}

	var award models.PointAward
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO user_points (user_id, action_id, points) VALUES ($1, $2, $3)
         RETURNING id, user_id, action_id, points, created_at`,
		userID, actionID, points).
		Scan(&award.ID, &award.UserID, &award.ActionID, &award.Points, &award.CreatedAt)
	if err != nil {
		return models.PointAward{}, fmt.Errorf("insert award: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.PointAward{}, fmt.Errorf("commit award tx: %w", err)
	}
	return award, nil
}

// TotalPoints sums the ledger for a user, 0 when there are no rows.
func (r *PointsRepo) TotalPoints(ctx context.Context, userID int) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(points), 0) FROM user_points WHERE user_id=$1`, userID)
	return total, err
}

// History returns ledger rows joined with the action name, newest first.
func (r *PointsRepo) History(ctx context.Context, userID int, limit int, offset int) ([]models.PointsHistoryEntry, error) {
	var entries []models.PointsHistoryEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT up.points, up.action_id, up.created_at, a.name AS action_name
         FROM user_points up
         JOIN actions a ON up.action_id = a.id
         WHERE up.user_id=$1
         ORDER BY up.created_at DESC
         LIMIT $2 OFFSET $3`, userID, limit, offset)
	return entries, err
}

// CountAwards returns the number of ledger rows for a user.
func (r *PointsRepo) CountAwards(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM user_points WHERE user_id=$1`, userID)
	return count, err
}
