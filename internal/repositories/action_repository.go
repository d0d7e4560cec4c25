package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"engagement-service/internal/models"
)

var ErrActionNotFound = errors.New("action not found")

// ActionRepository reads the reward rules table.
type ActionRepository interface {
	GetAction(ctx context.Context, actionID string) (models.Action, error)
}

// ActionRepo is a sqlx-backed repository.
type ActionRepo struct {
	db *sqlx.DB
}

// NewActionRepo constructs an ActionRepo.
func NewActionRepo(db *sqlx.DB) *ActionRepo {
	return &ActionRepo{db: db}
}

// GetAction fetches a reward rule by id.
func (r *ActionRepo) GetAction(ctx context.Context, actionID string) (models.Action, error) {
	var action models.Action
	err := r.db.GetContext(ctx, &action,
		`SELECT id, name, points, throttle_seconds FROM actions WHERE id=$1`, actionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Action{}, ErrActionNotFound
	}
	return action, err
}
