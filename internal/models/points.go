package models

import "time"

// PointAward is one row of the append-only points ledger. The point value is
// snapshotted from the action rule at award time, so later rule edits never
// change historical totals.
type PointAward struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ActionID  string    `db:"action_id" json:"action_id"`
	Points    int       `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PointsHistoryEntry is a ledger row joined with its action name for the
// paginated history endpoint.
type PointsHistoryEntry struct {
	Points     int       `db:"points" json:"points"`
	ActionID   string    `db:"action_id" json:"action_id"`
	ActionName string    `db:"action_name" json:"action_name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
