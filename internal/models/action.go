package models

// Action is a rewardable user activity with a fixed point value and cooldown.
// Rows are admin-managed; the engine only reads them.
type Action struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Points          int    `db:"points" json:"points"`
	ThrottleSeconds int    `db:"throttle_seconds" json:"throttle_seconds"`
}
