package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS actions (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            points INT NOT NULL CHECK (points >= 0),
            throttle_seconds INT NOT NULL DEFAULT 0 CHECK (throttle_seconds >= 0)
        );`,
		`CREATE TABLE IF NOT EXISTS user_points (
            id SERIAL PRIMARY KEY,
            user_id INT NOT NULL,
            action_id TEXT NOT NULL REFERENCES actions(id),
            points INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_user_points_user_action
            ON user_points (user_id, action_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            room_id INT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            receiver_id INT,
            text TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            last_message_id INT REFERENCES messages(id),
            last_message_date TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_id, id DESC);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	if err := seedActions(db); err != nil {
		return err
	}

	log.Info().Msg("database migrations applied")
	return nil
}

// seedActions inserts the default marketplace reward rules. Existing rows are
// left untouched so operators can tune points and throttles at runtime.
func seedActions(db *sqlx.DB) error {
	seed := []struct {
		id       string
		name     string
		points   int
		throttle int
	}{
		{"create_store", "Create a store", 10, 0},
		{"create_advertisement", "Publish an advertisement", 5, 3600},
		{"create_supply_comment", "Comment on a supply", 2, 600},
		{"send_message", "Send a chat message", 1, 60},
	}

	for _, a := range seed {
		_, err := db.Exec(
			`INSERT INTO actions (id, name, points, throttle_seconds) VALUES ($1, $2, $3, $4)
             ON CONFLICT (id) DO NOTHING`,
			a.id, a.name, a.points, a.throttle,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
