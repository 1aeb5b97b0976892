package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    username VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    about TEXT NOT NULL DEFAULT '',
    points INT NOT NULL DEFAULT 0 CHECK (points >= 0),
    streak INT NOT NULL DEFAULT 0 CHECK (streak >= 0),
    last_active_date DATE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
    id SERIAL PRIMARY KEY,
    room_code VARCHAR(16) NOT NULL UNIQUE,
    name VARCHAR(255) NOT NULL,
    category VARCHAR(255) NOT NULL,
    title VARCHAR(255) NOT NULL,
    privacy VARCHAR(16) NOT NULL DEFAULT 'public',
    created_by INT NOT NULL REFERENCES users (id),
    task_points INT NOT NULL DEFAULT 15,
    daily_bonus_points INT NOT NULL DEFAULT 60,
    streak_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    views INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rooms_created_by ON rooms (created_by);
CREATE INDEX IF NOT EXISTS idx_rooms_browse ON rooms (privacy, is_active, category);

CREATE TABLE IF NOT EXISTS room_members (
    room_id INT NOT NULL REFERENCES rooms (id),
    user_id INT NOT NULL REFERENCES users (id),
    joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (room_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members (user_id);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    room_code VARCHAR(16) NOT NULL,
    created_by INT REFERENCES users (id) ON DELETE SET NULL,
    type VARCHAR(16) NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(255) NOT NULL DEFAULT '',
    estimated_time INT NOT NULL DEFAULT 0,
    verification_method VARCHAR(16) NOT NULL DEFAULT 'none',
    points INT,
    reward_points INT NOT NULL DEFAULT 0,
    bonus_points_for_streak INT NOT NULL DEFAULT 0,
    streak_eligible BOOLEAN NOT NULL DEFAULT TRUE,
    status VARCHAR(16) NOT NULL DEFAULT 'active',
    requirements JSONB NOT NULL DEFAULT '{}',
    detail JSONB NOT NULL DEFAULT '{}',
    task_clicks INT NOT NULL DEFAULT 0,
    completions INT NOT NULL DEFAULT 0,
    total_completion_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    drop_offs INT NOT NULL DEFAULT 0,
    starts INT NOT NULL DEFAULT 0,
    avg_time_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_opened_at TIMESTAMP,
    last_completed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_room_code ON tasks (room_code);

CREATE TABLE IF NOT EXISTS task_completions (
    task_id INT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    user_id INT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    time_spent_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    completed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (task_id, user_id)
);
`

func CreateTableIfNotExists(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func DeleteAllTable(ctx context.Context, db *sql.DB) error {
	query := `
    DROP TABLE IF EXISTS task_completions;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS room_members;
    DROP TABLE IF EXISTS rooms;
    DROP TABLE IF EXISTS users;
    `
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
