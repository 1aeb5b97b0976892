package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dailyforge/internal/models"
	"dailyforge/internal/streak"

	"github.com/lib/pq"
)

// touchRetries bounds the optimistic streak update against concurrent visits.
const touchRetries = 3

const userColumns = `
    u.id, u.username, u.email, u.password, u.about, u.points, u.streak, u.last_active_date,
    COALESCE((SELECT array_agg(m.room_id ORDER BY m.joined_at) FROM room_members m WHERE m.user_id = u.id), '{}'),
    u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		lastActive sql.NullTime
		joined     pq.Int64Array
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.About, &u.Points, &u.Streak,
		&lastActive, &joined, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastActive.Valid {
		u.LastActiveDate = streak.Today(lastActive.Time)
	}
	u.JoinedRooms = toInts(joined)
	return &u, nil
}

// CreateUser inserts u and fills its generated fields.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password, about) VALUES ($1, $2, $3, $4)
         RETURNING id, points, streak, created_at, updated_at`,
		u.Username, u.Email, u.Password, u.About,
	).Scan(&u.ID, &u.Points, &u.Streak, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err, "") {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.JoinedRooms = []int{}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email)
	return scanUser(row)
}

// TouchStreak records a visit of user id on now's UTC day and returns the
// updated user. The write is conditioned on the marker it read, so concurrent
// visits on the same day advance the streak once.
func (s *Store) TouchStreak(ctx context.Context, id int, now time.Time) (*models.User, error) {
	for attempt := 0; attempt < touchRetries; attempt++ {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		next, changed := streak.Next(streak.State{Streak: u.Streak, LastActive: u.LastActiveDate}, now)
		if !changed {
			return u, nil
		}

		var old any
		if !u.LastActiveDate.IsZero() {
			old = u.LastActiveDate
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE users SET streak = $2, last_active_date = $3, updated_at = NOW()
             WHERE id = $1 AND last_active_date IS NOT DISTINCT FROM $4::date`,
			id, next.Streak, next.LastActive, old)
		if err != nil {
			return nil, fmt.Errorf("update streak: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			u.Streak = next.Streak
			u.LastActiveDate = next.LastActive
			return u, nil
		}
	}
	return s.GetUser(ctx, id)
}

// JoinRoom adds userID to the room identified by ref (code or numeric id).
// The join bonus is credited in the same statement and only when the
// membership row is new.
func (s *Store) JoinRoom(ctx context.Context, userID int, ref string) (*models.JoinResult, error) {
	code, id := splitRoomRef(ref)
	res := &models.JoinResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
            WITH room AS (
                SELECT id, room_code FROM rooms WHERE room_code = $2 OR id = $3
            ), inserted AS (
                INSERT INTO room_members (room_id, user_id)
                SELECT id, $1 FROM room
                ON CONFLICT DO NOTHING
                RETURNING room_id
            ), credited AS (
                UPDATE users SET points = points + $4, updated_at = NOW()
                WHERE id = $1 AND EXISTS (SELECT 1 FROM inserted)
                RETURNING id
            )
            SELECT room.room_code, EXISTS (SELECT 1 FROM inserted), (SELECT COUNT(*) FROM credited)
            FROM room`,
			userID, code, id, streak.RoomJoinBonus,
		).Scan(&res.RoomID, &res.Joined, new(int))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if isForeignKeyViolation(err, "room_members_user_id_fkey") {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		err = tx.QueryRowContext(ctx,
			`SELECT points, (SELECT COUNT(*) FROM room_members WHERE user_id = $1) FROM users WHERE id = $1`,
			userID,
		).Scan(&res.Points, &res.JoinedRoomsCount)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteUser removes the user's rooms (with their members and tasks), the
// user's own memberships and finally the user.
func (s *Store) DeleteUser(ctx context.Context, id int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		steps := []string{
			`DELETE FROM room_members WHERE room_id IN (SELECT id FROM rooms WHERE created_by = $1)`,
			`DELETE FROM tasks WHERE room_code IN (SELECT room_code FROM rooms WHERE created_by = $1)`,
			`DELETE FROM rooms WHERE created_by = $1`,
			`DELETE FROM room_members WHERE user_id = $1`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete user %d: %w", id, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
