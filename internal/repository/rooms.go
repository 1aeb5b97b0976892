package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"dailyforge/internal/models"

	"github.com/lib/pq"
)

const roomColumns = `
    r.id, r.room_code, r.name, r.category, r.title, r.privacy, r.created_by,
    r.task_points, r.daily_bonus_points, r.streak_multiplier, r.is_active, r.views,
    COALESCE((SELECT array_agg(m.user_id ORDER BY m.joined_at) FROM room_members m WHERE m.room_id = r.id), '{}'),
    r.created_at, r.updated_at`

// splitRoomRef accepts a public room code or a numeric room id.
func splitRoomRef(ref string) (string, sql.NullInt64) {
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return "", sql.NullInt64{Int64: n, Valid: true}
	}
	return ref, sql.NullInt64{}
}

func scanRoom(row rowScanner, extra ...any) (*models.Room, error) {
	var (
		r      models.Room
		joined pq.Int64Array
	)
	dest := []any{&r.ID, &r.RoomID, &r.Name, &r.Category, &r.Title, &r.Privacy, &r.CreatedBy,
		&r.TaskPoints, &r.DailyBonusPoints, &r.StreakMultiplier, &r.IsActive, &r.Views,
		&joined, &r.CreatedAt, &r.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.JoinedUsers = toInts(joined)
	return &r, nil
}

func (s *Store) queryRooms(ctx context.Context, query string, args ...any) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

// CreateRoom inserts r. A clash on the public code yields ErrRoomCodeTaken.
func (s *Store) CreateRoom(ctx context.Context, r *models.Room) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rooms (room_code, name, category, title, privacy, created_by,
                            task_points, daily_bonus_points, streak_multiplier, is_active)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
         RETURNING id, is_active, views, created_at, updated_at`,
		r.RoomID, r.Name, r.Category, r.Title, r.Privacy, r.CreatedBy,
		r.TaskPoints, r.DailyBonusPoints, r.StreakMultiplier,
	).Scan(&r.ID, &r.IsActive, &r.Views, &r.CreatedAt, &r.UpdatedAt)
	if isUniqueViolation(err, "rooms_room_code_key") {
		return ErrRoomCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	r.JoinedUsers = []int{}
	return nil
}

func (s *Store) CountRoomsByOwner(ctx context.Context, userID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE created_by = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return n, nil
}

func (s *Store) ListRoomsByOwner(ctx context.Context, userID int) ([]models.Room, error) {
	return s.queryRooms(ctx,
		`SELECT `+roomColumns+` FROM rooms r WHERE r.created_by = $1 ORDER BY r.created_at DESC, r.id DESC`,
		userID)
}

// BrowseRooms lists public active rooms, optionally narrowed to a category.
func (s *Store) BrowseRooms(ctx context.Context, category string) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r WHERE r.privacy = $1 AND r.is_active`
	args := []any{models.PrivacyPublic}
	if category != "" {
		query += ` AND r.category = $2`
		args = append(args, category)
	}
	return s.queryRooms(ctx, query+` ORDER BY r.created_at DESC, r.id DESC`, args...)
}

func (s *Store) RecentRooms(ctx context.Context, limit int) ([]models.Room, error) {
	return s.queryRooms(ctx,
		`SELECT `+roomColumns+` FROM rooms r WHERE r.privacy = $1 AND r.is_active
         ORDER BY r.created_at DESC, r.id DESC LIMIT $2`,
		models.PrivacyPublic, limit)
}

// IncrementRoomViews bumps the view counter and returns the new value.
func (s *Store) IncrementRoomViews(ctx context.Context, ref string) (int, error) {
	code, id := splitRoomRef(ref)
	var views int
	err := s.db.QueryRowContext(ctx,
		`UPDATE rooms SET views = views + 1 WHERE room_code = $1 OR id = $2 RETURNING views`,
		code, id,
	).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

// GetRoom loads a room by code or numeric id together with its creator.
func (s *Store) GetRoom(ctx context.Context, ref string) (*models.RoomDetails, error) {
	code, id := splitRoomRef(ref)
	var creator models.RoomCreator
	row := s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+`, u.id, u.username, u.email
         FROM rooms r JOIN users u ON u.id = r.created_by
         WHERE r.room_code = $1 OR r.id = $2`,
		code, id)
	r, err := scanRoom(row, &creator.ID, &creator.Username, &creator.Email)
	if err != nil {
		return nil, err
	}
	return &models.RoomDetails{Room: *r, Creator: creator, JoinedUsersCount: len(r.JoinedUsers)}, nil
}

// DeleteRoom detaches every member, drops the room's tasks and then the room.
func (s *Store) DeleteRoom(ctx context.Context, roomID int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = $1`, roomID); err != nil {
			return fmt.Errorf("detach members: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE room_code = (SELECT room_code FROM rooms WHERE id = $1)`, roomID); err != nil {
			return fmt.Errorf("delete room tasks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
		if err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
