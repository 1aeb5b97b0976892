package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dailyforge/internal/models"

	"github.com/lib/pq"
)

const analyticsColumns = `
    t.task_clicks, t.completions, t.total_completion_time, t.drop_offs, t.starts, t.avg_time_spent,
    COALESCE((SELECT array_agg(c.user_id ORDER BY c.completed_at) FROM task_completions c WHERE c.task_id = t.id), '{}'),
    t.last_opened_at, t.last_completed_at`

const taskColumns = `
    t.id, t.room_code, t.created_by, t.type, t.title, t.description, t.category, t.estimated_time,
    t.verification_method, t.points, t.reward_points, t.bonus_points_for_streak, t.streak_eligible,
    t.status, t.requirements, t.detail, t.created_at, t.updated_at,` + analyticsColumns

func scanAnalytics(row rowScanner, a *models.Analytics, prefix ...any) error {
	var users pq.Int64Array
	var lastOpened, lastCompleted sql.NullTime
	dest := append(prefix, &a.TaskClicks, &a.Completions, &a.TotalCompletionTime, &a.DropOffs,
		&a.Starts, &a.AvgTimeSpent, &users, &lastOpened, &lastCompleted)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	a.UsersCompleted = toInts(users)
	a.LastOpenedAt = nullTime(lastOpened)
	a.LastCompletedAt = nullTime(lastCompleted)
	return nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t                 models.Task
		createdBy, points sql.NullInt64
		reqs, detail      []byte
	)
	err := scanAnalytics(row, &t.Analytics,
		&t.ID, &t.RoomID, &createdBy, &t.Type, &t.Title, &t.Description, &t.Category, &t.EstimatedTime,
		&t.VerificationMethod, &points, &t.RewardPoints, &t.BonusPointsForStreak, &t.StreakEligible,
		&t.Status, &reqs, &detail, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.CreatedBy = int(createdBy.Int64)
	if points.Valid {
		p := int(points.Int64)
		t.Points = &p
	}
	if err := json.Unmarshal(reqs, &t.Requirements); err != nil {
		return nil, fmt.Errorf("decode requirements of task %d: %w", t.ID, err)
	}
	if t.Detail, err = models.DecodeDetail(t.Type, detail); err != nil {
		return nil, fmt.Errorf("task %d: %w", t.ID, err)
	}
	return &t, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func encodeTask(t *models.Task) (reqs, detail []byte, err error) {
	if reqs, err = json.Marshal(t.Requirements); err != nil {
		return nil, nil, fmt.Errorf("encode requirements: %w", err)
	}
	detail = []byte(`{}`)
	if t.Detail != nil {
		if detail, err = json.Marshal(t.Detail); err != nil {
			return nil, nil, fmt.Errorf("encode detail: %w", err)
		}
	}
	return reqs, detail, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	reqs, detail, err := encodeTask(t)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (room_code, created_by, type, title, description, category, estimated_time,
                            verification_method, points, reward_points, bonus_points_for_streak,
                            streak_eligible, status, requirements, detail)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
         RETURNING id, created_at, updated_at`,
		t.RoomID, t.CreatedBy, t.Type, t.Title, t.Description, t.Category, t.EstimatedTime,
		t.VerificationMethod, nullableInt(t.Points), t.RewardPoints, t.BonusPointsForStreak,
		t.StreakEligible, t.Status, reqs, detail,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.Analytics = models.Analytics{UsersCompleted: []int{}}
	return nil
}

// ListTasks returns tasks matching every non-empty filter field, newest first.
func (s *Store) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE TRUE`
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += " AND t." + column + " = $" + strconv.Itoa(len(args))
	}
	add("room_code", f.RoomID)
	add("type", f.Type)
	add("status", f.Status)

	rows, err := s.db.QueryContext(ctx, query+` ORDER BY t.created_at DESC, t.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id int) (*models.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id))
}

// UpdateTask overwrites the editable fields of t. Room and creator are fixed.
func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	reqs, detail, err := encodeTask(t)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx,
		`UPDATE tasks SET type = $2, title = $3, description = $4, category = $5, estimated_time = $6,
                          verification_method = $7, points = $8, reward_points = $9,
                          bonus_points_for_streak = $10, streak_eligible = $11, status = $12,
                          requirements = $13, detail = $14, updated_at = NOW()
         WHERE id = $1 RETURNING updated_at`,
		t.ID, t.Type, t.Title, t.Description, t.Category, t.EstimatedTime,
		t.VerificationMethod, nullableInt(t.Points), t.RewardPoints,
		t.BonusPointsForStreak, t.StreakEligible, t.Status, reqs, detail,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TrackTaskClick counts a detail-view open.
func (s *Store) TrackTaskClick(ctx context.Context, id int) (*models.Analytics, error) {
	var a models.Analytics
	err := scanAnalytics(s.db.QueryRowContext(ctx,
		`UPDATE tasks AS t SET task_clicks = t.task_clicks + 1, last_opened_at = NOW()
         WHERE t.id = $1 RETURNING `+analyticsColumns, id), &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TrackTaskCompletion records one attempt as completed or dropped. Repeated
// calls count again.
func (s *Store) TrackTaskCompletion(ctx context.Context, id int, seconds float64, dropped bool) (*models.Analytics, error) {
	done, drop := 1, 0
	if dropped {
		done, drop, seconds = 0, 1, 0
	}
	var a models.Analytics
	err := scanAnalytics(s.db.QueryRowContext(ctx,
		`UPDATE tasks AS t SET starts = t.starts + 1,
                               completions = t.completions + $2,
                               total_completion_time = t.total_completion_time + $3,
                               drop_offs = t.drop_offs + $4,
                               avg_time_spent = CASE WHEN t.completions + $2 > 0
                                   THEN (t.total_completion_time + $3) / (t.completions + $2)
                                   ELSE 0 END,
                               updated_at = NOW()
         WHERE t.id = $1 RETURNING `+analyticsColumns,
		id, done, seconds, drop), &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CompleteTask credits userID for taskID at most once. Recording the
// completion, updating analytics and crediting points happen in a single
// statement; the latter two only run when the completion row is new.
func (s *Store) CompleteTask(ctx context.Context, taskID, userID int, timeSpent float64) (*models.CompletionResult, error) {
	res := &models.CompletionResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			inserted bool
			reward   int
		)
		err := tx.QueryRowContext(ctx, `
            WITH task AS (
                SELECT id, COALESCE(points, reward_points, 0) AS reward FROM tasks WHERE id = $1
            ), inserted AS (
                INSERT INTO task_completions (task_id, user_id, time_spent_seconds)
                SELECT id, $2, $3 FROM task
                ON CONFLICT DO NOTHING
                RETURNING task_id
            ), analytics AS (
                UPDATE tasks SET completions = completions + 1,
                                 total_completion_time = total_completion_time + $3,
                                 avg_time_spent = (total_completion_time + $3) / (completions + 1),
                                 last_completed_at = NOW(),
                                 updated_at = NOW()
                WHERE id = $1 AND EXISTS (SELECT 1 FROM inserted)
                RETURNING id
            ), credited AS (
                UPDATE users SET points = points + (SELECT reward FROM task), updated_at = NOW()
                WHERE id = $2 AND EXISTS (SELECT 1 FROM inserted)
                RETURNING id
            )
            SELECT EXISTS (SELECT 1 FROM inserted), task.reward,
                   (SELECT COUNT(*) FROM analytics) + (SELECT COUNT(*) FROM credited)
            FROM task`,
			taskID, userID, timeSpent,
		).Scan(&inserted, &reward, new(int))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if isForeignKeyViolation(err, "task_completions_user_id_fkey") {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}

		res.AlreadyCompleted = !inserted
		if inserted {
			res.PointsAwarded = reward
		}
		err = tx.QueryRowContext(ctx, `SELECT points, streak FROM users WHERE id = $1`, userID).
			Scan(&res.UserPoints, &res.UserStreak)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("read user: %w", err)
		}
		return scanAnalytics(tx.QueryRowContext(ctx,
			`SELECT `+analyticsColumns+` FROM tasks t WHERE t.id = $1`, taskID), &res.Analytics)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
