package handlers

import (
	"context"
	"errors"

	"dailyforge/internal/cache"
	"dailyforge/internal/engagement"
	"dailyforge/internal/middleware"
	"dailyforge/internal/models"
	"dailyforge/internal/repository"
	"dailyforge/internal/websocket"
	"dailyforge/pkg/apperror"
	"dailyforge/pkg/logger"
	"dailyforge/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	errNotEngaged     = apperror.New(apperror.CodeEngagementRequired, engagement.NotEngagedMessage)
	errTaskForbidden  = apperror.New(apperror.CodeForbidden, "You don't have permission to modify this task")
	errRoomNotOwned   = apperror.New(apperror.CodeForbidden, "Only the room owner can add tasks")
	errTaskIDRequired = apperror.New(apperror.CodeInvalidInput, "taskId is required")
	errTaskArchived   = apperror.New(apperror.CodeInvalidInput, "This task is archived and can no longer be completed")
)

// taskRequest is the create payload. Type-specific data may come as typed
// blocks or as the older flat specificTaskData object.
type taskRequest struct {
	RoomID               string              `json:"roomId" validate:"required"`
	Type                 models.TaskType     `json:"type" validate:"required,oneof=link video reading quiz pomodoro mixed"`
	Title                string              `json:"title" validate:"required,max=255"`
	Description          string              `json:"description"`
	Category             string              `json:"category" validate:"max=255"`
	EstimatedTime        int                 `json:"estimatedTime" validate:"gte=0"`
	VerificationMethod   string              `json:"verificationMethod" validate:"omitempty,oneof=time quiz both none"`
	Points               *int                `json:"points" validate:"omitempty,gte=0"`
	RewardPoints         int                 `json:"rewardPoints" validate:"gte=0"`
	BonusPointsForStreak int                 `json:"bonusPointsForStreak" validate:"gte=0"`
	StreakEligible       *bool               `json:"streakEligible"`
	Status               string              `json:"status" validate:"omitempty,oneof=active archived"`
	Requirements         models.Requirements `json:"requirements"`
	models.DetailBlocks
	SpecificTaskData *models.LegacyTaskData `json:"specificTaskData"`
}

// taskPatch is the update payload; absent fields keep their value.
type taskPatch struct {
	Type                 *models.TaskType     `json:"type" validate:"omitempty,oneof=link video reading quiz pomodoro mixed"`
	Title                *string              `json:"title" validate:"omitempty,min=1,max=255"`
	Description          *string              `json:"description"`
	Category             *string              `json:"category" validate:"omitempty,max=255"`
	EstimatedTime        *int                 `json:"estimatedTime" validate:"omitempty,gte=0"`
	VerificationMethod   *string              `json:"verificationMethod" validate:"omitempty,oneof=time quiz both none"`
	Points               *int                 `json:"points" validate:"omitempty,gte=0"`
	RewardPoints         *int                 `json:"rewardPoints" validate:"omitempty,gte=0"`
	BonusPointsForStreak *int                 `json:"bonusPointsForStreak" validate:"omitempty,gte=0"`
	StreakEligible       *bool                `json:"streakEligible"`
	Status               *string              `json:"status" validate:"omitempty,oneof=active archived"`
	Requirements         *models.Requirements `json:"requirements"`
	models.DetailBlocks
	SpecificTaskData *models.LegacyTaskData `json:"specificTaskData"`
}

func (p *taskPatch) apply(t *models.Task) {
	typeChanged := p.Type != nil && *p.Type != t.Type
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.EstimatedTime != nil {
		t.EstimatedTime = *p.EstimatedTime
	}
	if p.VerificationMethod != nil {
		t.VerificationMethod = *p.VerificationMethod
	}
	if p.Points != nil {
		t.Points = p.Points
	}
	if p.RewardPoints != nil {
		t.RewardPoints = *p.RewardPoints
	}
	if p.BonusPointsForStreak != nil {
		t.BonusPointsForStreak = *p.BonusPointsForStreak
	}
	if p.StreakEligible != nil {
		t.StreakEligible = *p.StreakEligible
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Requirements != nil {
		t.Requirements = *p.Requirements
	}

	switch d := p.DetailBlocks.For(t.Type); {
	case d != nil:
		t.Detail = d
	case p.SpecificTaskData != nil:
		t.Detail = models.DetailFromLegacy(t.Type, p.SpecificTaskData)
	case typeChanged:
		t.Detail = models.NewDetail(t.Type)
	}
}

// canManage reports whether userID created the task or owns its room.
func (h *Handler) canManage(ctx context.Context, userID int, t *models.Task) (bool, error) {
	if t.CreatedBy == userID {
		return true, nil
	}
	room, err := h.Store.GetRoom(ctx, t.RoomID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return room.CreatedBy == userID, nil
}

// CreateTask adds a task to a room the caller owns.
func (h *Handler) CreateTask(c *fiber.Ctx) error {
	var req taskRequest
	if err := parse(c, &req); err != nil {
		return fail(c, "create task", err)
	}

	userID := middleware.UserID(c)
	ctx := c.UserContext()

	room, err := h.Store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return fail(c, "create task", storeErr(err, "Room not found"))
	}
	if room.CreatedBy != userID {
		logger.SecurityLogger.Warn("Task create by non-owner", zap.Int("user_id", userID), zap.String("room", room.RoomID))
		return fail(c, "create task", errRoomNotOwned)
	}

	task := &models.Task{
		RoomID:               room.RoomID,
		CreatedBy:            userID,
		Type:                 req.Type,
		Title:                req.Title,
		Description:          req.Description,
		Category:             req.Category,
		EstimatedTime:        req.EstimatedTime,
		VerificationMethod:   req.VerificationMethod,
		Points:               req.Points,
		RewardPoints:         req.RewardPoints,
		BonusPointsForStreak: req.BonusPointsForStreak,
		StreakEligible:       true,
		Status:               req.Status,
		Requirements:         req.Requirements,
		Detail:               models.ResolveDetail(req.Type, req.DetailBlocks, req.SpecificTaskData),
	}
	if task.VerificationMethod == "" {
		task.VerificationMethod = models.VerifyNone
	}
	if task.Status == "" {
		task.Status = models.StatusActive
	}
	if req.StreakEligible != nil {
		task.StreakEligible = *req.StreakEligible
	}

	if err := h.Store.CreateTask(ctx, task); err != nil {
		return fail(c, "create task", err)
	}

	logger.AuditLogger.Info("Task created successfully", zap.Int("task_id", task.ID), zap.String("room", task.RoomID))
	return ok(c, fiber.StatusCreated, "Task created successfully", fiber.Map{"data": task})
}

// ListTasks filters by roomId, type and status query parameters.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	type TaskQuery struct {
		RoomID string `query:"roomId" validate:"omitempty,roomcode"`
		Type   string `query:"type" validate:"omitempty,oneof=link video reading quiz pomodoro mixed"`
		Status string `query:"status" validate:"omitempty,oneof=active archived"`
	}

	var q TaskQuery
	if err := c.QueryParser(&q); err != nil {
		return fail(c, "list tasks", apperror.Wrap(apperror.CodeInvalidInput, "Bad request", err))
	}
	if err := validate(q); err != nil {
		return fail(c, "list tasks", err)
	}

	tasks, err := h.Store.ListTasks(c.UserContext(), models.TaskFilter{
		RoomID: q.RoomID,
		Type:   q.Type,
		Status: q.Status,
	})
	if err != nil {
		return fail(c, "list tasks", err)
	}
	return ok(c, fiber.StatusOK, "Tasks fetched successfully", fiber.Map{"data": tasks})
}

// GetTask serves a task, reading through the cache.
func (h *Handler) GetTask(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id", "task")
	if err != nil {
		return fail(c, "get task", err)
	}
	ctx := c.UserContext()
	key := cache.TaskKey(taskID)

	var cached models.Task
	switch err := h.Cache.Get(ctx, key, &cached); {
	case err == nil:
		return ok(c, fiber.StatusOK, "Task found (from cache)", fiber.Map{"data": &cached})
	case !errors.Is(err, cache.ErrMiss):
		logger.ErrorLogger.Warn("Error reading task cache", zap.Int("task_id", taskID), zap.Error(err))
	}

	task, err := h.Store.GetTask(ctx, taskID)
	if err != nil {
		return fail(c, "get task", storeErr(err, "Task not found"))
	}
	if err := h.Cache.Set(ctx, key, task, h.CacheTTL); err != nil {
		logger.ErrorLogger.Warn("Error caching task", zap.Int("task_id", taskID), zap.Error(err))
	}
	return ok(c, fiber.StatusOK, "Task found", fiber.Map{"data": task})
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id", "task")
	if err != nil {
		return fail(c, "update task", err)
	}
	var patch taskPatch
	if err := parse(c, &patch); err != nil {
		return fail(c, "update task", err)
	}

	userID := middleware.UserID(c)
	ctx := c.UserContext()

	task, err := h.Store.GetTask(ctx, taskID)
	if err != nil {
		return fail(c, "update task", storeErr(err, "Task not found"))
	}
	allowed, err := h.canManage(ctx, userID, task)
	if err != nil {
		return fail(c, "update task", err)
	}
	if !allowed {
		logger.SecurityLogger.Warn("Task update by non-owner", zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return fail(c, "update task", errTaskForbidden)
	}

	patch.apply(task)
	if err := validate(task.Requirements); err != nil {
		return fail(c, "update task", err)
	}
	if err := h.Store.UpdateTask(ctx, task); err != nil {
		return fail(c, "update task", storeErr(err, "Task not found"))
	}
	h.forget(ctx, cache.TaskKey(taskID))

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID))
	return ok(c, fiber.StatusOK, "Task updated successfully", fiber.Map{"data": task})
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id", "task")
	if err != nil {
		return fail(c, "delete task", err)
	}

	userID := middleware.UserID(c)
	ctx := c.UserContext()

	task, err := h.Store.GetTask(ctx, taskID)
	if err != nil {
		return fail(c, "delete task", storeErr(err, "Task not found"))
	}
	allowed, err := h.canManage(ctx, userID, task)
	if err != nil {
		return fail(c, "delete task", err)
	}
	if !allowed {
		logger.SecurityLogger.Warn("Task delete by non-owner", zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return fail(c, "delete task", errTaskForbidden)
	}

	if err := h.Store.DeleteTask(ctx, taskID); err != nil {
		return fail(c, "delete task", storeErr(err, "Task not found"))
	}
	h.forget(ctx, cache.TaskKey(taskID))

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID))
	return ok(c, fiber.StatusOK, "Task deleted successfully", nil)
}

// CompleteTask checks the reported engagement against the task requirements
// and credits the caller at most once per task.
func (h *Handler) CompleteTask(c *fiber.Ctx) error {
	type CompleteTaskRequest struct {
		TaskID int `json:"taskId"`
		engagement.Report
	}

	var req CompleteTaskRequest
	if err := parse(c, &req); err != nil {
		return fail(c, "complete task", err)
	}
	if req.TaskID <= 0 {
		return fail(c, "complete task", errTaskIDRequired)
	}

	userID := middleware.UserID(c)
	ctx := c.UserContext()

	task, err := h.Store.GetTask(ctx, req.TaskID)
	if err != nil {
		return fail(c, "complete task", storeErr(err, "Task not found"))
	}
	if task.Status != models.StatusActive {
		return fail(c, "complete task", errTaskArchived)
	}
	if err := engagement.Evaluate(task.EffectiveRequirements(), req.Report); err != nil {
		metrics.CompletionAttempts.WithLabelValues("rejected").Inc()
		logger.AuditLogger.Info("Completion rejected",
			zap.Int("user_id", userID),
			zap.Int("task_id", task.ID),
			zap.Bool("cheating", req.CheatingDetected),
		)
		return fail(c, "complete task", errNotEngaged)
	}

	res, err := h.Store.CompleteTask(ctx, task.ID, userID, req.TimeSpent())
	if err != nil {
		return fail(c, "complete task", storeErr(err, "Task not found"))
	}

	if res.AlreadyCompleted {
		metrics.CompletionAttempts.WithLabelValues("already_completed").Inc()
	} else {
		metrics.CompletionAttempts.WithLabelValues("credited").Inc()
		metrics.PointsAwarded.WithLabelValues("task_completion").Add(float64(res.PointsAwarded))
		h.forget(ctx, cache.TaskKey(task.ID))
		h.Feed.Publish(websocket.Event{
			Event:  websocket.EventTaskCompleted,
			RoomID: task.RoomID,
			UserID: userID,
			TaskID: task.ID,
			Points: res.PointsAwarded,
		})
		logger.AuditLogger.Info("Task completed",
			zap.Int("user_id", userID), zap.Int("task_id", task.ID), zap.Int("points", res.PointsAwarded))
	}

	message := "Task completed successfully"
	if res.AlreadyCompleted {
		message = "Task already completed"
	}
	return ok(c, fiber.StatusOK, message, fiber.Map{
		"alreadyCompleted": res.AlreadyCompleted,
		"pointsAwarded":    res.PointsAwarded,
		"user": fiber.Map{
			"points": res.UserPoints,
			"streak": res.UserStreak,
		},
		"analytics": res.Analytics,
	})
}

// TrackTaskClick counts a detail-view open.
func (h *Handler) TrackTaskClick(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id", "task")
	if err != nil {
		return fail(c, "track task click", err)
	}
	analytics, err := h.Store.TrackTaskClick(c.UserContext(), taskID)
	if err != nil {
		return fail(c, "track task click", storeErr(err, "Task not found"))
	}
	h.forget(c.UserContext(), cache.TaskKey(taskID))
	return ok(c, fiber.StatusOK, "Click tracked", fiber.Map{"analytics": analytics})
}

// TrackTaskCompletion counts an attempt as finished or dropped. Unlike
// CompleteTask it credits nothing and does not deduplicate.
func (h *Handler) TrackTaskCompletion(c *fiber.Ctx) error {
	type TrackCompletionRequest struct {
		CompletionTimeSeconds float64 `json:"completionTimeSeconds" validate:"gte=0"`
		Dropped               bool    `json:"dropped"`
	}

	taskID, err := paramID(c, "id", "task")
	if err != nil {
		return fail(c, "track task completion", err)
	}
	var req TrackCompletionRequest
	if len(c.Body()) > 0 {
		if err := parse(c, &req); err != nil {
			return fail(c, "track task completion", err)
		}
	}

	analytics, err := h.Store.TrackTaskCompletion(c.UserContext(), taskID, req.CompletionTimeSeconds, req.Dropped)
	if err != nil {
		return fail(c, "track task completion", storeErr(err, "Task not found"))
	}
	h.forget(c.UserContext(), cache.TaskKey(taskID))
	return ok(c, fiber.StatusOK, "Completion tracked", fiber.Map{"analytics": analytics})
}
