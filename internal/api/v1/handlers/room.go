package handlers

import (
	"context"
	"errors"
	"fmt"

	"dailyforge/internal/cache"
	"dailyforge/internal/middleware"
	"dailyforge/internal/models"
	"dailyforge/internal/repository"
	"dailyforge/pkg/apperror"
	"dailyforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// MaxRoomsPerUser is checked when a room is created.
	MaxRoomsPerUser = 2
	// RecentRoomsLimit is the size of the landing page list.
	RecentRoomsLimit = 6

	roomCodeAttempts = 5
)

var errRoomQuota = apperror.New(apperror.CodeQuotaExceeded,
	fmt.Sprintf("You have already created %d rooms. Each user can create a maximum of %d rooms.",
		MaxRoomsPerUser, MaxRoomsPerUser))

// generateRoomCode returns DF followed by four digits, 1000 to 9999.
func (h *Handler) generateRoomCode() string {
	return fmt.Sprintf("DF%d", 1000+h.RandIntN(9000))
}

// CreateRoom creates a room owned by the caller. The quota is a count check
// made before the insert, so two concurrent requests may both pass it.
func (h *Handler) CreateRoom(c *fiber.Ctx) error {
	type CreateRoomRequest struct {
		Name             string   `json:"name" validate:"required,max=255"`
		Category         string   `json:"category" validate:"required,max=255"`
		Title            string   `json:"title" validate:"required,max=255"`
		Privacy          string   `json:"privacy" validate:"omitempty,oneof=public private"`
		TaskPoints       *int     `json:"taskPoints" validate:"omitempty,gte=0"`
		DailyBonusPoints *int     `json:"dailyBonusPoints" validate:"omitempty,gte=0"`
		StreakMultiplier *float64 `json:"streakMultiplier" validate:"omitempty,gt=0"`
	}

	var req CreateRoomRequest
	if err := parse(c, &req); err != nil {
		return fail(c, "create room", err)
	}

	userID := middleware.UserID(c)
	ctx := c.UserContext()

	owned, err := h.Store.CountRoomsByOwner(ctx, userID)
	if err != nil {
		return fail(c, "create room", err)
	}
	if owned >= MaxRoomsPerUser {
		logger.AuditLogger.Warn("Room quota reached", zap.Int("user_id", userID), zap.Int("owned", owned))
		return fail(c, "create room", errRoomQuota)
	}

	room := &models.Room{
		Name:             req.Name,
		Category:         req.Category,
		Title:            req.Title,
		Privacy:          models.PrivacyPublic,
		CreatedBy:        userID,
		TaskPoints:       models.RoomDefaults.TaskPoints,
		DailyBonusPoints: models.RoomDefaults.DailyBonusPoints,
		StreakMultiplier: models.RoomDefaults.StreakMultiplier,
	}
	if req.Privacy == models.PrivacyPrivate {
		room.Privacy = models.PrivacyPrivate
	}
	if req.TaskPoints != nil {
		room.TaskPoints = *req.TaskPoints
	}
	if req.DailyBonusPoints != nil {
		room.DailyBonusPoints = *req.DailyBonusPoints
	}
	if req.StreakMultiplier != nil {
		room.StreakMultiplier = *req.StreakMultiplier
	}

	for attempt := 1; ; attempt++ {
		room.RoomID = h.generateRoomCode()
		err = h.Store.CreateRoom(ctx, room)
		if !errors.Is(err, repository.ErrRoomCodeTaken) || attempt == roomCodeAttempts {
			break
		}
	}
	if err != nil {
		return fail(c, "create room", err)
	}
	h.forget(ctx, cache.RecentRoomsKey)

	logger.AuditLogger.Info("Room created", zap.Int("user_id", userID), zap.String("room", room.RoomID))
	return ok(c, fiber.StatusCreated, "Room created successfully", fiber.Map{
		"roomId": room.RoomID,
		"data":   room,
	})
}

// BrowseRooms lists public active rooms. Private rooms never appear, whatever
// the privacy query says.
func (h *Handler) BrowseRooms(c *fiber.Ctx) error {
	rooms, err := h.Store.BrowseRooms(c.UserContext(), c.Query("category"))
	if err != nil {
		return fail(c, "browse rooms", err)
	}
	return ok(c, fiber.StatusOK, "Rooms fetched successfully", fiber.Map{"rooms": rooms})
}

// RefreshRecentRooms reloads the landing page list and caches it.
func (h *Handler) RefreshRecentRooms(ctx context.Context) ([]models.RecentRoom, error) {
	rooms, err := h.Store.RecentRooms(ctx, RecentRoomsLimit)
	if err != nil {
		return nil, err
	}
	recent := make([]models.RecentRoom, len(rooms))
	for i := range rooms {
		recent[i] = rooms[i].Recent()
	}
	if err := h.Cache.Set(ctx, cache.RecentRoomsKey, recent, h.CacheTTL); err != nil {
		logger.ErrorLogger.Warn("Error caching recent rooms", zap.Error(err))
	}
	return recent, nil
}

func (h *Handler) RecentRooms(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var recent []models.RecentRoom
	err := h.Cache.Get(ctx, cache.RecentRoomsKey, &recent)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.ErrorLogger.Warn("Error reading recent rooms cache", zap.Error(err))
		}
		if recent, err = h.RefreshRecentRooms(ctx); err != nil {
			return fail(c, "recent rooms", err)
		}
	}
	return ok(c, fiber.StatusOK, "Recent rooms fetched successfully", fiber.Map{"recentRooms": recent})
}

func (h *Handler) IncrementRoomView(c *fiber.Ctx) error {
	views, err := h.Store.IncrementRoomViews(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, "increment room view", storeErr(err, "Room not found"))
	}
	return ok(c, fiber.StatusOK, "View recorded", fiber.Map{"views": views})
}

func (h *Handler) RoomDetails(c *fiber.Ctx) error {
	room, err := h.Store.GetRoom(c.UserContext(), c.Params("roomId"))
	if err != nil {
		return fail(c, "room details", storeErr(err, "Room not found"))
	}
	return ok(c, fiber.StatusOK, "Room fetched successfully", fiber.Map{"room": room})
}

// DeleteRoom removes a room owned by the caller. Deleting a room that no
// longer exists succeeds.
func (h *Handler) DeleteRoom(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	ctx := c.UserContext()

	room, err := h.Store.GetRoom(ctx, c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return ok(c, fiber.StatusOK, "Room already deleted", nil)
	}
	if err != nil {
		return fail(c, "delete room", err)
	}
	if room.CreatedBy != userID {
		logger.SecurityLogger.Warn("Room delete by non-owner",
			zap.Int("user_id", userID), zap.String("room", room.RoomID))
		return fail(c, "delete room", apperror.New(apperror.CodeForbidden, "Only the room owner can delete this room"))
	}

	stale := h.roomTaskKeys(ctx, room.RoomID)
	if err := h.Store.DeleteRoom(ctx, room.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ok(c, fiber.StatusOK, "Room already deleted", nil)
		}
		return fail(c, "delete room", err)
	}
	h.forget(ctx, append(stale, cache.RecentRoomsKey)...)

	logger.AuditLogger.Info("Room deleted", zap.Int("user_id", userID), zap.String("room", room.RoomID))
	return ok(c, fiber.StatusOK, "Room deleted successfully", nil)
}

// roomTaskKeys lists the cache keys of a room's tasks. Lookup failures only
// leave entries to expire on their own.
func (h *Handler) roomTaskKeys(ctx context.Context, code string) []string {
	tasks, err := h.Store.ListTasks(ctx, models.TaskFilter{RoomID: code})
	if err != nil {
		logger.ErrorLogger.Warn("Error listing room tasks for cache invalidation", zap.Error(err))
		return nil
	}
	keys := make([]string, len(tasks))
	for i := range tasks {
		keys[i] = cache.TaskKey(tasks[i].ID)
	}
	return keys
}
