package handlers

import (
	"dailyforge/internal/cache"
	"dailyforge/internal/middleware"
	"dailyforge/internal/models"
	"dailyforge/internal/streak"
	"dailyforge/internal/websocket"
	"dailyforge/pkg/logger"
	"dailyforge/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetProfile records today's visit, advancing the streak, and returns the
// profile with room counts.
func (h *Handler) GetProfile(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	ctx := c.UserContext()

	before, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		return fail(c, "get profile", storeErr(err, "User not found"))
	}
	user, err := h.Store.TouchStreak(ctx, userID, h.now())
	if err != nil {
		return fail(c, "get profile", storeErr(err, "User not found"))
	}
	if user.Streak != before.Streak {
		logger.AuditLogger.Info("Streak updated",
			zap.Int("user_id", userID), zap.Int("from", before.Streak), zap.Int("to", user.Streak))
	}

	created, err := h.Store.CountRoomsByOwner(ctx, userID)
	if err != nil {
		return fail(c, "get profile", err)
	}

	return ok(c, fiber.StatusOK, "Profile fetched successfully", fiber.Map{
		"data": models.Profile{
			ID:                user.ID,
			Username:          user.Username,
			Email:             user.Email,
			About:             user.About,
			Streak:            user.Streak,
			Points:            user.Points,
			JoinedRoomsCount:  len(user.JoinedRooms),
			CreatedRoomsCount: created,
			CreatorBadge:      created > 0,
		},
	})
}

// JoinRoom adds the caller to a room. The join bonus is credited once per room.
func (h *Handler) JoinRoom(c *fiber.Ctx) error {
	type JoinRoomRequest struct {
		RoomID string `json:"roomId" validate:"required"`
	}

	var req JoinRoomRequest
	if err := parse(c, &req); err != nil {
		return fail(c, "join room", err)
	}

	userID := middleware.UserID(c)
	res, err := h.Store.JoinRoom(c.UserContext(), userID, req.RoomID)
	if err != nil {
		return fail(c, "join room", storeErr(err, "Room not found"))
	}

	if res.Joined {
		metrics.PointsAwarded.WithLabelValues("room_join").Add(streak.RoomJoinBonus)
		h.Feed.Publish(websocket.Event{
			Event:  websocket.EventMemberJoined,
			RoomID: res.RoomID,
			UserID: userID,
			Points: streak.RoomJoinBonus,
		})
		logger.AuditLogger.Info("Room joined", zap.Int("user_id", userID), zap.String("room", res.RoomID))
	}

	return ok(c, fiber.StatusOK, "Room joined successfully", fiber.Map{
		"roomId":           res.RoomID,
		"joined":           res.Joined,
		"points":           res.Points,
		"joinedRoomsCount": res.JoinedRoomsCount,
	})
}

// Streak reports the current streak. Streaks only move on profile visits.
func (h *Handler) Streak(c *fiber.Ctx) error {
	user, err := h.Store.GetUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return fail(c, "streak", storeErr(err, "User not found"))
	}
	return ok(c, fiber.StatusOK, "Streak is managed automatically based on daily visits.", fiber.Map{
		"streak": user.Streak,
		"points": user.Points,
	})
}

func (h *Handler) CreatedRooms(c *fiber.Ctx) error {
	rooms, err := h.Store.ListRoomsByOwner(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return fail(c, "created rooms", err)
	}
	return ok(c, fiber.StatusOK, "Rooms fetched successfully", fiber.Map{"rooms": rooms})
}

// DeleteAccount removes the caller, their rooms and their memberships.
func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	ctx := c.UserContext()

	stale := []string{cache.RecentRoomsKey}
	if owned, err := h.Store.ListRoomsByOwner(ctx, userID); err == nil {
		for _, r := range owned {
			stale = append(stale, h.roomTaskKeys(ctx, r.RoomID)...)
		}
	}
	if err := h.Store.DeleteUser(ctx, userID); err != nil {
		return fail(c, "delete account", storeErr(err, "User not found"))
	}
	h.forget(ctx, stale...)

	logger.AuditLogger.Info("Account deleted", zap.Int("user_id", userID))
	return ok(c, fiber.StatusOK, "Account deleted successfully", nil)
}
