package v1

import (
	"dailyforge/internal/api/v1/handlers"
	"dailyforge/internal/middleware"
	"dailyforge/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the API under /api/v1 plus health, metrics and the
// room feed. hub may be nil when the live feed is disabled.
func RegisterRoutes(app *fiber.App, h *handlers.Handler, hub *websocket.Hub) {
	auth := middleware.RequireAuth(h.Secret)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "DailyForge API is running"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if hub != nil {
		app.Get("/ws/rooms/:roomId", websocket.Upgrade, hub.Serve())
	}

	api := app.Group("/api/v1")

	// Auth
	api.Post("/signup", h.Signup)
	api.Post("/login", h.Login)

	// Room
	roomRoutes := api.Group("/rooms")
	roomRoutes.Post("/create", auth, h.CreateRoom)
	roomRoutes.Get("/browse", h.BrowseRooms)
	roomRoutes.Get("/recent", h.RecentRooms)
	roomRoutes.Patch("/:id/view", h.IncrementRoomView)
	roomRoutes.Get("/:roomId/details", auth, h.RoomDetails)
	roomRoutes.Delete("/:id", auth, h.DeleteRoom)

	// Task
	taskRoutes := api.Group("/tasks", auth)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Post("/complete", h.CompleteTask)
	taskRoutes.Post("/:id/track-click", h.TrackTaskClick)
	taskRoutes.Post("/:id/track-completion", h.TrackTaskCompletion)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Put("/:id", h.UpdateTask)
	taskRoutes.Delete("/:id", h.DeleteTask)

	// User
	userRoutes := api.Group("/user", auth)
	userRoutes.Get("/profile", h.GetProfile)
	userRoutes.Post("/join-room", h.JoinRoom)
	userRoutes.Post("/streak", h.Streak)
	userRoutes.Get("/created-rooms", h.CreatedRooms)
	userRoutes.Delete("/delete", h.DeleteAccount)
}
