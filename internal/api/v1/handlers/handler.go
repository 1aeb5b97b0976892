package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"dailyforge/internal/cache"
	"dailyforge/internal/config"
	"dailyforge/internal/models"
	"dailyforge/internal/repository"
	"dailyforge/internal/websocket"
	"dailyforge/pkg/apperror"
	"dailyforge/pkg/logger"
	"dailyforge/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Store is the persistence the handlers need. *repository.Store implements it.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchStreak(ctx context.Context, id int, now time.Time) (*models.User, error)
	JoinRoom(ctx context.Context, userID int, ref string) (*models.JoinResult, error)
	DeleteUser(ctx context.Context, id int) error

	CreateRoom(ctx context.Context, r *models.Room) error
	CountRoomsByOwner(ctx context.Context, userID int) (int, error)
	ListRoomsByOwner(ctx context.Context, userID int) ([]models.Room, error)
	BrowseRooms(ctx context.Context, category string) ([]models.Room, error)
	RecentRooms(ctx context.Context, limit int) ([]models.Room, error)
	IncrementRoomViews(ctx context.Context, ref string) (int, error)
	GetRoom(ctx context.Context, ref string) (*models.RoomDetails, error)
	DeleteRoom(ctx context.Context, roomID int) error

	CreateTask(ctx context.Context, t *models.Task) error
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id int) error
	TrackTaskClick(ctx context.Context, id int) (*models.Analytics, error)
	TrackTaskCompletion(ctx context.Context, id int, seconds float64, dropped bool) (*models.Analytics, error)
	CompleteTask(ctx context.Context, taskID, userID int, timeSpent float64) (*models.CompletionResult, error)
}

// Feed receives live room activity.
type Feed interface {
	Publish(ev websocket.Event)
}

type nopFeed struct{}

func (nopFeed) Publish(websocket.Event) {}

// Handler bundles the dependencies shared by every route.
type Handler struct {
	Store    Store
	Cache    cache.Cache
	Feed     Feed
	Secret   []byte
	TokenTTL time.Duration
	CacheTTL time.Duration
	// Now and RandIntN are replaced in tests.
	Now      func() time.Time
	RandIntN func(n int) int
}

// New returns a Handler with no-op cache and feed; callers override them.
func New(store Store, secret []byte, tokenTTL time.Duration) *Handler {
	return &Handler{
		Store:    store,
		Cache:    cache.Nop{},
		Feed:     nopFeed{},
		Secret:   secret,
		TokenTTL: tokenTTL,
		CacheTTL: time.Hour,
		Now:      time.Now,
		RandIntN: rand.Intn,
	}
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// ok writes a success envelope merged with fields.
func ok(c *fiber.Ctx, status int, message string, fields fiber.Map) error {
	body := fiber.Map{
		"message": message,
		"success": true,
		"status":  status,
	}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// fail writes the error envelope for err. Internal errors are logged with
// their cause and answered with a generic message.
func fail(c *fiber.Ctx, handler string, err error) error {
	appErr := apperror.From(err)
	status := appErr.HTTPStatus()
	if appErr.Code == apperror.CodeInternal {
		logger.ErrorLogger.Error("Error in "+handler,
			zap.Error(appErr.Err),
			zap.Any("request_id", c.Locals("X-Request-ID")),
		)
	}
	metrics.ErrorCount.WithLabelValues(handler, string(appErr.Code)).Inc()
	return c.Status(status).JSON(fiber.Map{
		"message": appErr.Message,
		"success": false,
		"status":  status,
		"code":    appErr.Code,
	})
}

// storeErr classifies repository sentinels. notFound is the client message
// for ErrNotFound.
func storeErr(err error, notFound string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.Wrap(apperror.CodeUnauthorized, "Account no longer exists", err)
	case errors.Is(err, repository.ErrNotFound):
		return apperror.Wrap(apperror.CodeNotFound, notFound, err)
	case errors.Is(err, repository.ErrEmailTaken):
		return apperror.Wrap(apperror.CodeConflict, "Email already in use", err)
	}
	return err
}

// parse decodes the JSON body into req and runs its validate tags.
func parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperror.Wrap(apperror.CodeInvalidInput, "Bad request", err)
	}
	return validate(req)
}

func validate(req any) error {
	err := config.Validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(apperror.CodeInvalidInput, "Validation error", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperror.Wrap(apperror.CodeInvalidInput, "Validation error: "+strings.Join(msgs, "; "), err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
}

// paramID reads a positive integer route parameter.
func paramID(c *fiber.Ctx, name, what string) (int, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, apperror.New(apperror.CodeInvalidInput, "Invalid "+what+" ID")
	}
	return id, nil
}

// forget drops cached entries. Cache failures never fail a request.
func (h *Handler) forget(ctx context.Context, keys ...string) {
	if err := h.Cache.Delete(ctx, keys...); err != nil {
		logger.ErrorLogger.Warn("Error invalidating cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
