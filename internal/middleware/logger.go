package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"

	"dailyforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDKey is the Locals key and response header carrying the request id.
const RequestIDKey = "X-Request-ID"

// ErrorHandler tags each request with an id, logs it and turns panics into a
// generic 500.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		requestID := c.Get(RequestIDKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r),
					zap.String("request_id", requestID),
					zap.String("stack", string(debug.Stack())),
				)
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Internal server error",
					"success": false,
					"status":  fiber.StatusInternalServerError,
					"code":    "INTERNAL_ERROR",
				})
			}
		}()

		// Logging request masuk
		logger.RequestLogger.Info("Incoming request",
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
		)
		return c.Next()
	}
}

// FiberErrors renders errors that escape handlers (unknown routes, body
// limits, upgrade failures) in the common response envelope.
func FiberErrors(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		logger.ErrorLogger.Error("Unhandled error", zap.Error(err), zap.String("path", c.Path()))
	}
	return c.Status(code).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  code,
	})
}
