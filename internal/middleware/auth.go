package middleware

import (
	"fmt"
	"strings"
	"time"

	"dailyforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// UserIDKey is the Locals key holding the authenticated user id.
const UserIDKey = "userID"

func unauthorized(c *fiber.Ctx, message string) error {
	logger.SecurityLogger.Warn(message,
		zap.String("path", c.Path()),
		zap.String("ip", c.IP()),
	)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  fiber.StatusUnauthorized,
		"code":    "UNAUTHORIZED",
	})
}

// RequireAuth validates the Bearer token signed with secret and stores the
// user id under UserIDKey.
func RequireAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "No token provided")
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "Invalid token format")
		}
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c, "Invalid token")
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Invalid token claims")
		}
		if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
			return unauthorized(c, "Token expired")
		}
		userID, ok := claims["user_id"].(float64)
		if !ok || userID <= 0 {
			return unauthorized(c, "Invalid user ID in token")
		}
		c.Locals(UserIDKey, int(userID))
		return c.Next()
	}
}

// UserID returns the id stored by RequireAuth, or 0 on public routes.
func UserID(c *fiber.Ctx) int {
	id, _ := c.Locals(UserIDKey).(int)
	return id
}
