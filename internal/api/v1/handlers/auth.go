package handlers

import (
	"errors"
	"strings"

	"dailyforge/internal/models"
	"dailyforge/internal/repository"
	"dailyforge/pkg/apperror"
	"dailyforge/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = apperror.New(apperror.CodeUnauthorized, "Invalid credentials")

// issueToken membuat token JWT berisi user_id dan exp.
func (h *Handler) issueToken(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     h.now().Add(h.TokenTTL).Unix(),
	})
	return token.SignedString(h.Secret)
}

// Signup mendaftarkan user baru dan langsung mengembalikan token.
func (h *Handler) Signup(c *fiber.Ctx) error {
	type SignupRequest struct {
		Username string `json:"username" validate:"required,max=255"`
		Email    string `json:"email" validate:"required,email,max=255"`
		Password string `json:"password" validate:"required,min=6,max=72"`
		About    string `json:"about" validate:"max=1000"`
	}

	var req SignupRequest
	if err := parse(c, &req); err != nil {
		return fail(c, "signup", err)
	}

	// Hash the password using bcrypt with default cost
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, "signup", err)
	}

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashed),
		About:    req.About,
	}
	if err := h.Store.CreateUser(c.UserContext(), user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			logger.SecurityLogger.Warn("Duplicate email on signup", zap.String("email", user.Email))
		}
		return fail(c, "signup", storeErr(err, "User not found"))
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		return fail(c, "signup", err)
	}

	logger.AuditLogger.Info("User registered successfully", zap.Int("user_id", user.ID))
	return ok(c, fiber.StatusCreated, "User created successfully", fiber.Map{
		"token": token,
		"user":  user.Public(),
	})
}

// Login memverifikasi email dan password lalu mengembalikan token.
func (h *Handler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := parse(c, &req); err != nil {
		return fail(c, "login", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.Store.GetUserByEmail(c.UserContext(), email)
	if errors.Is(err, repository.ErrNotFound) {
		logger.SecurityLogger.Warn("Login for unknown email", zap.String("email", email))
		return fail(c, "login", errInvalidCredentials)
	}
	if err != nil {
		return fail(c, "login", err)
	}

	// user.Password -> hash di database, req.Password -> input user
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.Int("user_id", user.ID))
		return fail(c, "login", errInvalidCredentials)
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		return fail(c, "login", err)
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID))
	return ok(c, fiber.StatusOK, "Logged in successfully", fiber.Map{
		"token": token,
		"user":  user.Public(),
	})
}
