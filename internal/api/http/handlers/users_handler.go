package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/messaging-service/internal/api/dto"
	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/avatar"
	"github.com/spec-kit/messaging-service/internal/service"
	apperrors "github.com/spec-kit/messaging-service/pkg/util/errorutil"
)

// UsersHandler exposes login, registration and profile endpoints.
type UsersHandler struct {
	auth    *service.AuthService
	avatars *avatar.Builder
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, avatars *avatar.Builder) *UsersHandler {
	return &UsersHandler{auth: authService, avatars: avatars}
}

// Login handles POST /userLogin.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewDomainError("INVALID_PAYLOAD", "Invalid request body", http.StatusBadRequest, nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewDomainError("MISSING_CREDENTIALS", "Email and password are required", http.StatusBadRequest, nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			return apperrors.NewDomainError("MISSING_CREDENTIALS", "Email and password are required", http.StatusBadRequest, nil)
		case errors.Is(err, auth.ErrInvalidCredentials):
			return apperrors.NewUnauthorized("INVALID_CREDENTIALS", "Invalid credentials")
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.LoginResponse{
		Success:   true,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.UserSummary{Email: result.User.Email, Role: string(result.User.Role)},
	})
}

// Register handles POST /userRegistracija.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewDomainError("INVALID_PAYLOAD", "Invalid request body", http.StatusBadRequest, nil)
	}

	result, err := h.auth.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrPasswordLong):
			return apperrors.NewValidationError("Credentials are not valid", nil)
		case errors.Is(err, service.ErrEmailTaken):
			return apperrors.NewConflict("Email already registered")
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.RegisterResponse{
		Success:           true,
		Message:           "Registration successful",
		User:              dto.UserSummary{ID: result.User.ID, Email: result.User.Email, Role: string(result.User.Role)},
		TemporaryPassword: result.TemporaryPassword,
	})
}

// VerifyToken handles GET /verifyToken.
func (h *UsersHandler) VerifyToken(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewInternalError(errors.New("identity missing from authenticated route"))
	}
	return c.JSON(fiber.Map{
		"message": "Token valid",
		"user": dto.UserSummary{
			ID:    identity.ID,
			Email: identity.Email,
			Role:  string(identity.Role),
		},
	})
}

// UserInfo handles GET /userInfo. The avatar URL falls back to the
// configured placeholder when the avatar host is not safe to reference.
func (h *UsersHandler) UserInfo(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewInternalError(errors.New("identity missing from authenticated route"))
	}
	return c.JSON(dto.ProfileResponse{
		Success: true,
		User: dto.Profile{
			Gravatar: h.avatars.BuildOrDefault(c.UserContext(), identity.Email),
			Email:    identity.Email,
			Role:     string(identity.Role),
		},
	})
}
