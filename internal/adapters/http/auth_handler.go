package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService *services.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RegisterRequest true "Account data"
// @Success 201 {object} ports.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, response)
}

// Login godoc
// @Summary Sign in
// @Description The demo account demo@example.com / password is always accepted.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.LoginRequest true "Credentials"
// @Success 200 {object} ports.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		h.logger.LogSecurityEvent("login_failed", "", c.RealIP(), map[string]interface{}{"email": req.Email})
		return err
	}
	return c.JSON(http.StatusOK, response)
}

// Logout godoc
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.authService.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} entities.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user := h.authService.CurrentUser()
	if user == nil {
		return entities.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, user)
}
