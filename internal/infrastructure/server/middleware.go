package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	contextUserID    = "user"
	contextUserEmail = "user_email"
)

// authMiddleware validates bearer tokens issued by the auth service.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := s.app.Auth.ValidateToken(tokenString)
			if err != nil {
				s.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
					"path":  c.Request().URL.Path,
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(contextUserID, claims.UserID)
			c.Set(contextUserEmail, claims.Email)
			return next(c)
		}
	}
}

// userIDFromContext returns the user set by authMiddleware, if any.
func userIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(contextUserID).(int64)
	return id, ok
}
