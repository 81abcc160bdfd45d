package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// ThemeHandler serves the theme catalogue.
type ThemeHandler struct {
	themes *services.ThemeService
	logger *logger.Logger
}

// NewThemeHandler creates a new theme handler
func NewThemeHandler(themes *services.ThemeService, logger *logger.Logger) *ThemeHandler {
	return &ThemeHandler{themes: themes, logger: logger}
}

// ListThemes godoc
// @Summary Theme catalogue
// @Tags themes
// @Produce json
// @Success 200 {array} entities.Theme
// @Router /themes [get]
func (h *ThemeHandler) ListThemes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.themes.Themes())
}

// CurrentTheme godoc
// @Summary Selected theme
// @Tags themes
// @Produce json
// @Success 200 {object} entities.Theme
// @Router /themes/current [get]
func (h *ThemeHandler) CurrentTheme(c echo.Context) error {
	return c.JSON(http.StatusOK, h.themes.Current())
}

// CSSVariables godoc
// @Summary CSS custom properties of the selected theme
// @Tags themes
// @Produce json
// @Success 200 {object} map[string]string
// @Router /themes/current/css [get]
func (h *ThemeHandler) CSSVariables(c echo.Context) error {
	return c.JSON(http.StatusOK, h.themes.CSSVariables())
}

// SetTheme godoc
// @Summary Select a theme
// @Tags themes
// @Accept json
// @Produce json
// @Param request body ports.SetThemeRequest true "Theme"
// @Success 200 {object} entities.Theme
// @Failure 404 {object} ErrorResponse
// @Router /themes/current [put]
func (h *ThemeHandler) SetTheme(c echo.Context) error {
	var req ports.SetThemeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	theme, err := h.themes.SetTheme(c.Request().Context(), req.ThemeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, theme)
}

// CreateCustom godoc
// @Summary Copy a theme under a new name
// @Tags themes
// @Accept json
// @Produce json
// @Param request body ports.CreateThemeRequest true "Base theme and name"
// @Success 201 {object} entities.Theme
// @Failure 404 {object} ErrorResponse
// @Router /themes [post]
func (h *ThemeHandler) CreateCustom(c echo.Context) error {
	var req ports.CreateThemeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	theme, err := h.themes.CreateCustom(c.Request().Context(), req.BaseThemeID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, theme)
}

// UpdateTheme godoc
// @Summary Update theme fields
// @Tags themes
// @Accept json
// @Produce json
// @Param id path string true "Theme ID"
// @Param request body ports.UpdateThemeRequest true "Changed fields"
// @Success 200 {object} entities.Theme
// @Failure 404 {object} ErrorResponse
// @Router /themes/{id} [put]
func (h *ThemeHandler) UpdateTheme(c echo.Context) error {
	var req ports.UpdateThemeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	theme, err := h.themes.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, theme)
}

// DeleteTheme godoc
// @Summary Delete a custom theme
// @Tags themes
// @Param id path string true "Theme ID"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Router /themes/{id} [delete]
func (h *ThemeHandler) DeleteTheme(c echo.Context) error {
	if err := h.themes.DeleteCustom(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ResetTheme godoc
// @Summary Restore a built-in theme's defaults
// @Tags themes
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} entities.Theme
// @Failure 409 {object} ErrorResponse
// @Router /themes/{id}/reset [post]
func (h *ThemeHandler) ResetTheme(c echo.Context) error {
	theme, err := h.themes.Reset(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, theme)
}
