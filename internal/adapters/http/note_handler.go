package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// NoteHandler serves the note store.
type NoteHandler struct {
	notes  *services.NoteService
	logger *logger.Logger
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *services.NoteService, logger *logger.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, logger: logger}
}

// ListNotes godoc
// @Summary List notes
// @Description Filter by tag, then keyword; newest update first.
// @Tags notes
// @Produce json
// @Param tag query string false "Tag"
// @Param q query string false "Keyword"
// @Success 200 {array} entities.Note
// @Router /notes [get]
func (h *NoteHandler) ListNotes(c echo.Context) error {
	var filter ports.NoteFilter
	if err := c.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query")
	}
	return c.JSON(http.StatusOK, h.notes.List(filter))
}

// CreateNote godoc
// @Summary Create a note
// @Tags notes
// @Accept json
// @Produce json
// @Param request body ports.CreateNoteRequest true "Note data"
// @Success 201 {object} entities.Note
// @Failure 400 {object} ErrorResponse
// @Router /notes [post]
func (h *NoteHandler) CreateNote(c echo.Context) error {
	var req ports.CreateNoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	note, err := h.notes.Add(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, note)
}

// GetNote godoc
// @Summary Get a note
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} entities.Note
// @Failure 404 {object} ErrorResponse
// @Router /notes/{id} [get]
func (h *NoteHandler) GetNote(c echo.Context) error {
	note := h.notes.Get(c.Param("id"))
	if note == nil {
		return notFound("note", c.Param("id"))
	}
	return c.JSON(http.StatusOK, note)
}

// UpdateNote godoc
// @Summary Update a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body ports.UpdateNoteRequest true "Changed fields"
// @Success 200 {object} entities.Note
// @Failure 404 {object} ErrorResponse
// @Router /notes/{id} [put]
func (h *NoteHandler) UpdateNote(c echo.Context) error {
	var req ports.UpdateNoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	note, err := h.notes.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	if note == nil {
		return notFound("note", c.Param("id"))
	}
	return c.JSON(http.StatusOK, note)
}

// DeleteNote godoc
// @Summary Delete a note
// @Tags notes
// @Param id path string true "Note ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /notes/{id} [delete]
func (h *NoteHandler) DeleteNote(c echo.Context) error {
	note, err := h.notes.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if note == nil {
		return notFound("note", c.Param("id"))
	}
	return c.NoContent(http.StatusNoContent)
}

// NoteStats godoc
// @Summary Note statistics
// @Tags notes
// @Produce json
// @Success 200 {object} entities.NoteStats
// @Router /notes/stats [get]
func (h *NoteHandler) NoteStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notes.Stats())
}

// NoteTags godoc
// @Summary Tags in use with their counts
// @Tags notes
// @Produce json
// @Success 200 {object} map[string]int
// @Router /notes/tags [get]
func (h *NoteHandler) NoteTags(c echo.Context) error {
	tags := h.notes.AvailableTags()
	out := make(map[string]int, len(tags))
	for _, tag := range tags {
		out[tag] = h.notes.TagCount(tag)
	}
	return c.JSON(http.StatusOK, out)
}

// ExportNotes godoc
// @Summary Export notes
// @Tags notes
// @Produce json
// @Success 200 {object} services.NotesExport
// @Router /notes/export [get]
func (h *NoteHandler) ExportNotes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notes.Export())
}

// ImportNotes godoc
// @Summary Import notes
// @Description Replaces all notes with the valid records of an export document or bare array.
// @Tags notes
// @Accept json
// @Produce json
// @Success 200 {object} CountResponse
// @Failure 400 {object} ErrorResponse
// @Router /notes/import [post]
func (h *NoteHandler) ImportNotes(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	n, err := h.notes.Import(c.Request().Context(), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}
