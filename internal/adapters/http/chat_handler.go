package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// BackupResponse names a created backup.
type BackupResponse struct {
	Key string `json:"key"`
}

// ChatHandler serves chat sessions and completions.
type ChatHandler struct {
	chat   *services.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *services.ChatService, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// ListSessions godoc
// @Summary List sessions
// @Tags chat
// @Produce json
// @Param q query string false "Keyword matched against titles and messages"
// @Success 200 {array} entities.ChatSession
// @Router /chat/sessions [get]
func (h *ChatHandler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.Sessions(c.QueryParam("q")))
}

// CreateSession godoc
// @Summary Create a session and make it current
// @Tags chat
// @Accept json
// @Produce json
// @Param request body ports.CreateSessionRequest false "Title"
// @Success 201 {object} entities.ChatSession
// @Router /chat/sessions [post]
func (h *ChatHandler) CreateSession(c echo.Context) error {
	var req ports.CreateSessionRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	session, err := h.chat.CreateSession(c.Request().Context(), req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

// GetSession godoc
// @Summary Get a session
// @Tags chat
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} entities.ChatSession
// @Failure 404 {object} ErrorResponse
// @Router /chat/sessions/{id} [get]
func (h *ChatHandler) GetSession(c echo.Context) error {
	session := h.chat.Session(c.Param("id"))
	if session == nil {
		return notFound("session", c.Param("id"))
	}
	return c.JSON(http.StatusOK, session)
}

// CurrentSession godoc
// @Summary The current session
// @Tags chat
// @Produce json
// @Success 200 {object} entities.ChatSession
// @Failure 404 {object} ErrorResponse
// @Router /chat/current [get]
func (h *ChatHandler) CurrentSession(c echo.Context) error {
	session := h.chat.CurrentSession()
	if session == nil {
		return notFound("session", "current")
	}
	return c.JSON(http.StatusOK, session)
}

// SwitchSession godoc
// @Summary Make a session current
// @Tags chat
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} entities.ChatSession
// @Failure 404 {object} ErrorResponse
// @Router /chat/sessions/{id}/switch [post]
func (h *ChatHandler) SwitchSession(c echo.Context) error {
	session, err := h.chat.SwitchSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// UpdateTitle godoc
// @Summary Rename a session
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body ports.UpdateTitleRequest true "Title"
// @Success 200 {object} entities.ChatSession
// @Failure 404 {object} ErrorResponse
// @Router /chat/sessions/{id}/title [put]
func (h *ChatHandler) UpdateTitle(c echo.Context) error {
	var req ports.UpdateTitleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.chat.UpdateSessionTitle(c.Request().Context(), c.Param("id"), req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession godoc
// @Summary Delete a session
// @Tags chat
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /chat/sessions/{id} [delete]
func (h *ChatHandler) DeleteSession(c echo.Context) error {
	if err := h.chat.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearAll godoc
// @Summary Delete every session
// @Description Backups are kept.
// @Tags chat
// @Success 204
// @Router /chat/sessions [delete]
func (h *ChatHandler) ClearAll(c echo.Context) error {
	if err := h.chat.ClearAll(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SwitchModel godoc
// @Summary Choose the model for new messages
// @Tags chat
// @Accept json
// @Produce json
// @Param request body ports.SwitchModelRequest true "Model"
// @Success 200 {object} services.ChatState
// @Router /chat/model [put]
func (h *ChatHandler) SwitchModel(c echo.Context) error {
	var req ports.SwitchModelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.chat.SwitchModel(c.Request().Context(), req.Model); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.chat.State())
}

// Models godoc
// @Summary Model catalogue
// @Tags chat
// @Produce json
// @Success 200 {array} entities.ChatModel
// @Router /chat/models [get]
func (h *ChatHandler) Models(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.Models())
}

// State godoc
// @Summary Chat store state
// @Tags chat
// @Produce json
// @Success 200 {object} services.ChatState
// @Router /chat/state [get]
func (h *ChatHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.State())
}

// ClearError godoc
// @Summary Clear the last chat failure
// @Tags chat
// @Success 204
// @Router /chat/error [delete]
func (h *ChatHandler) ClearError(c echo.Context) error {
	h.chat.ClearError()
	return c.NoContent(http.StatusNoContent)
}

// SendMessage godoc
// @Summary Send a message and wait for the reply
// @Tags chat
// @Accept json
// @Produce json
// @Param request body ports.SendMessageRequest true "Message"
// @Success 200 {object} entities.ChatMessage
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /chat/messages [post]
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req ports.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	reply, err := h.chat.SendMessage(c.Request().Context(), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reply)
}

// StreamMessage godoc
// @Summary Send a message and stream the reply
// @Description Server-sent events: "chunk" events carry content fragments, then
// @Description one "done" event with the stored message or one "error" event.
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Param request body ports.SendMessageRequest true "Message"
// @Success 200 {string} string "event stream"
// @Router /chat/messages/stream [post]
func (h *ChatHandler) StreamMessage(c echo.Context) error {
	var req ports.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	reply, err := h.chat.SendMessageStream(c.Request().Context(), req.Content, func(chunk string) {
		if werr := writeEvent(w, "chunk", map[string]string{"content": chunk}); werr != nil {
			h.logger.Debugw("Stream client went away", "error", werr)
		}
	})
	if err != nil {
		h.logger.Warnw("Streaming reply failed", "error", err)
		return writeEvent(w, "error", ErrorResponse{Error: err.Error()})
	}
	return writeEvent(w, "done", reply)
}

func writeEvent(w *echo.Response, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// ExportSessions godoc
// @Summary Export every session
// @Tags chat
// @Produce json
// @Success 200 {object} services.ChatExport
// @Router /chat/export [get]
func (h *ChatHandler) ExportSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.ExportSessions())
}

// ExportSession godoc
// @Summary Export one session
// @Tags chat
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionExport
// @Failure 404 {object} ErrorResponse
// @Router /chat/sessions/{id}/export [get]
func (h *ChatHandler) ExportSession(c echo.Context) error {
	export := h.chat.ExportSession(c.Param("id"))
	if export == nil {
		return notFound("session", c.Param("id"))
	}
	return c.JSON(http.StatusOK, export)
}

// ImportSessions godoc
// @Summary Merge sessions from an export document
// @Tags chat
// @Accept json
// @Produce json
// @Success 200 {object} ports.ImportResult
// @Failure 400 {object} ports.ImportResult
// @Router /chat/import [post]
func (h *ChatHandler) ImportSessions(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	result := h.chat.ImportSessions(c.Request().Context(), data)
	if !result.Success {
		return c.JSON(http.StatusBadRequest, result)
	}
	return c.JSON(http.StatusOK, result)
}

// ListBackups godoc
// @Summary List backups, newest first
// @Tags chat
// @Produce json
// @Success 200 {array} services.BackupInfo
// @Router /chat/backups [get]
func (h *ChatHandler) ListBackups(c echo.Context) error {
	backups, err := h.chat.Backups(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, backups)
}

// CreateBackup godoc
// @Summary Write a backup now
// @Tags chat
// @Produce json
// @Success 201 {object} BackupResponse
// @Router /chat/backups [post]
func (h *ChatHandler) CreateBackup(c echo.Context) error {
	key, err := h.chat.CreateBackup(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, BackupResponse{Key: key})
}

// DeleteBackup godoc
// @Summary Delete a backup
// @Tags chat
// @Param key path string true "Backup key"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /chat/backups/{key} [delete]
func (h *ChatHandler) DeleteBackup(c echo.Context) error {
	if err := h.chat.DeleteBackup(c.Request().Context(), c.Param("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RestoreBackup godoc
// @Summary Replace sessions with a backup
// @Tags chat
// @Produce json
// @Param key path string true "Backup key"
// @Success 200 {object} services.ChatState
// @Failure 404 {object} ErrorResponse
// @Router /chat/backups/{key}/restore [post]
func (h *ChatHandler) RestoreBackup(c echo.Context) error {
	if err := h.chat.RestoreFromBackup(c.Request().Context(), c.Param("key")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.chat.State())
}
