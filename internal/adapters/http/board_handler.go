package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// BoardResult is the envelope of every board endpoint.
type BoardResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BoardHandler serves the board hierarchy.
type BoardHandler struct {
	boards *services.BoardService
	logger *logger.Logger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(boards *services.BoardService, logger *logger.Logger) *BoardHandler {
	return &BoardHandler{boards: boards, logger: logger}
}

func (h *BoardHandler) ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, BoardResult{Success: true, Data: data})
}

// fail answers lookup failures with {success:false, error}; anything else
// goes to the error handler.
func (h *BoardHandler) fail(c echo.Context, err error) error {
	if errors.Is(err, entities.ErrNotFound) {
		return c.JSON(http.StatusNotFound, BoardResult{Success: false, Error: err.Error()})
	}
	return err
}

// ListBoards godoc
// @Summary List boards
// @Tags boards
// @Produce json
// @Success 200 {object} BoardResult
// @Router /boards [get]
func (h *BoardHandler) ListBoards(c echo.Context) error {
	return h.ok(c, http.StatusOK, h.boards.Boards())
}

// CreateBoard godoc
// @Summary Create a board
// @Tags boards
// @Accept json
// @Produce json
// @Param request body ports.CreateBoardRequest true "Board data"
// @Success 201 {object} BoardResult
// @Router /boards [post]
func (h *BoardHandler) CreateBoard(c echo.Context) error {
	var req ports.CreateBoardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	board, err := h.boards.CreateBoard(c.Request().Context(), req.Title)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusCreated, board)
}

// SelectBoard godoc
// @Summary Fetch a board and make it current
// @Tags boards
// @Produce json
// @Param id path string true "Board ID"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /boards/{id} [get]
func (h *BoardHandler) SelectBoard(c echo.Context) error {
	board, err := h.boards.SelectBoard(c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, board)
}

// CurrentBoard godoc
// @Summary The current board
// @Tags boards
// @Produce json
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /boards/current [get]
func (h *BoardHandler) CurrentBoard(c echo.Context) error {
	board := h.boards.CurrentBoard()
	if board == nil {
		return h.fail(c, services.ErrBoardNotFound)
	}
	return h.ok(c, http.StatusOK, board)
}

// BoardProgress godoc
// @Summary Progress of one board
// @Tags boards
// @Produce json
// @Param id path string true "Board ID"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /boards/{id}/progress [get]
func (h *BoardHandler) BoardProgress(c echo.Context) error {
	progress, err := h.boards.Progress(c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, progress)
}

// AllProgress godoc
// @Summary Progress of every board
// @Tags boards
// @Produce json
// @Success 200 {object} BoardResult
// @Router /boards/progress [get]
func (h *BoardHandler) AllProgress(c echo.Context) error {
	return h.ok(c, http.StatusOK, h.boards.AllProgress())
}

// Labels godoc
// @Summary Predefined card labels
// @Tags boards
// @Produce json
// @Success 200 {object} BoardResult
// @Router /boards/labels [get]
func (h *BoardHandler) Labels(c echo.Context) error {
	return h.ok(c, http.StatusOK, h.boards.PredefinedLabels())
}

// LastError godoc
// @Summary The last board failure message
// @Tags boards
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /boards/error [get]
func (h *BoardHandler) LastError(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Message: h.boards.LastError()})
}

// ClearError godoc
// @Summary Clear the last board failure
// @Tags boards
// @Success 204
// @Router /boards/error [delete]
func (h *BoardHandler) ClearError(c echo.Context) error {
	h.boards.ClearError()
	return c.NoContent(http.StatusNoContent)
}

// ImportBoards godoc
// @Summary Replace all boards
// @Tags boards
// @Accept json
// @Produce json
// @Param request body []entities.Board true "Boards"
// @Success 200 {object} BoardResult
// @Router /boards/import [post]
func (h *BoardHandler) ImportBoards(c echo.Context) error {
	var boards []entities.Board
	if err := c.Bind(&boards); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := h.boards.Import(c.Request().Context(), boards); err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, CountResponse{Count: len(boards)})
}

// CreateList godoc
// @Summary Append a list to a board
// @Tags boards
// @Accept json
// @Produce json
// @Param id path string true "Board ID"
// @Param request body ports.CreateListRequest true "List data"
// @Success 201 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /boards/{id}/lists [post]
func (h *BoardHandler) CreateList(c echo.Context) error {
	var req ports.CreateListRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	list, err := h.boards.CreateList(c.Request().Context(), c.Param("id"), req.Title)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusCreated, list)
}

// UpdateList godoc
// @Summary Update a list
// @Tags boards
// @Accept json
// @Produce json
// @Param id path string true "List ID"
// @Param request body ports.UpdateListRequest true "Changed fields"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /lists/{id} [put]
func (h *BoardHandler) UpdateList(c echo.Context) error {
	var req ports.UpdateListRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	list, err := h.boards.UpdateList(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, list)
}

// DeleteList godoc
// @Summary Delete a list and its cards
// @Tags boards
// @Produce json
// @Param id path string true "List ID"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /lists/{id} [delete]
func (h *BoardHandler) DeleteList(c echo.Context) error {
	if err := h.boards.DeleteList(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, nil)
}

// CreateCard godoc
// @Summary Append a card to a list
// @Tags boards
// @Accept json
// @Produce json
// @Param id path string true "List ID"
// @Param request body ports.CreateCardRequest true "Card data"
// @Success 201 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /lists/{id}/cards [post]
func (h *BoardHandler) CreateCard(c echo.Context) error {
	var req ports.CreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	card, err := h.boards.CreateCard(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusCreated, card)
}

// UpdateCard godoc
// @Summary Update a card
// @Tags boards
// @Accept json
// @Produce json
// @Param id path string true "Card ID"
// @Param request body ports.UpdateCardRequest true "Changed fields"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /cards/{id} [put]
func (h *BoardHandler) UpdateCard(c echo.Context) error {
	var req ports.UpdateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	card, err := h.boards.UpdateCard(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, card)
}

// DeleteCard godoc
// @Summary Delete a card
// @Tags boards
// @Produce json
// @Param id path string true "Card ID"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /cards/{id} [delete]
func (h *BoardHandler) DeleteCard(c echo.Context) error {
	if err := h.boards.DeleteCard(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, nil)
}

// MoveCard godoc
// @Summary Move a card to a list and position
// @Description The position is clamped to the target list.
// @Tags boards
// @Accept json
// @Produce json
// @Param id path string true "Card ID"
// @Param request body ports.MoveCardRequest true "Target"
// @Success 200 {object} BoardResult
// @Failure 404 {object} BoardResult
// @Router /cards/{id}/move [post]
func (h *BoardHandler) MoveCard(c echo.Context) error {
	var req ports.MoveCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	card, err := h.boards.MoveCard(c.Request().Context(), c.Param("id"), req.TargetListID, req.Position)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, http.StatusOK, card)
}
