package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// TodoHandler serves the todo store.
type TodoHandler struct {
	todos  *services.TodoService
	logger *logger.Logger
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(todos *services.TodoService, logger *logger.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, logger: logger}
}

// ListTodos godoc
// @Summary List todos
// @Tags todos
// @Produce json
// @Param filter query string false "all, active or completed"
// @Param q query string false "Keyword"
// @Success 200 {array} entities.Todo
// @Router /todos [get]
func (h *TodoHandler) ListTodos(c echo.Context) error {
	var filter ports.TodoFilter
	if err := c.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query")
	}
	return c.JSON(http.StatusOK, h.todos.List(filter))
}

// CreateTodo godoc
// @Summary Create a todo
// @Tags todos
// @Accept json
// @Produce json
// @Param request body ports.CreateTodoRequest true "Todo data"
// @Success 201 {object} entities.Todo
// @Failure 400 {object} ErrorResponse
// @Router /todos [post]
func (h *TodoHandler) CreateTodo(c echo.Context) error {
	var req ports.CreateTodoRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	todo, err := h.todos.Add(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, todo)
}

// GetTodo godoc
// @Summary Get a todo
// @Tags todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} entities.Todo
// @Failure 404 {object} ErrorResponse
// @Router /todos/{id} [get]
func (h *TodoHandler) GetTodo(c echo.Context) error {
	todo := h.todos.Get(c.Param("id"))
	if todo == nil {
		return notFound("todo", c.Param("id"))
	}
	return c.JSON(http.StatusOK, todo)
}

// UpdateTodo godoc
// @Summary Update a todo
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param request body ports.UpdateTodoRequest true "Changed fields"
// @Success 200 {object} entities.Todo
// @Failure 404 {object} ErrorResponse
// @Router /todos/{id} [put]
func (h *TodoHandler) UpdateTodo(c echo.Context) error {
	var req ports.UpdateTodoRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	todo, err := h.todos.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	if todo == nil {
		return notFound("todo", c.Param("id"))
	}
	return c.JSON(http.StatusOK, todo)
}

// ToggleTodo godoc
// @Summary Flip a todo's completion flag
// @Tags todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} entities.Todo
// @Failure 404 {object} ErrorResponse
// @Router /todos/{id}/toggle [post]
func (h *TodoHandler) ToggleTodo(c echo.Context) error {
	todo, err := h.todos.Toggle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if todo == nil {
		return notFound("todo", c.Param("id"))
	}
	return c.JSON(http.StatusOK, todo)
}

// DeleteTodo godoc
// @Summary Delete a todo
// @Tags todos
// @Param id path string true "Todo ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /todos/{id} [delete]
func (h *TodoHandler) DeleteTodo(c echo.Context) error {
	todo, err := h.todos.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if todo == nil {
		return notFound("todo", c.Param("id"))
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearCompleted godoc
// @Summary Remove completed todos
// @Tags todos
// @Produce json
// @Success 200 {object} CountResponse
// @Router /todos/completed [delete]
func (h *TodoHandler) ClearCompleted(c echo.Context) error {
	n, err := h.todos.ClearCompleted(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}

// TodoStats godoc
// @Summary Todo statistics
// @Tags todos
// @Produce json
// @Success 200 {object} entities.TodoStats
// @Router /todos/stats [get]
func (h *TodoHandler) TodoStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.todos.Stats())
}

// UpcomingTodos godoc
// @Summary Open todos due within three days, overdue included
// @Tags todos
// @Produce json
// @Success 200 {array} entities.Todo
// @Router /todos/upcoming [get]
func (h *TodoHandler) UpcomingTodos(c echo.Context) error {
	return c.JSON(http.StatusOK, h.todos.Upcoming())
}

// ExportTodos godoc
// @Summary Export todos
// @Tags todos
// @Produce json
// @Success 200 {object} services.TodosExport
// @Router /todos/export [get]
func (h *TodoHandler) ExportTodos(c echo.Context) error {
	return c.JSON(http.StatusOK, h.todos.Export())
}

// ImportTodos godoc
// @Summary Import todos
// @Tags todos
// @Accept json
// @Produce json
// @Success 200 {object} CountResponse
// @Failure 400 {object} ErrorResponse
// @Router /todos/import [post]
func (h *TodoHandler) ImportTodos(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	n, err := h.todos.Import(c.Request().Context(), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: n})
}
