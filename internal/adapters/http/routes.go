package http

import "github.com/labstack/echo/v4"

// Handlers groups every API handler for route registration.
type Handlers struct {
	Auth     *AuthHandler
	Notes    *NoteHandler
	Todos    *TodoHandler
	Boards   *BoardHandler
	Calendar *CalendarHandler
	Chat     *ChatHandler
	Themes   *ThemeHandler
}

// Register mounts the API under api. Routes other than login and register
// run behind protected, which may be nil.
func (h *Handlers) Register(api *echo.Group, protected ...echo.MiddlewareFunc) {
	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", h.Auth.Logout, protected...)
	auth.GET("/me", h.Auth.Me, protected...)

	g := api.Group("", protected...)

	notes := g.Group("/notes")
	notes.GET("", h.Notes.ListNotes)
	notes.POST("", h.Notes.CreateNote)
	notes.GET("/stats", h.Notes.NoteStats)
	notes.GET("/tags", h.Notes.NoteTags)
	notes.GET("/export", h.Notes.ExportNotes)
	notes.POST("/import", h.Notes.ImportNotes)
	notes.GET("/:id", h.Notes.GetNote)
	notes.PUT("/:id", h.Notes.UpdateNote)
	notes.DELETE("/:id", h.Notes.DeleteNote)

	todos := g.Group("/todos")
	todos.GET("", h.Todos.ListTodos)
	todos.POST("", h.Todos.CreateTodo)
	todos.GET("/stats", h.Todos.TodoStats)
	todos.GET("/upcoming", h.Todos.UpcomingTodos)
	todos.GET("/export", h.Todos.ExportTodos)
	todos.POST("/import", h.Todos.ImportTodos)
	todos.DELETE("/completed", h.Todos.ClearCompleted)
	todos.GET("/:id", h.Todos.GetTodo)
	todos.PUT("/:id", h.Todos.UpdateTodo)
	todos.POST("/:id/toggle", h.Todos.ToggleTodo)
	todos.DELETE("/:id", h.Todos.DeleteTodo)

	boards := g.Group("/boards")
	boards.GET("", h.Boards.ListBoards)
	boards.POST("", h.Boards.CreateBoard)
	boards.GET("/current", h.Boards.CurrentBoard)
	boards.GET("/progress", h.Boards.AllProgress)
	boards.GET("/labels", h.Boards.Labels)
	boards.GET("/error", h.Boards.LastError)
	boards.DELETE("/error", h.Boards.ClearError)
	boards.POST("/import", h.Boards.ImportBoards)
	boards.GET("/:id", h.Boards.SelectBoard)
	boards.GET("/:id/progress", h.Boards.BoardProgress)
	boards.POST("/:id/lists", h.Boards.CreateList)
	g.PUT("/lists/:id", h.Boards.UpdateList)
	g.DELETE("/lists/:id", h.Boards.DeleteList)
	g.POST("/lists/:id/cards", h.Boards.CreateCard)
	g.PUT("/cards/:id", h.Boards.UpdateCard)
	g.DELETE("/cards/:id", h.Boards.DeleteCard)
	g.POST("/cards/:id/move", h.Boards.MoveCard)

	cal := g.Group("/calendar")
	cal.GET("/events", h.Calendar.ListEvents)
	cal.POST("/events", h.Calendar.CreateEvent)
	cal.GET("/events/period", h.Calendar.PeriodEvents)
	cal.GET("/events/by-date", h.Calendar.EventsByDate)
	cal.GET("/events/today", h.Calendar.TodayEvents)
	cal.GET("/events/upcoming", h.Calendar.UpcomingEvents)
	cal.GET("/events/:id", h.Calendar.GetEvent)
	cal.PUT("/events/:id", h.Calendar.UpdateEvent)
	cal.DELETE("/events/:id", h.Calendar.DeleteEvent)
	cal.GET("/days/:date", h.Calendar.DayEvents)
	cal.GET("/months/:year/:month", h.Calendar.MonthGrid)
	cal.POST("/sync", h.Calendar.Sync)
	cal.GET("/state", h.Calendar.State)
	cal.POST("/navigate", h.Calendar.Navigate)
	cal.PUT("/view", h.Calendar.ChangeView)
	cal.PUT("/selected", h.Calendar.SelectDate)
	cal.DELETE("/error", h.Calendar.ClearError)

	chat := g.Group("/chat")
	chat.GET("/sessions", h.Chat.ListSessions)
	chat.POST("/sessions", h.Chat.CreateSession)
	chat.DELETE("/sessions", h.Chat.ClearAll)
	chat.GET("/sessions/:id", h.Chat.GetSession)
	chat.DELETE("/sessions/:id", h.Chat.DeleteSession)
	chat.POST("/sessions/:id/switch", h.Chat.SwitchSession)
	chat.PUT("/sessions/:id/title", h.Chat.UpdateTitle)
	chat.GET("/sessions/:id/export", h.Chat.ExportSession)
	chat.GET("/current", h.Chat.CurrentSession)
	chat.PUT("/model", h.Chat.SwitchModel)
	chat.GET("/models", h.Chat.Models)
	chat.GET("/state", h.Chat.State)
	chat.DELETE("/error", h.Chat.ClearError)
	chat.POST("/messages", h.Chat.SendMessage)
	chat.POST("/messages/stream", h.Chat.StreamMessage)
	chat.GET("/export", h.Chat.ExportSessions)
	chat.POST("/import", h.Chat.ImportSessions)
	chat.GET("/backups", h.Chat.ListBackups)
	chat.POST("/backups", h.Chat.CreateBackup)
	chat.DELETE("/backups/:key", h.Chat.DeleteBackup)
	chat.POST("/backups/:key/restore", h.Chat.RestoreBackup)

	themes := g.Group("/themes")
	themes.GET("", h.Themes.ListThemes)
	themes.POST("", h.Themes.CreateCustom)
	themes.GET("/current", h.Themes.CurrentTheme)
	themes.PUT("/current", h.Themes.SetTheme)
	themes.GET("/current/css", h.Themes.CSSVariables)
	themes.PUT("/:id", h.Themes.UpdateTheme)
	themes.DELETE("/:id", h.Themes.DeleteTheme)
	themes.POST("/:id/reset", h.Themes.ResetTheme)
}
