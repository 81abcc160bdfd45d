package ports

import "github.com/keladiary/core/internal/domain/entities"

// Notes

type CreateNoteRequest struct {
	Title     string   `json:"title" validate:"required,max=200"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags" validate:"omitempty,dive,max=50"`
	TextColor string   `json:"textColor" validate:"omitempty,max=32"`
}

type UpdateNoteRequest struct {
	Title     *string   `json:"title" validate:"omitempty,max=200"`
	Content   *string   `json:"content"`
	Tags      *[]string `json:"tags"`
	TextColor *string   `json:"textColor" validate:"omitempty,max=32"`
}

type NoteFilter struct {
	Tag     string `query:"tag"`
	Keyword string `query:"q"`
}

// Todos

type CreateTodoRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=2000"`
	Priority    entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     string            `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Completed   bool              `json:"completed"`
}

type UpdateTodoRequest struct {
	Title       *string            `json:"title" validate:"omitempty,max=200"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	Priority    *entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string            `json:"dueDate"`
	Completed   *bool              `json:"completed"`
}

type TodoFilter struct {
	Status  entities.TodoFilter `query:"filter"`
	Keyword string              `query:"q"`
}

// Boards

type CreateBoardRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type CreateListRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type UpdateListRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
}

type CreateCardRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=2000"`
	DueDate     string            `json:"due_date"`
	Priority    entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Labels      []entities.Label  `json:"labels"`
}

type UpdateCardRequest struct {
	Title       *string            `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string            `json:"due_date"`
	Priority    *entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Labels      *[]entities.Label  `json:"labels"`
}

type MoveCardRequest struct {
	TargetListID string `json:"target_list_id" validate:"required"`
	Position     int    `json:"position" validate:"min=0"`
}

// Calendar

type CreateEventRequest struct {
	Title       string             `json:"title" validate:"max=200"`
	Description string             `json:"description" validate:"max=2000"`
	StartDate   *string            `json:"startDate"`
	EndDate     *string            `json:"endDate"`
	Priority    entities.Priority  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Color       string             `json:"color" validate:"omitempty,max=32"`
	Location    string             `json:"location" validate:"max=200"`
	Type        entities.EventType `json:"type" validate:"omitempty,oneof=custom note pomodoro"`
}

type UpdateEventRequest struct {
	Title       *string            `json:"title" validate:"omitempty,max=200"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	StartDate   *string            `json:"startDate"`
	EndDate     *string            `json:"endDate"`
	Priority    *entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Color       *string            `json:"color" validate:"omitempty,max=32"`
	Completed   *bool              `json:"completed"`
	Location    *string            `json:"location" validate:"omitempty,max=200"`
}

// Chat

type CreateSessionRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type SwitchModelRequest struct {
	Model string `json:"model" validate:"required"`
}

// ImportResult reports the outcome of a chat import.
type ImportResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Imported int    `json:"imported"`
}

// Auth

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User      entities.User `json:"user"`
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
}

// Themes

type CreateThemeRequest struct {
	BaseThemeID string `json:"baseThemeId" validate:"required"`
	Name        string `json:"name" validate:"required,max=50"`
}

type UpdateThemeRequest struct {
	Name            *string                        `json:"name" validate:"omitempty,max=50"`
	Primary         *string                        `json:"primary"`
	Secondary       *string                        `json:"secondary"`
	Background      *string                        `json:"background"`
	Surface         *string                        `json:"surface"`
	Text            *string                        `json:"text"`
	TextSecondary   *string                        `json:"textSecondary"`
	Border          *string                        `json:"border"`
	Shadow          *string                        `json:"shadow"`
	Gradient        *string                        `json:"gradient"`
	ParticleColor   *string                        `json:"particleColor"`
	BackgroundImage *entities.ThemeBackgroundImage `json:"backgroundImage"`
	Animation       *entities.ThemeAnimation       `json:"animation"`
	Effects         *entities.ThemeEffects         `json:"effects"`
}

type SetThemeRequest struct {
	ThemeID string `json:"themeId" validate:"required"`
}
