package entities

import "time"

// Todo is an actionable item with an optional due date.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	DueDate     string    `json:"dueDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Matches reports whether keyword occurs in the title or description.
func (t Todo) Matches(keyword string) bool {
	if keyword == "" {
		return true
	}
	return ContainsFold(t.Title, keyword) || ContainsFold(t.Description, keyword)
}

// TodoFilter selects todos by completion state.
type TodoFilter string

const (
	TodoFilterAll       TodoFilter = "all"
	TodoFilterActive    TodoFilter = "active"
	TodoFilterCompleted TodoFilter = "completed"
)

// Accepts reports whether t passes the filter. Unknown filters accept everything.
func (f TodoFilter) Accepts(t Todo) bool {
	switch f {
	case TodoFilterActive:
		return !t.Completed
	case TodoFilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// TodoStats summarises the todo collection.
type TodoStats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Active         int `json:"active"`
	HighPriority   int `json:"highPriority"`
	ThisWeek       int `json:"thisWeek"`
	CompletionRate int `json:"completionRate"`
}
