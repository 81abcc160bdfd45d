package entities

import (
	"math"
	"strings"
	"time"
)

// Label is a coloured tag attached to cards.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Card is a task inside a list.
type Card struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	Priority    Priority  `json:"priority,omitempty"`
	Labels      []Label   `json:"labels"`
	ListID      string    `json:"list_id"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

// List is an ordered column of cards on a board.
type List struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	BoardID   string    `json:"board_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	Cards     []Card    `json:"cards"`
}

// Board is the root of the board hierarchy.
type Board struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Lists     []List    `json:"lists"`
}

// Clone deep-copies the board so snapshots never alias live state.
func (b Board) Clone() Board {
	lists := make([]List, len(b.Lists))
	for i, l := range b.Lists {
		cards := make([]Card, len(l.Cards))
		for j, c := range l.Cards {
			if c.Labels != nil {
				labels := make([]Label, len(c.Labels))
				copy(labels, c.Labels)
				c.Labels = labels
			}
			cards[j] = c
		}
		l.Cards = cards
		lists[i] = l
	}
	b.Lists = lists
	return b
}

// CardCount is the number of cards across all lists.
func (b Board) CardCount() int {
	n := 0
	for _, l := range b.Lists {
		n += len(l.Cards)
	}
	return n
}

// ReindexLists rewrites list positions to 0..n-1 in slice order.
func (b *Board) ReindexLists() {
	for i := range b.Lists {
		b.Lists[i].Position = i
	}
}

// ReindexCards rewrites card positions to 0..n-1 in slice order.
func (l *List) ReindexCards() {
	for i := range l.Cards {
		l.Cards[i].Position = i
	}
}

var predefinedLabels = []Label{
	{ID: "label-1", Name: "紧急", Color: "#eb5a46"},
	{ID: "label-2", Name: "重要", Color: "#f2d600"},
	{ID: "label-3", Name: "进行中", Color: "#61bd4f"},
	{ID: "label-4", Name: "待审核", Color: "#ff9f1a"},
	{ID: "label-5", Name: "已完成", Color: "#c377e0"},
	{ID: "label-6", Name: "设计", Color: "#0079bf"},
	{ID: "label-7", Name: "开发", Color: "#00c2e0"},
	{ID: "label-8", Name: "测试", Color: "#51e898"},
	{ID: "label-9", Name: "Bug", Color: "#ff78cb"},
	{ID: "label-10", Name: "功能", Color: "#344563"},
}

// PredefinedLabels returns a fresh copy of the built-in label palette.
func PredefinedLabels() []Label {
	out := make([]Label, len(predefinedLabels))
	copy(out, predefinedLabels)
	return out
}

// LabelByID looks up a predefined label.
func LabelByID(id string) (Label, bool) {
	for _, l := range predefinedLabels {
		if l.ID == id {
			return l, true
		}
	}
	return Label{}, false
}

// BoardProgress is the completion summary of a board.
type BoardProgress struct {
	BoardID         string `json:"boardId,omitempty"`
	BoardTitle      string `json:"boardTitle,omitempty"`
	TotalTasks      int    `json:"totalTasks"`
	CompletedTasks  int    `json:"completedTasks"`
	InProgressTasks int    `json:"inProgressTasks"`
	TodoTasks       int    `json:"todoTasks"`
	Percentage      int    `json:"percentage"`
}

var (
	completedListMarkers  = []string{"完成", "已完成", "Done"}
	inProgressListMarkers = []string{"进行中", "正在进行", "In Progress", "Doing"}
)

func titleContainsAny(title string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(title, m) {
			return true
		}
	}
	return false
}

// ComputeProgress applies the list-title heuristic: the completed list is the
// first list whose title carries a completion marker or which sits in the last
// position; the in-progress list is the first carrying an in-progress marker.
// Cards in neither count as todo.
func ComputeProgress(b Board) BoardProgress {
	p := BoardProgress{BoardID: b.ID, BoardTitle: b.Title}
	if len(b.Lists) == 0 {
		return p
	}

	last := len(b.Lists) - 1
	var completed, inProgress *List
	for i := range b.Lists {
		l := &b.Lists[i]
		if completed == nil && (titleContainsAny(l.Title, completedListMarkers) || l.Position == last) {
			completed = l
		}
		if inProgress == nil && titleContainsAny(l.Title, inProgressListMarkers) {
			inProgress = l
		}
	}

	p.TotalTasks = b.CardCount()
	if completed != nil {
		p.CompletedTasks = len(completed.Cards)
	}
	if inProgress != nil {
		p.InProgressTasks = len(inProgress.Cards)
	}
	p.TodoTasks = p.TotalTasks - p.CompletedTasks - p.InProgressTasks
	if p.TotalTasks > 0 {
		p.Percentage = int(math.Round(float64(p.CompletedTasks) / float64(p.TotalTasks) * 100))
	}
	return p
}
