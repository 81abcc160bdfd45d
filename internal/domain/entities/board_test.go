package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cards(n int) []Card {
	out := make([]Card, n)
	for i := range out {
		out[i] = Card{ID: string(rune('a' + i)), Position: i}
	}
	return out
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name  string
		board Board
		want  BoardProgress
	}{
		{
			name:  "empty board",
			board: Board{ID: "b", Title: "Empty"},
			want:  BoardProgress{BoardID: "b", BoardTitle: "Empty"},
		},
		{
			name: "named lists",
			board: Board{ID: "b", Title: "Project", Lists: []List{
				{Title: "待办事项", Position: 0, Cards: cards(5)},
				{Title: "进行中", Position: 1, Cards: cards(2)},
				{Title: "已完成", Position: 2, Cards: cards(3)},
			}},
			want: BoardProgress{BoardID: "b", BoardTitle: "Project", TotalTasks: 10, CompletedTasks: 3, InProgressTasks: 2, TodoTasks: 5, Percentage: 30},
		},
		{
			name: "last position counts as completed",
			board: Board{ID: "b", Lists: []List{
				{Title: "Backlog", Position: 0, Cards: cards(1)},
				{Title: "Doing", Position: 1, Cards: cards(1)},
				{Title: "Shipped", Position: 2, Cards: cards(1)},
			}},
			want: BoardProgress{BoardID: "b", TotalTasks: 3, CompletedTasks: 1, InProgressTasks: 1, TodoTasks: 1, Percentage: 33},
		},
		{
			name: "first match wins",
			board: Board{ID: "b", Lists: []List{
				{Title: "Done early", Position: 0, Cards: cards(2)},
				{Title: "Done late", Position: 1, Cards: cards(1)},
			}},
			want: BoardProgress{BoardID: "b", TotalTasks: 3, CompletedTasks: 2, TodoTasks: 1, Percentage: 67},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeProgress(tt.board))
		})
	}
}

func TestBoardCloneIsIndependent(t *testing.T) {
	b := Board{Lists: []List{{Cards: []Card{{ID: "c", Labels: []Label{{ID: "label-1"}}}}}}}
	c := b.Clone()
	c.Lists[0].Cards[0].Labels[0].ID = "changed"
	c.Lists[0].Title = "changed"

	assert.Equal(t, "label-1", b.Lists[0].Cards[0].Labels[0].ID)
	assert.Empty(t, b.Lists[0].Title)
}

func TestPredefinedLabels(t *testing.T) {
	labels := PredefinedLabels()
	assert.Len(t, labels, 10)
	labels[0].Name = "mutated"

	l, ok := LabelByID("label-1")
	assert.True(t, ok)
	assert.Equal(t, "紧急", l.Name)
	assert.Equal(t, "#eb5a46", l.Color)
}
