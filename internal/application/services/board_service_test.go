package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

func newBoardService(t *testing.T, pub ports.EventPublisher, opts ...Option) *BoardService {
	t.Helper()
	s := NewBoardService(repository.NewMemoryKVStore(), pub, logger.NewNop(), testOptions(newFakeClock(), opts...)...)
	require.NoError(t, s.Restore(context.Background()))
	return s
}

func assertDense(t *testing.T, b entities.Board) {
	t.Helper()
	for i, l := range b.Lists {
		assert.Equal(t, i, l.Position, "list %s position", l.Title)
		assert.Equal(t, b.ID, l.BoardID)
		for j, c := range l.Cards {
			assert.Equal(t, j, c.Position, "card %s position", c.Title)
			assert.Equal(t, l.ID, c.ListID, "card %s list", c.Title)
		}
	}
}

func cardTitles(l entities.List) []string {
	out := []string{}
	for _, c := range l.Cards {
		out = append(out, c.Title)
	}
	return out
}

func TestBoardService_SampleBoard(t *testing.T) {
	s := newBoardService(t, nil)

	boards := s.Boards()
	require.Len(t, boards, 1)
	b := boards[0]
	assert.Equal(t, "我的第一个项目", b.Title)
	assert.EqualValues(t, 1, b.UserID)
	require.Len(t, b.Lists, 3)
	assert.Equal(t, []string{"设计用户界面", "实现后端API"}, cardTitles(b.Lists[0]))
	assertDense(t, b)

	p, err := s.Progress(b.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BoardProgress{
		BoardID: b.ID, BoardTitle: b.Title,
		TotalTasks: 4, CompletedTasks: 1, InProgressTasks: 1, TodoTasks: 2, Percentage: 25,
	}, p)
}

func TestBoardService_ListAndCardLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := newBoardService(t, rec, WithSampleData(false))

	board, err := s.CreateBoard(ctx, "Launch")
	require.NoError(t, err)
	todo, err := s.CreateList(ctx, board.ID, "Todo")
	require.NoError(t, err)
	done, err := s.CreateList(ctx, board.ID, "Done")
	require.NoError(t, err)
	assert.Equal(t, 1, done.Position)

	label, _ := entities.LabelByID("label-1")
	a, err := s.CreateCard(ctx, todo.ID, ports.CreateCardRequest{Title: "A", Labels: []entities.Label{label}})
	require.NoError(t, err)
	b, err := s.CreateCard(ctx, todo.ID, ports.CreateCardRequest{Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Position)
	assert.NotNil(t, b.Labels)

	due := "2024-05-20"
	updated, err := s.UpdateCard(ctx, a.ID, ports.UpdateCardRequest{DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, due, updated.DueDate)
	assert.Equal(t, "A", updated.Title)

	require.NoError(t, s.DeleteCard(ctx, a.ID))
	cur, err := s.SelectBoard(board.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, cardTitles(cur.Lists[0]))
	assertDense(t, *cur)

	require.NoError(t, s.DeleteList(ctx, todo.ID))
	cur = s.CurrentBoard()
	require.Len(t, cur.Lists, 1)
	assert.Equal(t, 0, cur.Lists[0].Position)

	_, err = s.UpdateCard(ctx, b.ID, ports.UpdateCardRequest{DueDate: &due})
	assert.ErrorIs(t, err, ErrCardNotFound, "cards of a deleted list leave the index")

	last := rec.last().Payload.(ports.BoardsChanged)
	require.Len(t, last.Boards, 1)
	assert.Len(t, last.Boards[0].Lists, 1)
}

func TestBoardService_MoveCard(t *testing.T) {
	ctx := context.Background()
	s := newBoardService(t, nil)
	b := s.Boards()[0]
	todo, doing, done := b.Lists[0], b.Lists[1], b.Lists[2]
	design := todo.Cards[0]

	moved, err := s.MoveCard(ctx, design.ID, done.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, done.ID, moved.ListID)
	assert.Equal(t, 0, moved.Position)

	after := s.Boards()[0]
	assert.Equal(t, []string{"实现后端API"}, cardTitles(after.Lists[0]))
	assert.Equal(t, []string{"设计用户界面", "项目初始化"}, cardTitles(after.Lists[2]))
	assertDense(t, after)

	moved, err = s.MoveCard(ctx, design.ID, doing.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Position, "position is clamped")
	assertDense(t, s.Boards()[0])

	moved, err = s.MoveCard(ctx, design.ID, doing.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, moved.Position)
	after = s.Boards()[0]
	assert.Equal(t, []string{"设计用户界面", "数据库设计"}, cardTitles(after.Lists[1]))
	assertDense(t, after)

	p, err := s.Progress(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.InProgressTasks)
	assert.Equal(t, 25, p.Percentage)
}

func TestBoardService_LookupErrors(t *testing.T) {
	ctx := context.Background()
	s := newBoardService(t, nil)
	card := s.Boards()[0].Lists[0].Cards[0]

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"select board", func() error { _, err := s.SelectBoard("x"); return err }, ErrBoardNotFound},
		{"progress", func() error { _, err := s.Progress("x"); return err }, ErrBoardNotFound},
		{"create list", func() error { _, err := s.CreateList(ctx, "x", "t"); return err }, ErrBoardNotFound},
		{"update list", func() error { _, err := s.UpdateList(ctx, "x", ports.UpdateListRequest{}); return err }, ErrListNotFound},
		{"delete list", func() error { return s.DeleteList(ctx, "x") }, ErrListNotFound},
		{"create card", func() error { _, err := s.CreateCard(ctx, "x", ports.CreateCardRequest{Title: "t"}); return err }, ErrListNotFound},
		{"delete card", func() error { return s.DeleteCard(ctx, "x") }, ErrCardNotFound},
		{"move card", func() error { _, err := s.MoveCard(ctx, "x", "y", 0); return err }, ErrCardNotFound},
		{"move target", func() error { _, err := s.MoveCard(ctx, card.ID, "y", 0); return err }, ErrTargetListNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, entities.ErrNotFound)
			assert.Equal(t, tt.want.Error(), s.LastError())
		})
	}

	s.ClearError()
	assert.Empty(t, s.LastError())
	_, err := s.CreateBoard(ctx, "ok")
	require.NoError(t, err)
	assert.Empty(t, s.LastError())
}

func TestBoardService_RestoreRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	first := NewBoardService(kv, nil, logger.NewNop(), testOptions(newFakeClock())...)
	require.NoError(t, first.Restore(ctx))
	card := first.Boards()[0].Lists[1].Cards[0]

	second := NewBoardService(kv, nil, logger.NewNop(), testOptions(newFakeClock())...)
	require.NoError(t, second.Restore(ctx))
	title := "renamed"
	updated, err := second.UpdateCard(ctx, card.ID, ports.UpdateCardRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
}

func TestBoardService_AllProgressAndCorruptRestore(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	require.NoError(t, kv.Set(ctx, ports.KeyBoards, []byte("[{")))

	s := NewBoardService(kv, nil, logger.NewNop(), testOptions(newFakeClock())...)
	require.NoError(t, s.Restore(ctx))
	assert.Empty(t, s.Boards(), "unreadable boards start empty")
	assert.Empty(t, s.AllProgress())

	raw, _, err := kv.Get(ctx, ports.KeyBoards)
	require.NoError(t, err)
	assert.Equal(t, "[{", string(raw), "unreadable data is left in place")
}
