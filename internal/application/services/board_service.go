package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// Lookup failures reported by BoardService. Each unwraps to entities.ErrNotFound.
var (
	ErrBoardNotFound      error = lookupError("board not found")
	ErrListNotFound       error = lookupError("list not found")
	ErrCardNotFound       error = lookupError("card not found")
	ErrTargetListNotFound error = lookupError("target list not found")
)

type lookupError string

func (e lookupError) Error() string { return string(e) }
func (e lookupError) Unwrap() error { return entities.ErrNotFound }

// BoardService owns the board hierarchy. Cards and lists are found through a
// reverse index that is kept current by every structural mutation.
type BoardService struct {
	mu           sync.RWMutex
	boards       []entities.Board
	currentBoard string
	lastError    string

	cardList  map[string]string
	listBoard map[string]string

	slot   slot[[]entities.Board]
	events ports.EventPublisher
	logger *logger.Logger
	opts   options
}

// NewBoardService creates an empty service. Call Restore to load durable state.
func NewBoardService(kv ports.KVStore, events ports.EventPublisher, log *logger.Logger, opts ...Option) *BoardService {
	o := buildOptions(opts)
	log = log.WithComponent("boards")
	return &BoardService{
		cardList:  make(map[string]string),
		listBoard: make(map[string]string),
		slot:      newSlot[[]entities.Board](kv, ports.KeyBoards, log, o.metrics),
		events:    events,
		logger:    log,
		opts:      o,
	}
}

// Restore loads the boards. An absent slot is seeded with the sample board;
// an unreadable one starts empty.
func (s *BoardService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	boards, found, err := s.slot.load(ctx)
	var corrupt *corruptError
	switch {
	case err != nil && !errors.As(err, &corrupt):
		return err
	case corrupt != nil:
		s.logger.Warnw("Stored boards unreadable, starting empty", "error", corrupt.Error())
		s.boards = []entities.Board{}
		s.rebuildIndexLocked()
		s.publishLocked(ctx)
		return nil
	case found:
		if boards == nil {
			boards = []entities.Board{}
		}
		s.boards = boards
		s.rebuildIndexLocked()
		s.logger.Infow("Boards restored", "count", len(boards))
		s.publishLocked(ctx)
		return nil
	default:
		s.boards = []entities.Board{}
		if s.opts.seedSamples {
			s.boards = append(s.boards, sampleBoard(s.opts.clock(), s.opts.newID))
		}
	}

	s.rebuildIndexLocked()
	return s.commitLocked(ctx)
}

// Persist writes every board.
func (s *BoardService) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slot.save(ctx, s.boards)
}

// Boards returns copies of every board in creation order.
func (s *BoardService) Boards() []entities.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBoards(s.boards)
}

// Snapshot is Boards under the name the calendar sync expects.
func (s *BoardService) Snapshot() []entities.Board {
	return s.Boards()
}

// CreateBoard appends an empty board owned by the single local user.
func (s *BoardService) CreateBoard(ctx context.Context, title string) (*entities.Board, error) {
	if err := recordValidator.Struct(ports.CreateBoardRequest{Title: title}); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	board := entities.Board{
		ID:        s.opts.newID(),
		Title:     title,
		UserID:    1,
		CreatedAt: s.opts.clock(),
		Lists:     []entities.List{},
	}
	s.boards = append(s.boards, board)

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &board, nil
}

// SelectBoard makes id the current board and returns it.
func (s *BoardService) SelectBoard(id string) (*entities.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	b := s.boardLocked(id)
	if b == nil {
		return nil, s.failLocked(ErrBoardNotFound)
	}
	s.currentBoard = id
	return ptr(b.Clone()), nil
}

// CurrentBoard returns the selected board, or nil.
func (s *BoardService) CurrentBoard() *entities.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b := s.boardLocked(s.currentBoard); b != nil {
		return ptr(b.Clone())
	}
	return nil
}

// CreateList appends a list to the board.
func (s *BoardService) CreateList(ctx context.Context, boardID, title string) (*entities.List, error) {
	if err := recordValidator.Struct(ports.CreateListRequest{Title: title}); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	b := s.boardLocked(boardID)
	if b == nil {
		return nil, s.failLocked(ErrBoardNotFound)
	}
	list := entities.List{
		ID:        s.opts.newID(),
		Title:     title,
		BoardID:   b.ID,
		Position:  len(b.Lists),
		CreatedAt: s.opts.clock(),
		Cards:     []entities.Card{},
	}
	b.Lists = append(b.Lists, list)
	s.listBoard[list.ID] = b.ID

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &list, nil
}

// UpdateList renames a list.
func (s *BoardService) UpdateList(ctx context.Context, listID string, req ports.UpdateListRequest) (*entities.List, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	b, li := s.listLocked(listID)
	if b == nil {
		return nil, s.failLocked(ErrListNotFound)
	}
	if req.Title != nil {
		b.Lists[li].Title = *req.Title
	}
	b.ReindexLists()
	updated := b.Lists[li]

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteList removes a list with its cards and closes the gap in positions.
func (s *BoardService) DeleteList(ctx context.Context, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	b, li := s.listLocked(listID)
	if b == nil {
		return s.failLocked(ErrListNotFound)
	}
	for _, c := range b.Lists[li].Cards {
		delete(s.cardList, c.ID)
	}
	delete(s.listBoard, listID)
	b.Lists = append(b.Lists[:li], b.Lists[li+1:]...)
	b.ReindexLists()

	return s.commitLocked(ctx)
}

// CreateCard appends a card to the list.
func (s *BoardService) CreateCard(ctx context.Context, listID string, req ports.CreateCardRequest) (*entities.Card, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	b, li := s.listLocked(listID)
	if b == nil {
		return nil, s.failLocked(ErrListNotFound)
	}
	l := &b.Lists[li]
	labels := req.Labels
	if labels == nil {
		labels = []entities.Label{}
	}
	card := entities.Card{
		ID:          s.opts.newID(),
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Labels:      labels,
		ListID:      l.ID,
		Position:    len(l.Cards),
		CreatedAt:   s.opts.clock(),
	}
	l.Cards = append(l.Cards, card)
	s.cardList[card.ID] = l.ID

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard merges the non-nil fields of req.
func (s *BoardService) UpdateCard(ctx context.Context, cardID string, req ports.UpdateCardRequest) (*entities.Card, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	l, ci := s.cardLocked(cardID)
	if l == nil {
		return nil, s.failLocked(ErrCardNotFound)
	}
	c := &l.Cards[ci]
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.DueDate != nil {
		c.DueDate = *req.DueDate
	}
	if req.Priority != nil {
		c.Priority = *req.Priority
	}
	if req.Labels != nil {
		c.Labels = append([]entities.Label{}, (*req.Labels)...)
	}
	updated := *c

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCard removes a card and closes the gap in its list.
func (s *BoardService) DeleteCard(ctx context.Context, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	l, ci := s.cardLocked(cardID)
	if l == nil {
		return s.failLocked(ErrCardNotFound)
	}
	l.Cards = append(l.Cards[:ci], l.Cards[ci+1:]...)
	l.ReindexCards()
	delete(s.cardList, cardID)

	return s.commitLocked(ctx)
}

// MoveCard moves a card into targetListID at position, clamped to the
// target's bounds. Both lists end up densely positioned.
func (s *BoardService) MoveCard(ctx context.Context, cardID, targetListID string, position int) (*entities.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""

	src, ci := s.cardLocked(cardID)
	if src == nil {
		return nil, s.failLocked(ErrCardNotFound)
	}
	tb, ti := s.listLocked(targetListID)
	if tb == nil {
		return nil, s.failLocked(ErrTargetListNotFound)
	}
	dst := &tb.Lists[ti]

	card := src.Cards[ci]
	src.Cards = append(src.Cards[:ci], src.Cards[ci+1:]...)

	if position < 0 {
		position = 0
	}
	if position > len(dst.Cards) {
		position = len(dst.Cards)
	}
	card.ListID = dst.ID
	dst.Cards = append(dst.Cards, entities.Card{})
	copy(dst.Cards[position+1:], dst.Cards[position:])
	dst.Cards[position] = card

	dst.ReindexCards()
	if src != dst {
		src.ReindexCards()
	}
	s.cardList[cardID] = dst.ID
	moved := dst.Cards[position]

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &moved, nil
}

// Progress computes completion for boardID, or the current board when empty.
func (s *BoardService) Progress(boardID string) (entities.BoardProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if boardID == "" {
		boardID = s.currentBoard
	}
	b := s.boardLocked(boardID)
	if b == nil {
		return entities.BoardProgress{}, s.failLocked(ErrBoardNotFound)
	}
	return entities.ComputeProgress(*b), nil
}

// AllProgress computes completion for every board.
func (s *BoardService) AllProgress() []entities.BoardProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.BoardProgress, len(s.boards))
	for i, b := range s.boards {
		out[i] = entities.ComputeProgress(b)
	}
	return out
}

// PredefinedLabels returns the built-in label palette.
func (s *BoardService) PredefinedLabels() []entities.Label {
	return entities.PredefinedLabels()
}

// LastError is the message of the most recent failed operation.
func (s *BoardService) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError resets LastError.
func (s *BoardService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// Import replaces every board and rebuilds the index.
func (s *BoardService) Import(ctx context.Context, boards []entities.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.boards = cloneBoards(boards)
	s.currentBoard = ""
	s.rebuildIndexLocked()
	return s.commitLocked(ctx)
}

func (s *BoardService) failLocked(err error) error {
	s.lastError = err.Error()
	return err
}

func (s *BoardService) boardLocked(id string) *entities.Board {
	if id == "" {
		return nil
	}
	for i := range s.boards {
		if s.boards[i].ID == id {
			return &s.boards[i]
		}
	}
	return nil
}

// listLocked resolves a list through the index to its board and slice index.
func (s *BoardService) listLocked(listID string) (*entities.Board, int) {
	boardID, ok := s.listBoard[listID]
	if !ok {
		return nil, -1
	}
	b := s.boardLocked(boardID)
	if b == nil {
		return nil, -1
	}
	for i := range b.Lists {
		if b.Lists[i].ID == listID {
			return b, i
		}
	}
	return nil, -1
}

// cardLocked resolves a card through the index to its list and slice index.
func (s *BoardService) cardLocked(cardID string) (*entities.List, int) {
	listID, ok := s.cardList[cardID]
	if !ok {
		return nil, -1
	}
	b, li := s.listLocked(listID)
	if b == nil {
		return nil, -1
	}
	l := &b.Lists[li]
	for i := range l.Cards {
		if l.Cards[i].ID == cardID {
			return l, i
		}
	}
	return nil, -1
}

func (s *BoardService) rebuildIndexLocked() {
	s.cardList = make(map[string]string)
	s.listBoard = make(map[string]string)
	for _, b := range s.boards {
		for _, l := range b.Lists {
			s.listBoard[l.ID] = b.ID
			for _, c := range l.Cards {
				s.cardList[c.ID] = l.ID
			}
		}
	}
}

func (s *BoardService) commitLocked(ctx context.Context) error {
	if err := s.slot.save(ctx, s.boards); err != nil {
		s.lastError = err.Error()
		return err
	}
	s.publishLocked(ctx)
	return nil
}

func (s *BoardService) publishLocked(ctx context.Context) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, ports.Event{
		Topic:      ports.TopicBoardsChanged,
		Payload:    ports.BoardsChanged{Boards: cloneBoards(s.boards)},
		OccurredAt: s.opts.now(),
	})
}

func cloneBoards(in []entities.Board) []entities.Board {
	out := make([]entities.Board, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
