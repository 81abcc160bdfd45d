package server

import (
	"context"
	"fmt"
	"time"

	"github.com/keladiary/core/internal/adapters/gcal"
	"github.com/keladiary/core/internal/adapters/llm"
	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/events"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/infrastructure/metrics"
	"github.com/keladiary/core/internal/ports"
)

// App holds the stores and their collaborators, restored and wired together.
type App struct {
	Location *time.Location
	Bus      *events.Bus
	Store    ports.KVStore
	Metrics  *metrics.Registry

	Notes    *services.NoteService
	Todos    *services.TodoService
	Boards   *services.BoardService
	Calendar *services.CalendarService
	Chat     *services.ChatService
	Auth     *services.AuthService
	Themes   *services.ThemeService

	Completer ports.ChatCompleter
	Mirror    ports.CalendarMirror

	detach func()
}

// NewApp builds every service over kv and restores persisted state. reg may
// be nil when metrics are disabled.
func NewApp(ctx context.Context, cfg *config.Config, kv ports.KVStore, reg *metrics.Registry, log *logger.Logger) (*App, error) {
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLocation(loc),
		services.WithSampleData(cfg.App.SeedSamples),
	}
	if reg != nil {
		opts = append(opts, services.WithMetrics(reg))
	}

	completer, err := llm.New(ctx, cfg.AI, log.WithComponent("llm"))
	if err != nil {
		return nil, err
	}
	if reg != nil {
		completer = llm.Instrument(completer, cfg.AI.Provider, reg)
	}

	var mirror ports.CalendarMirror
	if cfg.Calendar.Google.Enabled {
		m, err := gcal.NewMirror(ctx, cfg.Calendar.Google, loc, log)
		if err != nil {
			return nil, err
		}
		mirror = m
	}

	bus := events.NewBus(log)
	app := &App{
		Location:  loc,
		Bus:       bus,
		Store:     kv,
		Metrics:   reg,
		Completer: completer,
		Mirror:    mirror,
	}
	app.Notes = services.NewNoteService(kv, bus, log, opts...)
	app.Todos = services.NewTodoService(kv, bus, log, opts...)
	app.Boards = services.NewBoardService(kv, bus, log, opts...)
	app.Calendar = services.NewCalendarService(app.Todos, app.Boards, mirror, log, opts...)
	app.Chat = services.NewChatService(kv, completer, log, services.ChatSettings{
		DefaultModel: cfg.AI.DefaultModel,
		Temperature:  cfg.AI.Temperature,
		MaxTokens:    cfg.AI.MaxTokens,
		BackupEvery:  cfg.Chat.BackupEvery,
		BackupRetain: cfg.Chat.BackupRetain,
	}, opts...)
	app.Auth = services.NewAuthService(kv, cfg.JWT, cfg.Security.BcryptCost, log, opts...)
	app.Themes = services.NewThemeService(kv, log, opts...)

	// The calendar subscribes before the stores restore so their first
	// change notifications are not missed.
	app.detach = app.Calendar.Attach(bus)

	for name, restore := range map[string]func(context.Context) error{
		"notes":  app.Notes.Restore,
		"todos":  app.Todos.Restore,
		"boards": app.Boards.Restore,
		"chat":   app.Chat.Restore,
		"auth":   app.Auth.Restore,
		"themes": app.Themes.Restore,
	} {
		if err := restore(ctx); err != nil {
			app.detach()
			return nil, fmt.Errorf("failed to restore %s: %w", name, err)
		}
	}
	app.Calendar.SyncAll(ctx)

	log.Infow("Application state restored",
		"notes", len(app.Notes.Snapshot()),
		"todos", len(app.Todos.Snapshot()),
		"boards", len(app.Boards.Snapshot()),
		"events", len(app.Calendar.Events()),
		"chat_enabled", completer != nil,
		"calendar_mirror", mirror != nil,
	)
	return app, nil
}

// RunWorkers runs background work until ctx ends.
func (a *App) RunWorkers(ctx context.Context) error {
	return a.Calendar.RunMirror(ctx)
}

// Close detaches event subscriptions and closes the store.
func (a *App) Close() error {
	if a.detach != nil {
		a.detach()
	}
	return a.Store.Close()
}
