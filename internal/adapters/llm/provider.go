package llm

import (
	"context"
	"fmt"

	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// Observer receives the outcome of every completion call.
type Observer interface {
	ObserveCompletion(provider string, err error)
}

// New builds the completer selected by cfg.Provider. It returns nil without
// error when no provider is configured; chat sends then fail with
// ErrNotConfigured.
func New(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (ports.ChatCompleter, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "openrouter":
		if cfg.APIKey == "" {
			log.Warnw("No AI api key configured, chat is disabled", "provider", cfg.Provider)
			return nil, nil
		}
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			SiteURL:  cfg.SiteURL,
			SiteName: cfg.SiteName,
			Timeout:  cfg.Timeout,
		}, log), nil
	case "gemini":
		if cfg.APIKey == "" {
			log.Warnw("No AI api key configured, chat is disabled", "provider", cfg.Provider)
			return nil, nil
		}
		client, err := NewGeminiClient(ctx, cfg.APIKey, "", cfg.GeminiModel, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

type instrumented struct {
	next     ports.ChatCompleter
	provider string
	observer Observer
}

// Instrument reports every call made through next to observer.
func Instrument(next ports.ChatCompleter, provider string, observer Observer) ports.ChatCompleter {
	if next == nil || observer == nil {
		return next
	}
	return &instrumented{next: next, provider: provider, observer: observer}
}

func (i *instrumented) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	resp, err := i.next.Complete(ctx, req)
	i.observer.ObserveCompletion(i.provider, err)
	return resp, err
}

func (i *instrumented) Stream(ctx context.Context, req ports.CompletionRequest, onChunk func(string)) error {
	err := i.next.Stream(ctx, req, onChunk)
	i.observer.ObserveCompletion(i.provider, err)
	return err
}
