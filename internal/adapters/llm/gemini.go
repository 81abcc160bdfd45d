package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// GeminiClient completes chats through the Gemini API.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
	logger       *logger.Logger
}

// NewGeminiClient creates a Gemini-backed completer. baseURL may be empty.
func NewGeminiClient(ctx context.Context, apiKey, baseURL, defaultModel string, log *logger.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key: %w", entities.ErrNotConfigured)
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		defaultModel: defaultModel,
		logger:       log.WithComponent("gemini"),
	}, nil
}

// Complete sends a non-streaming request.
func (c *GeminiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	start := time.Now()
	model := resolveGeminiModel(req.Model, c.defaultModel)
	contents, cfg := toGenai(req)

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, geminiError(err)
	}

	out := &ports.CompletionResponse{Message: resp.Text(), Model: model}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &ports.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	c.logger.Debugw("Completion finished", "model", model, "duration_ms", time.Since(start).Milliseconds(), "response_len", len(out.Message))
	return out, nil
}

// Stream sends a streaming request and forwards each text fragment.
func (c *GeminiClient) Stream(ctx context.Context, req ports.CompletionRequest, onChunk func(string)) error {
	model := resolveGeminiModel(req.Model, c.defaultModel)
	contents, cfg := toGenai(req)

	for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return geminiError(err)
		}
		if text := resp.Text(); text != "" {
			onChunk(text)
		}
	}
	return ctx.Err()
}

// resolveGeminiModel maps catalogue ids such as "google/gemini-2.5-pro" to
// native model names. Ids from other vendors fall back to the default.
func resolveGeminiModel(model, fallback string) string {
	switch {
	case model == "":
		return fallback
	case strings.HasPrefix(model, "google/"):
		return strings.TrimPrefix(model, "google/")
	case strings.Contains(model, "/"):
		return fallback
	default:
		return model
	}
}

// toGenai converts a provider-neutral request. System messages are joined
// into the system instruction; assistant turns become model turns.
func toGenai(req ports.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case entities.RoleSystem:
			system = append(system, m.Content)
		case entities.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ports.CompletionError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
