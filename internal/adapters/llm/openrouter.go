package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

const maxResponseBytes = 10 * 1024 * 1024

// OpenRouterConfig configures an OpenRouterClient.
type OpenRouterConfig struct {
	APIKey   string
	BaseURL  string
	SiteURL  string
	SiteName string
	Timeout  time.Duration
}

// OpenRouterClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	siteURL    string
	siteName   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream"`
}

type openRouterResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message *openRouterMessage `json:"message,omitempty"`
		Delta   *openRouterMessage `json:"delta,omitempty"`
	} `json:"choices"`
	Usage *ports.Usage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenRouterClient creates a client. Requests are spaced at least 100ms
// apart.
func NewOpenRouterClient(cfg OpenRouterConfig, log *logger.Logger) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		siteURL:    cfg.SiteURL,
		siteName:   cfg.SiteName,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:     log.WithComponent("openrouter"),
	}
}

// Complete sends a non-streaming completion request.
func (c *OpenRouterClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body openRouterResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if body.Error != nil {
		return nil, &ports.CompletionError{StatusCode: resp.StatusCode, Message: body.Error.Message}
	}
	if len(body.Choices) == 0 {
		return nil, &ports.CompletionError{StatusCode: resp.StatusCode, Message: "response contained no choices"}
	}

	out := &ports.CompletionResponse{Model: body.Model, Usage: body.Usage}
	if out.Model == "" {
		out.Model = req.Model
	}
	if msg := body.Choices[0].Message; msg != nil {
		out.Message = msg.Content
	}

	c.logger.Debugw("Completion finished", "model", out.Model, "duration_ms", time.Since(start).Milliseconds(), "response_len", len(out.Message))
	return out, nil
}

// Stream sends a streaming completion request and calls onChunk for every
// non-empty content delta until the provider sends [DONE] or closes the
// stream. Malformed events are skipped.
func (c *OpenRouterClient) Stream(ctx context.Context, req ports.CompletionRequest, onChunk func(string)) error {
	start := time.Now()
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	chunks := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			c.logger.Debugw("Stream finished", "model", req.Model, "chunks", chunks, "duration_ms", time.Since(start).Milliseconds())
			return nil
		}

		var chunk openRouterResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return &ports.CompletionError{StatusCode: resp.StatusCode, Message: chunk.Error.Message}
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil && chunk.Choices[0].Delta.Content != "" {
			chunks++
			onChunk(chunk.Choices[0].Delta.Content)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

// ValidateAPIKey reports whether the provider accepts the configured key.
func (c *OpenRouterClient) ValidateAPIKey(ctx context.Context) bool {
	if c.apiKey == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode == http.StatusOK
}

func (c *OpenRouterClient) post(ctx context.Context, req ports.CompletionRequest, stream bool) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openrouter api key: %w", entities.ErrNotConfigured)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := openRouterRequest{
		Model:       req.Model,
		Messages:    make([]openRouterMessage, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	for i, m := range req.Messages {
		payload.Messages[i] = openRouterMessage{Role: string(m.Role), Content: m.Content}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		err := statusError(resp)
		c.logger.Warnw("Completion request rejected", "model", req.Model, "status", resp.StatusCode, "error", err.Message)
		return nil, err
	}
	return resp, nil
}

func (c *OpenRouterClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// statusError prefers the provider's error.message over the bare status line.
func statusError(resp *http.Response) *ports.CompletionError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	var parsed openRouterResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return &ports.CompletionError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	return &ports.CompletionError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("request failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
