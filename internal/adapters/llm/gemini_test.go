package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

func TestResolveGeminiModel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "gemini-2.5-flash"},
		{"google/gemini-2.5-pro", "gemini-2.5-pro"},
		{"anthropic/claude-sonnet-4", "gemini-2.5-flash"},
		{"gemini-2.0-flash", "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveGeminiModel(tt.in, "gemini-2.5-flash"), tt.in)
	}
}

func TestToGenai(t *testing.T) {
	contents, cfg := toGenai(ports.CompletionRequest{
		Messages: []ports.CompletionMessage{
			{Role: entities.RoleSystem, Content: "be brief"},
			{Role: entities.RoleUser, Content: "hi"},
			{Role: entities.RoleAssistant, Content: "hello"},
			{Role: entities.RoleUser, Content: "how are you"},
		},
		Temperature: 0.5,
		MaxTokens:   100,
	})

	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, float32(0.5), *cfg.Temperature)
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()

	c, err := New(ctx, config.AIConfig{Provider: "none"}, log)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(ctx, config.AIConfig{Provider: "openrouter"}, log)
	require.NoError(t, err)
	assert.Nil(t, c, "no key means chat is disabled")

	c, err = New(ctx, config.AIConfig{Provider: "openrouter", APIKey: "k"}, log)
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterClient{}, c)

	_, err = New(ctx, config.AIConfig{Provider: "mystery"}, log)
	assert.Error(t, err)

	_, err = NewGeminiClient(ctx, "", "", "", log)
	assert.ErrorIs(t, err, entities.ErrNotConfigured)
}
