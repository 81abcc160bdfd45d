package entities

import "time"

// MessageRole is the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// DefaultChatModel is used for new sessions.
const DefaultChatModel = "anthropic/claude-sonnet-4"

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Model     string      `json:"model,omitempty"`
}

// ChatSession is a titled conversation bound to a model.
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	Model     string        `json:"model"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Clone returns a copy with its own message slice.
func (s ChatSession) Clone() ChatSession {
	msgs := make([]ChatMessage, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}

// Matches reports whether keyword occurs in the title or any message.
func (s ChatSession) Matches(keyword string) bool {
	if keyword == "" {
		return true
	}
	if ContainsFold(s.Title, keyword) {
		return true
	}
	for _, m := range s.Messages {
		if ContainsFold(m.Content, keyword) {
			return true
		}
	}
	return false
}

// ChatModel describes a selectable completion model.
type ChatModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

var chatModels = []ChatModel{
	{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", Description: "Latest Claude model, strong at reasoning and writing", Provider: "Anthropic"},
	{ID: "google/gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Google's high-performance model", Provider: "Google"},
	{ID: "openai/gpt-4o", Name: "GPT-4o", Description: "OpenAI multimodal model", Provider: "OpenAI"},
	{ID: "deepseek/deepseek-chat", Name: "DeepSeek Chat", Description: "Conversational model for Chinese and English", Provider: "DeepSeek"},
	{ID: "deepseek/deepseek-r1", Name: "DeepSeek Reason", Description: "Reasoning model", Provider: "DeepSeek"},
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Description: "Claude 3.5 Sonnet", Provider: "Anthropic"},
	{ID: "anthropic/claude-3-haiku", Name: "Claude 3 Haiku", Description: "Fast Claude model", Provider: "Anthropic"},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Description: "Lightweight GPT-4o", Provider: "OpenAI"},
	{ID: "google/gemini-pro-1.5", Name: "Gemini Pro 1.5", Description: "Gemini Pro 1.5", Provider: "Google"},
	{ID: "meta-llama/llama-3.1-405b-instruct", Name: "Llama 3.1 405B", Description: "Meta large language model", Provider: "Meta"},
	{ID: "mistralai/mistral-large", Name: "Mistral Large", Description: "Mistral AI large model", Provider: "Mistral"},
}

// ChatModels returns the selectable model catalogue.
func ChatModels() []ChatModel {
	out := make([]ChatModel, len(chatModels))
	copy(out, chatModels)
	return out
}
