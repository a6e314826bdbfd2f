package agentapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint
// (OpenAI, Groq, or a local server such as ollama).
type OpenAIConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIBackend implements Backend via the chat completions API.
type OpenAIBackend struct {
	client *openai.Client
	config OpenAIConfig
}

func NewOpenAIBackend(config OpenAIConfig) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.Name == "" {
		config.Name = "openai"
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

func (b *OpenAIBackend) Name() string { return b.config.Name }

// Available reports whether the backend has enough configuration to be tried.
func (b *OpenAIBackend) Available() bool {
	return b.config.Model != "" && (b.config.APIKey != "" || b.config.BaseURL != "")
}

func (b *OpenAIBackend) Ask(ctx context.Context, req AskRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.config.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", b.config.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
