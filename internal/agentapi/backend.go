// Package agentapi is the built-in assistant service the panel can talk to:
// input guarding, per-session rate limiting and the LLM backends behind it.
package agentapi

import (
	"context"
	"fmt"
	"strings"
)

// AskRequest is one completion call against a backend.
type AskRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend produces a single reply for a prompt.
type Backend interface {
	Ask(ctx context.Context, req AskRequest) (string, error)
	Name() string
}

// MockBackend answers deterministically without any network access.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (b *MockBackend) Name() string { return "mock" }

func (b *MockBackend) Ask(ctx context.Context, req AskRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := req.Prompt
	if i := strings.Index(msg, userMessageHeader); i >= 0 {
		msg = msg[i+len(userMessageHeader):]
	}
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	msg = strings.TrimSpace(lines[len(lines)-1])
	if msg == "" {
		return "I am listening.", nil
	}
	return fmt.Sprintf("You said: %s", msg), nil
}
