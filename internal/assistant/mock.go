package assistant

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no assistant service is
// configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Chat(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Reply: buildMockReply(req.Message)}, nil
}

func buildMockReply(message string) string {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	latest := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "User: ") {
			latest = strings.TrimSpace(strings.TrimPrefix(lines[i], "User: "))
			break
		}
	}
	if latest == "" && len(lines) > 0 {
		latest = strings.TrimSpace(lines[0])
	}
	if latest == "" {
		latest = "I am listening."
	}
	return fmt.Sprintf("I heard you: %s", latest)
}
