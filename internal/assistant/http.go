package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// HTTPClient posts requests to the assistant chat endpoint.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient returns a client for url. A zero timeout leaves the transport
// default in place, so a hanging request only ends when its context is cancelled.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Chat(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("send request: %w", ctxErr)
		}
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("read response: %w", ctxErr)
		}
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	// An unreadable body is treated as an empty object.
	var out Response
	_ = json.Unmarshal(body, &out)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Response{}, &StatusError{Code: res.StatusCode, Message: strings.TrimSpace(out.Error)}
	}
	return out, nil
}
