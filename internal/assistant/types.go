// Package assistant is the panel's outbound side: the request payload, the
// page-context descriptor, and the clients that deliver a message to the
// assistant service.
package assistant

import (
	"context"
	"errors"
	"fmt"
)

// Page is the logical page the panel is embedded in.
type Page string

const (
	PageHome        Page = "home"
	PageUser        Page = "user"
	PageServer      Page = "server"
	PageLeaderboard Page = "leaderboard"
	PageApp         Page = "app"
)

// Request is the JSON body posted to the assistant service.
type Request struct {
	Message string `json:"message"`
	Page    Page   `json:"page"`
	Topic   string `json:"topic,omitempty"`
	Days    int    `json:"days,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Response is the JSON body returned by the assistant service.
type Response struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// StatusError reports a non-2xx reply. Message carries the server-supplied
// error text, if any.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("assistant status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("assistant status %d", e.Code)
}

// Notice is the transcript text shown for this failure.
func (e *StatusError) Notice() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Error (%d)", e.Code)
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Client delivers one message and waits for the reply. Implementations must
// return an error wrapping ctx.Err() when ctx is cancelled.
type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}
