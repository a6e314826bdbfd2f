package reliability

import (
	"context"
	"errors"

	"github.com/ent0n29/mentra/internal/assistant"
)

// Outcome is the terminal classification of one assistant request.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeServerError Outcome = "server_error"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeNetwork     Outcome = "network_error"
)

// Classify maps a request error to its outcome. Nothing here is retried; the
// classification only selects transcript wording and metric labels.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	}
	if _, ok := assistant.AsStatusError(err); ok {
		return OutcomeServerError
	}
	return OutcomeNetwork
}

// IsRetryableHTTPStatus reports statuses a user resubmission is likely to fix.
// It only tags error events for the panel; the controller never retries.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
