package agentapi

import (
	"context"
	"errors"
	"fmt"
)

// FallbackBackend tries primary first and falls back on error. Cancellation and
// deadline errors are returned as-is.
type FallbackBackend struct {
	primary  Backend
	fallback Backend
}

func NewFallbackBackend(primary, fallback Backend) *FallbackBackend {
	return &FallbackBackend{primary: primary, fallback: fallback}
}

func (b *FallbackBackend) Name() string {
	if b.primary == nil {
		return "fallback"
	}
	if b.fallback == nil {
		return b.primary.Name()
	}
	return b.primary.Name() + "+" + b.fallback.Name()
}

func (b *FallbackBackend) Ask(ctx context.Context, req AskRequest) (string, error) {
	if b.primary == nil {
		if b.fallback != nil {
			return b.fallback.Ask(ctx, req)
		}
		return "", fmt.Errorf("fallback backend misconfigured")
	}
	reply, err := b.primary.Ask(ctx, req)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || b.fallback == nil {
		return "", err
	}
	reply, fallbackErr := b.fallback.Ask(ctx, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary backend error: %w; fallback backend error: %v", err, fallbackErr)
	}
	return reply, nil
}
