package agentapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/assistant"
	"github.com/ent0n29/mentra/internal/logging"
	"github.com/ent0n29/mentra/internal/observability"
	"github.com/ent0n29/mentra/internal/policy"
)

const (
	MsgTooManyRequests = "Too many requests. Slow down."
	MsgEmptyMessage    = "Empty message."
	MsgNoReply         = "I couldn't generate a reply. Try again."

	userMessageHeader = "USER_MESSAGE:\n"
	englishOnlyPrefix = "Answer in English only.\n\n"

	logPreviewChars = 80
)

// Options configures a Service.
type Options struct {
	Backend     Backend
	Limiter     *RateLimiter
	System      string
	MaxTokens   int
	Temperature float64
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Service answers single panel messages. It keeps no conversation state: the
// panel sends its own composed history in every message.
type Service struct {
	backend     Backend
	limiter     *RateLimiter
	system      string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewService(opts Options) *Service {
	if opts.Backend == nil {
		opts.Backend = NewMockBackend()
	}
	if opts.System == "" {
		opts.System = LoadPrompt("base")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Service{
		backend:     opts.Backend,
		limiter:     opts.Limiter,
		system:      opts.System,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		logger:      logging.OrNop(opts.Logger).Named("agentapi"),
		metrics:     opts.Metrics,
	}
}

// Chat answers raw for session sid. Rejections and backend failures are
// returned as *assistant.StatusError; cancellation is returned wrapped.
func (s *Service) Chat(ctx context.Context, sid, raw string) (string, error) {
	if s.limiter != nil && !s.limiter.Allow(sid) {
		s.metrics.ObserveAssistantRequest("rate_limited")
		return "", &assistant.StatusError{Code: http.StatusTooManyRequests, Message: MsgTooManyRequests}
	}

	msg := policy.SanitizeUserText(raw)
	if msg == "" {
		s.metrics.ObserveAssistantRequest("empty")
		return "", &assistant.StatusError{Code: http.StatusBadRequest, Message: MsgEmptyMessage}
	}
	if policy.IsDisclosureRequest(raw) {
		s.metrics.ObserveAssistantRequest("refused")
		s.logger.Info("disclosure request refused", zap.String("preview", policy.Preview(raw, logPreviewChars)))
		return policy.RefusalInstructions, nil
	}

	reply, err := s.backend.Ask(ctx, AskRequest{
		System:      s.system,
		Prompt:      englishOnlyPrefix + userMessageHeader + msg + "\n",
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.metrics.ObserveAssistantRequest("cancelled")
			return "", fmt.Errorf("agent chat: %w", err)
		}
		s.metrics.ObserveAssistantRequest("error")
		s.logger.Warn("backend failed",
			zap.String("backend", s.backend.Name()),
			zap.String("preview", policy.Preview(msg, logPreviewChars)),
			zap.Error(err))
		return "", &assistant.StatusError{Code: http.StatusInternalServerError, Message: "Agent error: " + err.Error()}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = MsgNoReply
	}
	decision := policy.GuardReply(reply)
	if decision.Blocked {
		s.metrics.ObserveAssistantRequest("refused")
		s.logger.Warn("reply replaced", zap.String("reason", decision.Reason))
		return decision.Reply, nil
	}
	s.metrics.ObserveAssistantRequest("ok")
	return decision.Reply, nil
}

// Reset clears per-session server state.
func (s *Service) Reset(sid string) {
	if s.limiter != nil {
		s.limiter.Reset(sid)
	}
}

// LocalClient calls a Service in-process under a fixed session id.
type LocalClient struct {
	service *Service
	sid     string
}

func NewLocalClient(service *Service, sid string) *LocalClient {
	return &LocalClient{service: service, sid: sid}
}

func (c *LocalClient) Chat(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	reply, err := c.service.Chat(ctx, c.sid, req.Message)
	if err != nil {
		return assistant.Response{}, err
	}
	return assistant.Response{Reply: reply}, nil
}
