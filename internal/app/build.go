package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/agent"
	"github.com/ent0n29/mentra/internal/agentapi"
	"github.com/ent0n29/mentra/internal/assistant"
	"github.com/ent0n29/mentra/internal/config"
	"github.com/ent0n29/mentra/internal/httpapi"
	"github.com/ent0n29/mentra/internal/logging"
	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/observability"
	"github.com/ent0n29/mentra/internal/session"
)

const (
	ModeHTTP = "http"
	ModeLLM  = "llm"
	ModeMock = "mock"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Store        memory.SnapshotStore
	AgentService *agentapi.Service
	Metrics      *observability.Metrics
	Logger       *zap.Logger

	// AssistantMode is the resolved transport for panel controllers (http|llm|mock).
	AssistantMode string
	// Backend names the LLM backend behind AgentService.
	Backend string

	// Cleanup should be called on shutdown to release external resources (DB pool).
	Cleanup func() error

	httpClient assistant.Client
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	logger = logging.OrNop(logger)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewSnapshotStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	backend := resolveBackend(cfg)
	agentService := agentapi.NewService(agentapi.Options{
		Backend:     backend,
		Limiter:     agentapi.NewRateLimiter(cfg.AgentRateLimit, cfg.AgentRateWindow),
		MaxTokens:   cfg.AgentMaxTokens,
		Temperature: cfg.AgentTemperature,
		Logger:      logger,
		Metrics:     metrics,
	})

	mode, err := resolveAssistantMode(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Health and readiness report the transport actually in use.
	cfg.AssistantMode = mode

	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	b := &BuildResult{
		Config:        cfg,
		Sessions:      sessions,
		Store:         store,
		AgentService:  agentService,
		Metrics:       metrics,
		Logger:        logger,
		AssistantMode: mode,
		Backend:       backend.Name(),
		Cleanup:       store.Close,
	}
	if mode == ModeHTTP {
		b.httpClient = assistant.NewHTTPClient(cfg.AssistantURL, cfg.AssistantTimeout)
	}

	sessions.SetExpireHook(func(s *session.Session) {
		metrics.ObservePanelEvent("expired")
		delCtx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()
		if err := store.Delete(delCtx, s.ID); err != nil {
			logger.Warn("delete expired snapshot failed", zap.String("tab_id", s.ID), zap.Error(err))
		}
	})

	b.API = httpapi.New(cfg, sessions, b.NewPanel, metrics, httpapi.Options{
		Store:        store,
		AgentService: agentService,
		Logger:       logger,
	})

	logger.Info("app built",
		zap.String("assistant_mode", mode),
		zap.String("llm_backend", b.Backend),
		zap.Bool("postgres", strings.TrimSpace(cfg.DatabaseURL) != ""))
	return b, nil
}

// Client returns the assistant transport for the given tab. In llm mode every
// tab is its own rate-limit key on the in-process service.
func (b *BuildResult) Client(tabID string) assistant.Client {
	switch b.AssistantMode {
	case ModeHTTP:
		return b.httpClient
	case ModeLLM:
		return agentapi.NewLocalClient(b.AgentService, tabID)
	default:
		return assistant.NewMockClient()
	}
}

// NewPanel builds the controller for one browser tab, restoring the tab's
// memory snapshot.
func (b *BuildResult) NewPanel(ctx context.Context, tab *session.Session, presenter agent.Presenter) *agent.Controller {
	mem := memory.New(memory.Options{
		MaxTurns:     b.Config.MemoryMaxTurns,
		MaxCharsEach: b.Config.MemoryMaxChars,
		Store:        b.Store,
		TabID:        tab.ID,
		Logger:       b.Logger,
		DeferPersist: true,
	})
	mem.Restore(ctx)
	return agent.New(agent.Options{
		Client:                  b.Client(tab.ID),
		Memory:                  mem,
		Presenter:               presenter,
		PageURL:                 tab.PageURL,
		DisablePhraseCompletion: !b.Config.PhraseCompletion,
		TabID:                   tab.ID,
		Logger:                  b.Logger,
		Metrics:                 b.Metrics,
	})
}

// NewTerminalPanel builds a controller for the terminal client. Its memory is
// never persisted.
func (b *BuildResult) NewTerminalPanel(pageURL string, presenter agent.Presenter) *agent.Controller {
	tab := b.Sessions.Create(pageURL)
	return agent.New(agent.Options{
		Client: b.Client(tab.ID),
		Memory: memory.New(memory.Options{
			MaxTurns:     b.Config.MemoryMaxTurns,
			MaxCharsEach: b.Config.MemoryMaxChars,
			TabID:        tab.ID,
			Logger:       b.Logger,
		}),
		Presenter:               presenter,
		PageURL:                 pageURL,
		DisablePhraseCompletion: !b.Config.PhraseCompletion,
		TabID:                   tab.ID,
		Logger:                  b.Logger,
		Metrics:                 b.Metrics,
	})
}
