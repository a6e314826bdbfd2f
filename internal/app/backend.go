package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/mentra/internal/agentapi"
	"github.com/ent0n29/mentra/internal/config"
)

const deleteTimeout = 2 * time.Second

// resolveBackend picks the LLM behind the built-in assistant service. The
// configured provider comes first; when the other provider is also usable it
// becomes the fallback. With nothing configured the service answers with the
// deterministic mock.
func resolveBackend(cfg config.Config) agentapi.Backend {
	apiKey, baseURL, model := cfg.LLMCredentials()
	primary := agentapi.NewOpenAIBackend(agentapi.OpenAIConfig{
		Name:    providerName(cfg.LLMProvider),
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
	})

	var secondary *agentapi.OpenAIBackend
	if cfg.LLMProvider == "groq" {
		secondary = agentapi.NewOpenAIBackend(agentapi.OpenAIConfig{
			Name: "local", APIKey: cfg.BotAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.DefaultModel,
		})
	} else if cfg.GroqAPIKey != "" {
		secondary = agentapi.NewOpenAIBackend(agentapi.OpenAIConfig{
			Name: "groq", APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL, Model: cfg.GroqModel,
		})
	}

	switch {
	case !primary.Available() && (secondary == nil || !secondary.Available()):
		return agentapi.NewMockBackend()
	case !primary.Available():
		return secondary
	case secondary != nil && secondary.Available():
		return agentapi.NewFallbackBackend(primary, secondary)
	default:
		return primary
	}
}

// resolveAssistantMode maps ASSISTANT_MODE to a concrete transport. auto uses
// the external endpoint when one is configured, then the in-process service
// when the provider has an API key, then the mock. A keyless local endpoint
// must be selected explicitly with llm.
func resolveAssistantMode(cfg config.Config) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.AssistantMode))
	switch mode {
	case ModeHTTP:
		if cfg.AssistantURL == "" {
			return "", fmt.Errorf("ASSISTANT_URL is required when ASSISTANT_MODE=http")
		}
		return ModeHTTP, nil
	case ModeLLM, ModeMock:
		return mode, nil
	case "", "auto":
		if cfg.AssistantURL != "" {
			return ModeHTTP, nil
		}
		if apiKey, _, _ := cfg.LLMCredentials(); apiKey != "" {
			return ModeLLM, nil
		}
		return ModeMock, nil
	default:
		return "", fmt.Errorf("invalid ASSISTANT_MODE: %q (expected auto|http|llm|mock)", cfg.AssistantMode)
	}
}

func providerName(provider string) string {
	if provider == "groq" {
		return "groq"
	}
	return "local"
}
