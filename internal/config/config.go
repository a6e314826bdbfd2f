package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the agent panel host.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	LogLevel  string
	LogFormat string

	DatabaseURL    string
	MemoryMaxTurns int
	MemoryMaxChars int

	// AssistantMode selects the transport used by panel controllers:
	// "http" forwards to AssistantURL, "llm" calls the in-process assistant service,
	// "mock" answers deterministically, "auto" picks http when a URL is set.
	AssistantMode    string
	AssistantURL     string
	AssistantTimeout time.Duration

	PhraseCompletion bool

	LLMProvider   string
	BotAPIKey     string
	GroqAPIKey    string
	OpenAIBaseURL string
	GroqBaseURL   string
	DefaultModel  string
	GroqModel     string

	AgentRateLimit   int
	AgentRateWindow  time.Duration
	AgentMaxTokens   int
	AgentTemperature float64
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "mentra"),
		AllowAnyOrigin:   false,
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		MemoryMaxTurns:   12,
		MemoryMaxChars:   12000,
		AssistantMode:    envOrDefault("ASSISTANT_MODE", "auto"),
		AssistantURL:     stringsTrimSpace("ASSISTANT_URL"),
		// Zero keeps the transport default: a hanging request stays busy until stopped.
		AssistantTimeout: 0,
		PhraseCompletion: true,
		LLMProvider:      strings.ToLower(envOrDefault("LLM_PROVIDER", "local")),
		BotAPIKey:        stringsTrimSpace("BOT_API_KEY"),
		GroqAPIKey:       stringsTrimSpace("GROQ_API_KEY"),
		// Local OpenAI-compatible endpoint (ollama) unless told otherwise.
		OpenAIBaseURL:            envOrDefault("OPENAI_BASE_URL", "http://localhost:11434/v1"),
		GroqBaseURL:              envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		DefaultModel:             envOrDefault("DEFAULT_MODEL", "qwen2.5:7b-instruct"),
		GroqModel:                envOrDefault("GROQ_MODEL", "llama-3.1-8b-instant"),
		AgentRateLimit:           25,
		AgentRateWindow:          60 * time.Second,
		AgentMaxTokens:           1000,
		AgentTemperature:         0.5,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AssistantTimeout, err = durationFromEnv("ASSISTANT_TIMEOUT", cfg.AssistantTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentRateWindow, err = durationFromEnv("AGENT_RATE_WINDOW", cfg.AgentRateWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.PhraseCompletion, err = boolFromEnv("AGENT_PHRASE_COMPLETION", cfg.PhraseCompletion)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxTurns, err = intFromEnv("MEMORY_MAX_TURNS", cfg.MemoryMaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxChars, err = intFromEnv("MEMORY_MAX_CHARS", cfg.MemoryMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentRateLimit, err = intFromEnv("AGENT_RATE_LIMIT", cfg.AgentRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentMaxTokens, err = intFromEnv("AGENT_MAX_TOKENS", cfg.AgentMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentTemperature, err = floatFromEnv("AGENT_TEMPERATURE", cfg.AgentTemperature)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Load calls it; callers that override
// fields (CLI flags) should call it again.
func (c Config) Validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.MemoryMaxTurns <= 0 {
		return fmt.Errorf("MEMORY_MAX_TURNS must be positive")
	}
	if c.MemoryMaxChars <= 0 {
		return fmt.Errorf("MEMORY_MAX_CHARS must be positive")
	}
	if c.AssistantTimeout < 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be >= 0")
	}
	if c.AgentRateLimit <= 0 {
		return fmt.Errorf("AGENT_RATE_LIMIT must be positive")
	}
	if c.AgentRateWindow <= 0 {
		return fmt.Errorf("AGENT_RATE_WINDOW must be positive")
	}
	if c.AgentMaxTokens <= 0 {
		return fmt.Errorf("AGENT_MAX_TOKENS must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.AssistantMode)) {
	case "auto", "http", "llm", "mock":
	default:
		return fmt.Errorf("invalid ASSISTANT_MODE: %q (expected auto|http|llm|mock)", c.AssistantMode)
	}
	if strings.EqualFold(strings.TrimSpace(c.AssistantMode), "http") && c.AssistantURL == "" {
		return fmt.Errorf("ASSISTANT_URL is required when ASSISTANT_MODE=http")
	}
	return nil
}

// LLMCredentials returns the API key and base URL for the configured provider.
func (c Config) LLMCredentials() (apiKey, baseURL, model string) {
	if c.LLMProvider == "groq" {
		return c.GroqAPIKey, c.GroqBaseURL, c.GroqModel
	}
	return c.BotAPIKey, c.OpenAIBaseURL, c.DefaultModel
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
