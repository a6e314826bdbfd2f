package main

import (
	"github.com/spf13/cobra"

	"github.com/ent0n29/mentra/internal/config"
)

// overrides holds flag values layered over the environment configuration.
type overrides struct {
	bindAddr     string
	assistantURL string
	mode         string
}

func (o overrides) apply(cfg config.Config) (config.Config, error) {
	if o.bindAddr != "" {
		cfg.BindAddr = o.bindAddr
	}
	if o.assistantURL != "" {
		cfg.AssistantURL = o.assistantURL
	}
	if o.mode != "" {
		cfg.AssistantMode = o.mode
	}
	return cfg, cfg.Validate()
}

func newRootCmd() *cobra.Command {
	var o overrides
	rootCmd := &cobra.Command{
		Use:           "mentra",
		Short:         "Agent panel host and terminal client",
		Long:          "mentra serves agent panels to browser tabs over WebSocket and runs the same panel in the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&o.assistantURL, "assistant-url", "", "assistant endpoint (overrides ASSISTANT_URL)")
	rootCmd.PersistentFlags().StringVar(&o.mode, "assistant-mode", "", "auto|http|llm|mock (overrides ASSISTANT_MODE)")

	rootCmd.AddCommand(
		newServeCmd(&o),
		newChatCmd(&o),
	)
	return rootCmd
}

func loadConfig(o *overrides) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	return o.apply(cfg)
}
