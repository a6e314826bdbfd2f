package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/agent"
	"github.com/ent0n29/mentra/internal/app"
	"github.com/ent0n29/mentra/internal/logging"
	"github.com/ent0n29/mentra/internal/plan"
	"github.com/ent0n29/mentra/internal/tui"
)

type chatFlags struct {
	pageURL  string
	planFile string
	day      int
	intent   string
	logFile  string
}

func newChatCmd(o *overrides) *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the agent panel in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			start, err := f.startDay()
			if err != nil {
				return err
			}

			// The TUI owns the terminal; logs only go to a file when asked.
			logger := zap.NewNop()
			if f.logFile != "" {
				logger, err = logging.NewFile(cfg.LogLevel, f.logFile)
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			built, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = built.Cleanup() }()

			var ctrl *agent.Controller
			defer func() {
				if ctrl != nil {
					ctrl.Shutdown()
				}
			}()
			return tui.Run(ctx, func(p agent.Presenter) tui.Controller {
				ctrl = built.NewTerminalPanel(f.pageURL, p)
				return ctrl
			}, tui.Options{StartDay: start})
		},
	}
	cmd.Flags().StringVar(&f.pageURL, "page-url", "", "page URL that selects the request context")
	cmd.Flags().StringVar(&f.planFile, "plan", "", "JSON plan file; with --day the panel opens on that day")
	cmd.Flags().IntVar(&f.day, "day", 0, "day to start (requires --plan or sends the fallback message)")
	cmd.Flags().StringVar(&f.intent, "intent", "", "start-day intent, e.g. help_overview")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write logs to this file")
	return cmd
}

// startDay builds the signal from flags. The plan file must be valid JSON; its
// shape then goes through the same loose decoding as signals from browser tabs.
func (f chatFlags) startDay() (*plan.StartDay, error) {
	if f.day == 0 && f.planFile == "" && f.intent == "" {
		return nil, nil
	}
	payload := map[string]any{"day": f.day}
	if f.intent != "" {
		payload["intent"] = f.intent
	}
	if f.planFile != "" {
		raw, err := os.ReadFile(f.planFile)
		if err != nil {
			return nil, fmt.Errorf("read plan: %w", err)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid plan file %s: not valid JSON", f.planFile)
		}
		payload["plan"] = json.RawMessage(raw)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode start-day signal: %w", err)
	}
	sig := plan.DecodeStartDay(raw)
	return &sig, nil
}
