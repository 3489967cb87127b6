// File: cmd/apply.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/captcha"
	"github.com/tkoster88/applypilot-cli/internal/engine"
	"github.com/tkoster88/applypilot-cli/internal/observability"
	"github.com/tkoster88/applypilot-cli/internal/oracle"
	"github.com/tkoster88/applypilot-cli/internal/profile"
)

var applyCmd = &cobra.Command{
	Use:   "apply <job-url>",
	Short: "Fill and submit the application form for one job posting.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	ctx := cmd.Context()
	jobURL := args[0]

	candidate, err := profile.Load(cfg.Run.ProfilePath)
	if err != nil {
		logger.Warn("Profile not loaded; continuing with defaults",
			zap.String("path", cfg.Run.ProfilePath), zap.Error(err))
		candidate = profile.NewDefault()
	}

	solver := captcha.NewSolver(cfg.Captcha, logger)

	if cfg.Bridge.Enabled {
		bridge := captcha.NewBridge(cfg.Bridge, solver, logger)
		if err := bridge.Start(); err != nil {
			// A busy port usually means another instance owns the bridge.
			logger.Warn("Extension bridge not started", zap.Error(err))
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := bridge.Stop(stopCtx); err != nil {
					logger.Warn("Bridge shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer session.Close()

	orc := oracle.New(cfg.LLM, candidate, logger)
	eng := engine.New(session.Page(), cfg, candidate, orc,
		captcha.NewResolver(solver, logger), logger)

	report := eng.Apply(ctx, jobURL)

	if path, err := report.Write(cfg.Run.ResultDir); err != nil {
		logger.Warn("Failed to write result artifact", zap.Error(err))
	} else {
		logger.Info("Result artifact written", zap.String("path", path))
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Render())

	// Leave the window open so the operator can review or rescue the form.
	if !cfg.Browser.Headless && cfg.Run.InspectionDelay > 0 {
		logger.Info("Keeping browser open for inspection",
			zap.Duration("delay", cfg.Run.InspectionDelay))
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Run.InspectionDelay):
		}
	}
	return nil
}
