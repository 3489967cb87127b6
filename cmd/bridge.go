// File: cmd/bridge.go
package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/captcha"
	"github.com/tkoster88/applypilot-cli/internal/observability"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the extension bridge standalone until interrupted.",
	RunE:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, _ []string) error {
	logger := observability.GetLogger()

	solver := captcha.NewSolver(cfg.Captcha, logger)
	bridge := captcha.NewBridge(cfg.Bridge, solver, logger)
	if err := bridge.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down bridge")
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridge.Stop(stopCtx); err != nil {
		logger.Warn("Bridge shutdown failed", zap.Error(err))
	}
	return nil
}
