// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/config"
)

// Session owns one Chrome process and the tab driven for an application run.
// Close releases the tab, the process and the allocator in order.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	page *chromedpPage
}

// execAllocatorOptions builds the Chrome launch flags from configuration.
func execAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if name, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// NewSession launches Chrome and opens the tab used for the run.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	s := &Session{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, execAllocatorOptions(cfg)...)
	s.browserCtx, s.browserStop = chromedp.NewContext(s.allocCtx)

	// Force the browser process to start now so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(s.browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.page = newChromedpPage(s.browserCtx, cfg, s.logger)
	s.logger.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Page returns the tab driven for this run.
func (s *Session) Page() Page {
	return s.page
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	if s.browserStop != nil {
		s.browserStop()
		s.browserStop = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	if s.logger != nil {
		s.logger.Info("Browser session closed")
	}
}

// Settle waits the configured settle delay for client-side rendering to
// finish, respecting context cancellation.
func (s *Session) Settle(ctx context.Context) error {
	delay := s.cfg.SettleDelay
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
