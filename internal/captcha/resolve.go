// File: internal/captcha/resolve.go
package captcha

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
)

// Resolver orchestrates the full pre-submission captcha pass: detect, try the
// extension hook, fall back to the external service, inject the token.
type Resolver struct {
	solver *Solver
	logger *zap.Logger
}

func NewResolver(solver *Solver, logger *zap.Logger) *Resolver {
	return &Resolver{solver: solver, logger: logger.Named("captcha")}
}

// Resolve inspects the page and clears any challenge it finds. It returns
// solved=true when the page is ready for submission (including the
// no-challenge case) and a diagnostic message otherwise. It never returns an
// error type: captcha failure degrades the run, it does not abort it.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page) (solved bool, detail string) {
	ch, err := Detect(ctx, page)
	if err != nil {
		return false, fmt.Sprintf("captcha detection failed: %v", err)
	}
	if ch == nil {
		r.logger.Debug("No captcha on page")
		return true, ""
	}

	r.logger.Info("Captcha detected",
		zap.String("type", ch.Type),
		zap.String("site_key", ch.SiteKey))

	if solveViaExtension(ctx, page, ch, r.logger) {
		return true, ""
	}

	if ch.SiteKey == "" {
		return false, fmt.Sprintf("%s detected but site key extraction failed", ch.Type)
	}
	if r.solver == nil || !r.solver.Configured() {
		return false, fmt.Sprintf("%s detected but no solving service configured", ch.Type)
	}

	token, err := r.solver.Solve(ctx, ch)
	if err != nil {
		return false, fmt.Sprintf("captcha solving failed: %v", err)
	}
	if err := Inject(ctx, page, ch, token); err != nil {
		return false, fmt.Sprintf("captcha token injection failed: %v", err)
	}
	r.logger.Info("Captcha token injected", zap.String("type", ch.Type))
	return true, ""
}
