// File: internal/engine/engine.go

// Package engine orchestrates one application run: navigate to the posting,
// fill the form, verify, clear any captcha, submit, and report. Only
// navigation failures abort a run; every other problem is accumulated into
// the run report so a partially filled application is still inspectable.
package engine

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/captcha"
	"github.com/tkoster88/applypilot-cli/internal/config"
	"github.com/tkoster88/applypilot-cli/internal/form"
	"github.com/tkoster88/applypilot-cli/internal/profile"
	"github.com/tkoster88/applypilot-cli/internal/resolver"
)

// Oracle is the generative collaborator: the form filler asks it questions
// and the engine primes it with the job description for context.
type Oracle interface {
	form.AnswerOracle
	SetJobDescription(text string)
}

// Engine drives one page through the application pipeline.
type Engine struct {
	page      browser.Page
	cfg       *config.Config
	candidate *profile.Candidate
	oracle    Oracle // nil disables generative answers
	captcha   *captcha.Resolver
	logger    *zap.Logger
}

func New(
	page browser.Page,
	cfg *config.Config,
	candidate *profile.Candidate,
	oracle Oracle,
	captchaResolver *captcha.Resolver,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		page:      page,
		cfg:       cfg,
		candidate: candidate,
		oracle:    oracle,
		captcha:   captchaResolver,
		logger:    logger.Named("engine"),
	}
}

// descriptionSelectors locate the posting text, most specific first.
var descriptionSelectors = []string{
	`[class*="job-description"]`,
	`[class*="description"]`,
	"main",
	"article",
	"body",
}

// Apply runs the full pipeline against one job posting URL.
func (e *Engine) Apply(ctx context.Context, jobURL string) *Report {
	report := NewReport(jobURL)
	result := form.NewResult()

	e.logger.Info("Starting application run",
		zap.String("run_id", report.RunID),
		zap.String("job_url", jobURL))

	if err := e.page.Navigate(ctx, jobURL); err != nil {
		result.AddError("failed to open posting: %v", err)
		report.Finish(result, false, false)
		return report
	}
	e.settle(ctx)

	e.primeOracle(ctx)

	applyURL := deriveApplyURL(jobURL)
	if applyURL != jobURL {
		if err := e.page.Navigate(ctx, applyURL); err != nil {
			result.AddError("failed to open application form: %v", err)
			report.Finish(result, false, false)
			return report
		}
		e.settle(ctx)
	}

	e.dismissCookieBanner(ctx)

	res := resolver.New(e.candidate)
	scanner := form.NewScanner(e.page, e.cfg.Filler, e.logger)
	filler := form.NewFiller(e.page, e.cfg.Filler, e.candidate, res, e.formOracle(), result, e.logger)

	filler.FillBasicInfo(ctx)

	fields, err := scanner.Scan(ctx)
	if err != nil {
		result.AddError("form scan failed: %v", err)
	} else {
		filler.FillAll(ctx, fields)
	}

	e.noteResumeUpload(ctx)
	filler.FillCoverLetter(ctx)

	filler.Repair(ctx, scanner)
	complete := filler.Audit(ctx, scanner)

	if e.captcha != nil {
		if solved, detail := e.captcha.Resolve(ctx, e.page); !solved {
			result.AddError("%s", detail)
		}
	}

	submitted := e.submit(ctx, result)
	report.Finish(result, submitted, complete)

	e.logger.Info("Application run finished",
		zap.String("run_id", report.RunID),
		zap.Bool("success", report.Success),
		zap.Int("fields_filled", len(report.FieldsFilled)),
		zap.Int("fields_empty", len(report.FieldsEmpty)),
		zap.Int("errors", len(report.Errors)))
	return report
}

// formOracle adapts the nilable engine oracle to the filler interface. A
// typed-nil interface value would defeat the filler's nil check.
func (e *Engine) formOracle() form.AnswerOracle {
	if e.oracle == nil {
		return nil
	}
	return e.oracle
}

// primeOracle hands the posting text to the oracle for answer context.
func (e *Engine) primeOracle(ctx context.Context) {
	if e.oracle == nil {
		return
	}
	for _, selector := range descriptionSelectors {
		el, err := e.page.Query(ctx, selector)
		if err != nil {
			continue
		}
		text, err := el.Text(ctx)
		if err != nil || len(strings.TrimSpace(text)) < 100 {
			continue
		}
		e.oracle.SetJobDescription(strings.TrimSpace(text))
		e.logger.Debug("Job description extracted", zap.Int("chars", len(text)))
		return
	}
	e.logger.Debug("No job description found on posting page")
}

// deriveApplyURL appends the /apply path segment job boards use for the form
// page, unless the URL already points there.
func deriveApplyURL(jobURL string) string {
	u, err := url.Parse(jobURL)
	if err != nil {
		return jobURL
	}
	if strings.Contains(u.Path, "/apply") {
		return jobURL
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/apply"
	return u.String()
}

// cookieBannerSelectors cover the common consent-manager dismiss buttons.
var cookieBannerSelectors = []string{
	"#onetrust-accept-btn-handler",
	`[id*="cookie"] button`,
	`[class*="cookie-banner"] button`,
	`[class*="cookie"] button[class*="accept"]`,
}

func (e *Engine) dismissCookieBanner(ctx context.Context) {
	for _, selector := range cookieBannerSelectors {
		el, err := e.page.Query(ctx, selector)
		if err != nil {
			continue
		}
		if visible, err := el.Visible(ctx); err != nil || !visible {
			continue
		}
		if err := el.Click(ctx); err == nil {
			e.logger.Debug("Cookie banner dismissed", zap.String("selector", selector))
			e.settle(ctx)
			return
		}
	}
}

// noteResumeUpload records a file input without acting on it. Resume storage
// and parsing belong to an external collaborator.
func (e *Engine) noteResumeUpload(ctx context.Context) {
	if _, err := e.page.Query(ctx, `input[type="file"]`); err == nil {
		e.logger.Info("Resume upload field present; leaving it to the operator")
	}
}

// settle gives client-side rendering time to finish after navigation.
func (e *Engine) settle(ctx context.Context) {
	delay := e.cfg.Browser.SettleDelay
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
