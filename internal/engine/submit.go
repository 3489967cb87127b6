// File: internal/engine/submit.go
package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/form"
)

// submitSelectors, most specific first. The bare button scan at the end is
// text-filtered.
var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button[class*="submit"]`,
	"button",
}

var submitTexts = []string{"submit application", "submit", "apply now", "send application"}

// successIndicators are checked on the post-submit page.
var successSelectors = []string{
	`[class*="application-confirmation"]`,
	`[class*="success"]`,
	`[class*="thank"]`,
}

var successPhrases = []string{
	"thank you for applying",
	"application received",
	"application submitted",
	"successfully submitted",
	"we have received your application",
}

// submit clicks the submission control and verifies the outcome. Returns true
// only on a confirmed submission; an unverifiable state records the
// "Submission status unclear" error and returns false.
func (e *Engine) submit(ctx context.Context, result *form.Result) bool {
	button := e.findSubmitButton(ctx)
	if button == nil {
		result.AddError("no submit button found")
		return false
	}

	urlBefore, _ := e.page.URL(ctx)

	if err := button.Click(ctx); err != nil {
		result.AddError("submit click failed: %v", err)
		return false
	}
	e.settle(ctx)

	if e.submissionConfirmed(ctx, urlBefore) {
		e.logger.Info("Submission confirmed")
		return true
	}
	result.AddError("Submission status unclear")
	return false
}

func (e *Engine) findSubmitButton(ctx context.Context) browser.Element {
	for _, selector := range submitSelectors {
		candidates, err := e.page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, el := range candidates {
			if visible, err := el.Visible(ctx); err != nil || !visible {
				continue
			}
			text, err := el.Text(ctx)
			if err != nil {
				continue
			}
			label := strings.ToLower(strings.TrimSpace(text))
			if label == "" {
				if value, ok, _ := el.Attribute(ctx, "value"); ok {
					label = strings.ToLower(strings.TrimSpace(value))
				}
			}
			for _, want := range submitTexts {
				if strings.Contains(label, want) {
					e.logger.Debug("Submit button located",
						zap.String("selector", selector),
						zap.String("label", label))
					return el
				}
			}
		}
	}
	return nil
}

func (e *Engine) submissionConfirmed(ctx context.Context, urlBefore string) bool {
	for _, selector := range successSelectors {
		if el, err := e.page.Query(ctx, selector); err == nil {
			if visible, err := el.Visible(ctx); err == nil && visible {
				return true
			}
		}
	}

	if body, err := e.page.Query(ctx, "body"); err == nil {
		if text, err := body.Text(ctx); err == nil {
			lower := strings.ToLower(text)
			for _, phrase := range successPhrases {
				if strings.Contains(lower, phrase) {
					return true
				}
			}
		}
	}

	// A post-click redirect off the form page counts as success on boards
	// that bounce straight to a confirmation route.
	if urlAfter, err := e.page.URL(ctx); err == nil && urlAfter != urlBefore {
		lower := strings.ToLower(urlAfter)
		if strings.Contains(lower, "confirmation") || strings.Contains(lower, "success") ||
			strings.Contains(lower, "thanks") {
			return true
		}
	}
	return false
}
