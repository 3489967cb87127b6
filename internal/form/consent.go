// File: internal/form/consent.go
package form

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/profile"
)

// consentCategory is one independently toggleable class of agreement
// checkbox. Categories are checked in order and the first keyword hit wins.
type consentCategory struct {
	name     string
	keywords []string
	enabled  func(profile.ConsentPreferences) bool
}

var consentCategories = []consentCategory{
	{
		name:     "consent",
		keywords: []string{"consent", "agree", "accept", "acknowledge", "confirm"},
		enabled:  func(p profile.ConsentPreferences) bool { return p.AutoCheckConsent },
	},
	{
		name:     "terms",
		keywords: []string{"terms", "conditions"},
		enabled:  func(p profile.ConsentPreferences) bool { return p.AutoCheckTerms },
	},
	{
		name:     "privacy",
		keywords: []string{"privacy"},
		enabled:  func(p profile.ConsentPreferences) bool { return p.AutoCheckPrivacy },
	},
}

// consentCategoryFor reports which category a checkbox's text belongs to.
func consentCategoryFor(text string) (consentCategory, bool) {
	lower := strings.ToLower(text)
	for _, cat := range consentCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat, true
			}
		}
	}
	return consentCategory{}, false
}

// SweepConsent activates every unchecked checkbox whose surrounding text
// matches an enabled consent category. The sweep is idempotent: checked
// boxes are skipped, so a rerun changes nothing.
func (f *Filler) SweepConsent(ctx context.Context) {
	checkboxes, err := f.page.QueryAll(ctx, `input[type="checkbox"]`)
	if err != nil {
		f.logger.Warn("Consent sweep could not enumerate checkboxes", zap.Error(err))
		return
	}

	prefs := f.candidate.Preferences.Consent
	for _, checkbox := range checkboxes {
		if visible, err := checkbox.Visible(ctx); err != nil || !visible {
			continue
		}
		if checked, err := checkbox.Checked(ctx); err != nil || checked {
			continue
		}

		text := f.checkboxText(ctx, checkbox)
		cat, ok := consentCategoryFor(text)
		if !ok || !cat.enabled(prefs) {
			continue
		}

		if err := checkbox.Click(ctx); err != nil {
			f.result.AddError("failed to check %s checkbox: %v", cat.name, err)
			continue
		}
		f.logger.Debug("Consent checkbox activated",
			zap.String("category", cat.name), zap.String("text", truncate(text, 80)))
		f.result.MarkFilled("Checkbox: " + cat.name)
	}
}

// checkboxText reads the text associated with a checkbox: its label, or the
// nearest ancestor that carries any text.
func (f *Filler) checkboxText(ctx context.Context, checkbox browser.Element) string {
	if id, ok, _ := checkbox.Attribute(ctx, "id"); ok && id != "" {
		if label, err := f.page.Query(ctx, `label[for="`+id+`"]`); err == nil {
			if text, err := label.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	if aria, ok, _ := checkbox.Attribute(ctx, "aria-label"); ok && aria != "" {
		return aria
	}

	node := checkbox
	for depth := 0; depth < 3; depth++ {
		parent, err := node.Parent(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrNotFound) {
				break
			}
			break
		}
		if text, err := parent.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		node = parent
	}

	if name, ok, _ := checkbox.Attribute(ctx, "name"); ok {
		return name
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
