// File: internal/form/basicinfo.go
package form

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
)

// basicInfoMapping pairs label keywords with the profile value that belongs
// in the field. Order matters: "full name" must run before looser matches.
type basicInfoMapping struct {
	keywords []string
	value    func(f *Filler) string
}

var basicInfoMappings = []basicInfoMapping{
	{keywords: []string{"full name", "your name"}, value: func(f *Filler) string { return f.candidate.Personal.FullName }},
	{keywords: []string{"email"}, value: func(f *Filler) string { return f.candidate.Personal.Email }},
	{keywords: []string{"phone"}, value: func(f *Filler) string { return f.candidate.Personal.Phone }},
	{keywords: []string{"current company", "company"}, value: func(f *Filler) string { return f.candidate.CurrentCompany() }},
}

// FillBasicInfo fills the label-addressed contact fields from the profile
// and runs the location autocomplete flow. Fields that already carry a value
// are left alone.
func (f *Filler) FillBasicInfo(ctx context.Context) {
	labels, err := f.page.QueryAll(ctx, "label")
	if err != nil {
		f.logger.Warn("Basic info pass could not enumerate labels", zap.Error(err))
		return
	}

	for _, label := range labels {
		text, err := label.Text(ctx)
		if err != nil {
			continue
		}
		labelText := firstLine(text)
		lower := strings.ToLower(labelText)

		if strings.Contains(lower, "location") {
			f.fillLocation(ctx, label)
			continue
		}

		for _, mapping := range basicInfoMappings {
			if !containsAnyFold(lower, mapping.keywords) {
				continue
			}
			value := mapping.value(f)
			if value == "" {
				break
			}
			input := f.inputForLabel(ctx, label)
			if input == nil {
				break
			}
			if current, err := input.Value(ctx); err != nil || strings.TrimSpace(current) != "" {
				break
			}
			if err := input.SetValue(ctx, value); err != nil {
				f.result.AddError("failed to fill %q: %v", labelText, err)
				break
			}
			f.result.MarkFilled(labelText)
			break
		}
	}
}

// fillLocation types the profile location into an autocomplete field and
// accepts the first suggestion: type, settle, arrow down, enter, then click
// away to close any remaining suggestion list.
func (f *Filler) fillLocation(ctx context.Context, label browser.Element) {
	location := f.candidate.Personal.Location
	if location == "" {
		return
	}
	input := f.inputForLabel(ctx, label)
	if input == nil {
		return
	}
	if current, err := input.Value(ctx); err != nil || strings.TrimSpace(current) != "" {
		return
	}

	if err := input.SetValue(ctx, location); err != nil {
		f.result.AddError("failed to fill location: %v", err)
		return
	}
	f.pause(ctx)
	_ = input.Press(ctx, browser.KeyArrowDown)
	_ = input.Press(ctx, browser.KeyEnter)
	if body, err := f.page.Query(ctx, "body"); err == nil {
		_ = body.Click(ctx)
	}
	f.result.MarkFilled("Location")
}

// inputForLabel resolves the input a label addresses: its for-target, a
// nested input, or an input next to it in the same container.
func (f *Filler) inputForLabel(ctx context.Context, label browser.Element) browser.Element {
	if id, ok, _ := label.Attribute(ctx, "for"); ok && id != "" {
		if el, err := f.page.Query(ctx, `input[id="`+id+`"]`); err == nil {
			return el
		}
	}
	if el, err := label.Query(ctx, "input"); err == nil {
		return el
	}
	if parent, err := label.Parent(ctx); err == nil {
		if el, err := parent.Query(ctx, "input"); err == nil {
			return el
		}
	}
	return nil
}

func containsAnyFold(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
