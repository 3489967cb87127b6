// File: internal/form/dropdown.go
package form

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/resolver"
)

// dropdownSettle is the pause after triggering a UI state change (opening a
// listbox, committing a selection) before reading the DOM again.
const dropdownSettle = 150 * time.Millisecond

// optionStrategy is one way of locating the expanded option list. Strategies
// run in order; the first one yielding more than one candidate wins. The
// ">1" stop condition defends against selectors that match a lone stray node
// on form implementations they were not written for.
type optionStrategy struct {
	name string
	find func(ctx context.Context, f *Filler, field Field) ([]browser.Element, error)
}

var optionStrategies = []optionStrategy{
	{
		name: "block-scoped options",
		find: func(ctx context.Context, f *Filler, field Field) ([]browser.Element, error) {
			return field.Block.QueryAll(ctx, `[role="option"]`)
		},
	},
	{
		name: "listbox options",
		find: func(ctx context.Context, f *Filler, _ Field) ([]browser.Element, error) {
			return f.page.QueryAll(ctx, `[role="listbox"] [role="option"]`)
		},
	},
	{
		name: "page options",
		find: func(ctx context.Context, f *Filler, _ Field) ([]browser.Element, error) {
			return f.page.QueryAll(ctx, `[role="option"]`)
		},
	},
	{
		name: "menu items",
		find: func(ctx context.Context, f *Filler, _ Field) ([]browser.Element, error) {
			return f.page.QueryAll(ctx, `ul[class*="dropdown"] li, div[class*="option"]`)
		},
	},
}

func (f *Filler) fillDropdown(ctx context.Context, field Field) {
	control, err := field.Block.Query(ctx, dropdownControlSelector)
	if err != nil {
		f.logger.Warn("Dropdown control not found", zap.String("question", field.Question), zap.Error(err))
		return
	}

	tag, err := control.TagName(ctx)
	if err != nil {
		f.result.AddError("failed to inspect dropdown for %q: %v", field.Question, err)
		return
	}

	if tag == "select" {
		f.fillNativeSelect(ctx, field, control)
		return
	}
	f.fillCompositeDropdown(ctx, field, control)
}

func (f *Filler) fillNativeSelect(ctx context.Context, field Field, control browser.Element) {
	if value, err := control.Value(ctx); err == nil && strings.TrimSpace(value) != "" {
		f.result.MarkFilled(field.Question)
		return
	}

	options, err := control.Options(ctx)
	if err != nil {
		f.result.AddError("failed to read options for %q: %v", field.Question, err)
		return
	}

	answer, ok := f.chooseDropdownAnswer(ctx, field.Question, options)
	if !ok {
		f.logger.Debug("No selectable option", zap.String("question", field.Question))
		return
	}
	if err := control.SelectOption(ctx, answer); err != nil {
		f.result.AddError("failed to select %q for %q: %v", answer, field.Question, err)
		return
	}
	f.result.MarkFilled(field.Question)
}

func (f *Filler) fillCompositeDropdown(ctx context.Context, field Field, control browser.Element) {
	displayed := f.displayedText(ctx, control)
	if displayed != "" && !resolver.IsPlaceholder(displayed) {
		f.result.MarkFilled(field.Question)
		return
	}

	if err := control.Click(ctx); err != nil {
		f.result.AddError("failed to open dropdown for %q: %v", field.Question, err)
		return
	}
	f.pause(ctx)

	optionEls, texts := f.discoverOptions(ctx, field)
	if len(optionEls) <= 1 {
		f.blindKeyboardSelect(ctx, field, control)
		return
	}

	answer, ok := f.chooseDropdownAnswer(ctx, field.Question, texts)
	if !ok {
		// Nothing selectable; close without committing.
		_ = control.Press(ctx, browser.KeyEscape)
		f.logger.Debug("Dropdown left unresolved", zap.String("question", field.Question))
		return
	}
	target := indexOfOption(texts, answer)
	if target < 0 {
		_ = control.Press(ctx, browser.KeyEscape)
		return
	}

	f.commitDropdownChoice(ctx, field, control, optionEls[target], target, displayed)
}

// discoverOptions runs the strategy list against the opened control.
func (f *Filler) discoverOptions(ctx context.Context, field Field) ([]browser.Element, []string) {
	for _, strategy := range optionStrategies {
		els, err := strategy.find(ctx, f, field)
		if err != nil || len(els) <= 1 {
			continue
		}
		texts := make([]string, len(els))
		for i, el := range els {
			if text, err := el.Text(ctx); err == nil {
				texts[i] = firstLine(text)
			}
		}
		f.logger.Debug("Dropdown options discovered",
			zap.String("question", field.Question),
			zap.String("strategy", strategy.name),
			zap.Int("count", len(els)))
		return els, texts
	}
	return nil, nil
}

// commitDropdownChoice prefers keyboard navigation over pointer clicks:
// arrow to the target position, activate, then verify the control closed or
// its text changed. A pointer click on the option element is the second
// attempt when keyboard could not be verified.
func (f *Filler) commitDropdownChoice(
	ctx context.Context,
	field Field,
	control browser.Element,
	option browser.Element,
	target int,
	baseline string,
) {
	for i := 0; i <= target; i++ {
		if err := control.Press(ctx, browser.KeyArrowDown); err != nil {
			f.result.AddError("keyboard navigation failed for %q: %v", field.Question, err)
			return
		}
	}
	if err := control.Press(ctx, browser.KeyEnter); err != nil {
		f.result.AddError("keyboard commit failed for %q: %v", field.Question, err)
		return
	}
	f.pause(ctx)

	if f.commitVerified(ctx, control, baseline) {
		f.result.MarkFilled(field.Question)
		return
	}

	// Second attempt: direct pointer activation of the option node.
	if err := option.Click(ctx); err == nil {
		f.pause(ctx)
		if f.commitVerified(ctx, control, baseline) {
			f.result.MarkFilled(field.Question)
			return
		}
	}

	if f.cfg.AssumeSuccessOnUnverifiedCommit {
		f.logger.Debug("Dropdown commit unverified, assuming success",
			zap.String("question", field.Question))
		f.result.MarkFilled(field.Question)
		return
	}
	_ = control.Press(ctx, browser.KeyEscape)
	f.logger.Warn("Dropdown commit could not be verified", zap.String("question", field.Question))
}

// commitVerified checks the two success signals: the listbox closed, or the
// displayed text moved off the baseline to a non-placeholder value.
func (f *Filler) commitVerified(ctx context.Context, control browser.Element, baseline string) bool {
	if expanded, ok, err := control.Attribute(ctx, "aria-expanded"); err == nil && ok && expanded == "false" {
		return true
	}
	displayed := f.displayedText(ctx, control)
	return displayed != baseline && displayed != "" && !resolver.IsPlaceholder(displayed)
}

// blindKeyboardSelect handles widgets whose options never appear in the DOM.
// Demographic questions hunt for a decline-to-answer entry within a bounded
// number of steps; everything else commits after a single step.
func (f *Filler) blindKeyboardSelect(ctx context.Context, field Field, control browser.Element) {
	steps := 1
	if resolver.IsDemographic(field.Question) {
		steps = f.cfg.KeyboardSearchLimit
	}

	for i := 0; i < steps; i++ {
		if err := control.Press(ctx, browser.KeyArrowDown); err != nil {
			f.result.AddError("blind navigation failed for %q: %v", field.Question, err)
			return
		}
		f.pause(ctx)
		if steps > 1 && resolver.IsDeclineOption(f.displayedText(ctx, control)) {
			break
		}
	}

	if err := control.Press(ctx, browser.KeyEnter); err != nil {
		f.result.AddError("blind commit failed for %q: %v", field.Question, err)
		return
	}
	f.logger.Debug("Blind keyboard selection committed", zap.String("question", field.Question))
	f.result.MarkFilled(field.Question)
}

// chooseDropdownAnswer runs the dropdown resolver chain: deterministic rules
// (demographic overrides included), then the oracle with the option list in
// the prompt, then the first non-placeholder option.
func (f *Filler) chooseDropdownAnswer(ctx context.Context, question string, options []string) (string, bool) {
	if answer, ok := f.resolver.Resolve(question, options); ok {
		return answer, true
	}
	if answer := f.ask(ctx, optionPrompt(question, options),
		"Answer with exactly one of the listed options, verbatim."); answer != "" {
		if idx := indexOfOption(options, answer); idx >= 0 {
			return options[idx], true
		}
	}
	return resolver.FirstSelectable(options)
}

func (f *Filler) displayedText(ctx context.Context, control browser.Element) string {
	text, err := control.Text(ctx)
	if err != nil {
		return ""
	}
	return firstLine(text)
}

// pause waits the settle delay, honoring cancellation.
func (f *Filler) pause(ctx context.Context) {
	select {
	case <-time.After(dropdownSettle):
	case <-ctx.Done():
	}
}
