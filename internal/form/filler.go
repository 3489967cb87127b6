// File: internal/form/filler.go
package form

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/config"
	"github.com/tkoster88/applypilot-cli/internal/profile"
	"github.com/tkoster88/applypilot-cli/internal/resolver"
)

// AnswerOracle is the generative fallback the filler consults when the
// deterministic resolver has no rule. Implementations must degrade to ""
// rather than fail.
type AnswerOracle interface {
	Ask(ctx context.Context, question, extraInstruction string) string
}

// Filler commits answers to the live form. A single field failure is logged
// and recorded, never propagated: the scan always continues.
type Filler struct {
	page      browser.Page
	cfg       config.FillerConfig
	candidate *profile.Candidate
	resolver  *resolver.Resolver
	oracle    AnswerOracle // nil disables the generative fallback
	result    *Result
	logger    *zap.Logger
}

// NewFiller wires a filler over one page and one shared result accumulator.
func NewFiller(
	page browser.Page,
	cfg config.FillerConfig,
	candidate *profile.Candidate,
	res *resolver.Resolver,
	oracle AnswerOracle,
	result *Result,
	logger *zap.Logger,
) *Filler {
	return &Filler{
		page:      page,
		cfg:       cfg,
		candidate: candidate,
		resolver:  res,
		oracle:    oracle,
		result:    result,
		logger:    logger.Named("filler"),
	}
}

// Result exposes the shared accumulator.
func (f *Filler) Result() *Result { return f.result }

// ask consults the oracle, tolerating its absence.
func (f *Filler) ask(ctx context.Context, question, instruction string) string {
	if f.oracle == nil {
		return ""
	}
	return strings.TrimSpace(f.oracle.Ask(ctx, question, instruction))
}

// FillAll runs the consent sweep and then commits every scanned field.
func (f *Filler) FillAll(ctx context.Context, fields []Field) {
	f.SweepConsent(ctx)
	for _, field := range fields {
		f.FillField(ctx, field)
	}
}

// FillField dispatches one field to its type-specific commit logic.
func (f *Filler) FillField(ctx context.Context, field Field) {
	f.logger.Debug("Filling field",
		zap.String("question", field.Question),
		zap.Stringer("kind", field.Kind),
		zap.Bool("required", field.Required))

	switch field.Kind {
	case KindText:
		f.fillText(ctx, field)
	case KindDropdown:
		f.fillDropdown(ctx, field)
	case KindRadio:
		f.fillRadio(ctx, field)
	case KindCheckbox:
		f.fillCheckbox(ctx, field)
	default:
		f.logger.Debug("Skipping unknown control", zap.String("question", field.Question))
	}
}

func (f *Filler) fillText(ctx context.Context, field Field) {
	input, err := field.Block.Query(ctx, textControlSelector)
	if err != nil {
		f.logger.Warn("Text control not found", zap.String("question", field.Question), zap.Error(err))
		return
	}

	current, err := input.Value(ctx)
	if err == nil && strings.TrimSpace(current) != "" {
		f.result.MarkFilled(field.Question)
		return
	}

	answer, ok := f.resolver.Resolve(field.Question, nil)
	if !ok {
		answer = f.ask(ctx, field.Question, "")
	}
	if answer == "" {
		f.logger.Debug("No answer for text field", zap.String("question", field.Question))
		return
	}

	if err := input.SetValue(ctx, answer); err != nil {
		f.result.AddError("failed to fill %q: %v", field.Question, err)
		return
	}
	f.result.MarkFilled(field.Question)
}

func (f *Filler) fillRadio(ctx context.Context, field Field) {
	radios, err := field.Block.QueryAll(ctx, `input[type="radio"]`)
	if err != nil || len(radios) == 0 {
		f.logger.Warn("Radio group not found", zap.String("question", field.Question), zap.Error(err))
		return
	}

	for _, radio := range radios {
		if checked, err := radio.Checked(ctx); err == nil && checked {
			f.result.MarkFilled(field.Question)
			return
		}
	}

	options := make([]string, len(radios))
	labels := make([]browser.Element, len(radios))
	for i, radio := range radios {
		labels[i], options[i] = f.radioLabel(ctx, field.Block, radio, i)
	}

	target := f.chooseRadio(ctx, field.Question, options)
	if target < 0 {
		target = 0
	}

	// Labels carry the clickable hit area in most renderers; fall back to
	// the input itself when no label is associated.
	clickable := labels[target]
	if clickable == nil {
		clickable = radios[target]
	}
	if err := clickable.Click(ctx); err != nil {
		f.result.AddError("failed to select %q for %q: %v", options[target], field.Question, err)
		return
	}
	f.result.MarkFilled(field.Question)
}

// chooseRadio picks the option index: yes/no heuristics, then the resolver,
// then the oracle, then the first option.
func (f *Filler) chooseRadio(ctx context.Context, question string, options []string) int {
	if answer, ok := resolver.BinaryYesNo(question, options); ok {
		return indexOfOption(options, answer)
	}
	if answer, ok := f.resolver.Resolve(question, options); ok {
		return indexOfOption(options, answer)
	}
	if answer := f.ask(ctx, optionPrompt(question, options),
		"Answer with exactly one of the listed options, verbatim."); answer != "" {
		if idx := indexOfOption(options, answer); idx >= 0 {
			return idx
		}
	}
	return 0
}

// radioLabel finds the label element and text for one radio input.
func (f *Filler) radioLabel(ctx context.Context, block browser.Element, radio browser.Element, position int) (browser.Element, string) {
	if id, ok, _ := radio.Attribute(ctx, "id"); ok && id != "" {
		if label, err := block.Query(ctx, `label[for="`+id+`"]`); err == nil {
			if text, err := label.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
				return label, firstLine(text)
			}
			return label, ""
		}
	}
	// Nearest container text: most renderers wrap the input in its label.
	if parent, err := radio.Parent(ctx); err == nil {
		if tag, err := parent.TagName(ctx); err == nil && tag == "label" {
			if text, err := parent.Text(ctx); err == nil {
				return parent, firstLine(text)
			}
		}
	}
	// Positional pairing as the last resort.
	if labels, err := block.QueryAll(ctx, "label"); err == nil && position < len(labels) {
		if text, err := labels[position].Text(ctx); err == nil {
			return labels[position], firstLine(text)
		}
	}
	if value, ok, _ := radio.Attribute(ctx, "value"); ok {
		return nil, value
	}
	return nil, ""
}

func (f *Filler) fillCheckbox(ctx context.Context, field Field) {
	checkbox, err := field.Block.Query(ctx, `input[type="checkbox"]`)
	if err != nil {
		f.logger.Warn("Checkbox not found", zap.String("question", field.Question), zap.Error(err))
		return
	}

	if checked, err := checkbox.Checked(ctx); err == nil && checked {
		f.result.MarkFilled(field.Question)
		return
	}

	// Consent-style boxes belong to the sweep; this path only sees the rest.
	if _, ok := consentCategoryFor(field.Question); ok {
		return
	}

	answer := f.ask(ctx, field.Question, "Answer with exactly one word: yes or no.")
	if !strings.Contains(strings.ToLower(answer), "yes") {
		f.logger.Debug("Leaving checkbox unchecked", zap.String("question", field.Question))
		return
	}
	if err := checkbox.Click(ctx); err != nil {
		f.result.AddError("failed to check %q: %v", field.Question, err)
		return
	}
	f.result.MarkFilled(field.Question)
}

// indexOfOption matches an answer against option texts by containment in
// either direction.
func indexOfOption(options []string, answer string) int {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return -1
	}
	for i, opt := range options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o == "" {
			continue
		}
		if o == a || strings.Contains(o, a) || strings.Contains(a, o) {
			return i
		}
	}
	return -1
}

func optionPrompt(question string, options []string) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\nOptions:\n")
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(opt)
		b.WriteString("\n")
	}
	return b.String()
}
