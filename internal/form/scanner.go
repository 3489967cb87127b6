// File: internal/form/scanner.go
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
	"github.com/tkoster88/applypilot-cli/internal/config"
)

// Selector for the answer control of a dropdown-style question, shared by
// classification and the filler.
const dropdownControlSelector = `[role="combobox"], select`

const textControlSelector = `input[type="text"], input[type="email"], input[type="tel"], input[type="number"], textarea`

// blockSelectors are the question-block discovery strategies, tried in order
// until one yields results.
var blockSelectors = []string{
	`li[class*="application-question"]`,
	`form li`,
}

// requiredMarkers are the glyphs a block carries when the question is
// mandatory.
var requiredMarkers = []string{"✱", "*"}

// skipLabels name the basic-info and upload fields handled outside the
// question loop.
var skipLabels = []string{
	"full name", "email", "phone", "current location",
	"current company", "resume", "linkedin", "cv",
}

// Scanner discovers and classifies question blocks on the live form.
type Scanner struct {
	page   browser.Page
	cfg    config.FillerConfig
	logger *zap.Logger
}

// NewScanner creates a scanner over one page.
func NewScanner(page browser.Page, cfg config.FillerConfig, logger *zap.Logger) *Scanner {
	return &Scanner{page: page, cfg: cfg, logger: logger.Named("scanner")}
}

// Scan enumerates the visible question blocks in document order. Field
// identity is structural, so every pass recomputes the list from the live
// DOM.
func (s *Scanner) Scan(ctx context.Context) ([]Field, error) {
	blocks, err := s.discoverBlocks(ctx)
	if err != nil {
		return nil, err
	}

	var fields []Field
	seen := map[string]bool{}
	for _, block := range blocks {
		field, ok, err := s.examineBlock(ctx, block)
		if err != nil {
			s.logger.Debug("Skipping unreadable block", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		prefix := dedupeKey(field.Question, s.cfg.DedupePrefixLength)
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		fields = append(fields, field)
	}

	s.logger.Info("Form scan complete", zap.Int("fields", len(fields)))
	return fields, nil
}

func (s *Scanner) discoverBlocks(ctx context.Context) ([]browser.Element, error) {
	for _, selector := range blockSelectors {
		blocks, err := s.page.QueryAll(ctx, selector)
		if err != nil {
			return nil, fmt.Errorf("block discovery with %q failed: %w", selector, err)
		}
		if len(blocks) > 0 {
			s.logger.Debug("Question blocks discovered",
				zap.String("selector", selector), zap.Int("count", len(blocks)))
			return blocks, nil
		}
	}
	return nil, nil
}

func (s *Scanner) examineBlock(ctx context.Context, block browser.Element) (Field, bool, error) {
	if visible, err := block.Visible(ctx); err != nil || !visible {
		return Field{}, false, err
	}

	text, err := block.Text(ctx)
	if err != nil {
		return Field{}, false, err
	}
	question := firstLine(text)
	required := containsAny(text, requiredMarkers)

	_, dropdownErr := block.Query(ctx, dropdownControlSelector)
	hasDropdown := dropdownErr == nil
	if dropdownErr != nil && !errors.Is(dropdownErr, browser.ErrNotFound) {
		return Field{}, false, dropdownErr
	}

	// Guard against stray option text masquerading as a question: short,
	// unmarked, control-less blocks are noise.
	if len(question) < s.cfg.MinQuestionLength && !required && !hasDropdown {
		return Field{}, false, nil
	}
	if question == "" {
		return Field{}, false, nil
	}
	if matchesSkipLabel(question) {
		return Field{}, false, nil
	}

	kind, err := s.classify(ctx, block, hasDropdown)
	if err != nil {
		return Field{}, false, err
	}
	if kind == KindUnknown {
		s.logger.Debug("Unclassifiable question block", zap.String("question", question))
		return Field{}, false, nil
	}

	return Field{Block: block, Question: question, Kind: kind, Required: required}, true, nil
}

// classify maps a block to its control type: dropdown beats radio beats
// checkbox beats text.
func (s *Scanner) classify(ctx context.Context, block browser.Element, hasDropdown bool) (Kind, error) {
	if hasDropdown {
		return KindDropdown, nil
	}

	radios, err := block.QueryAll(ctx, `input[type="radio"]`)
	if err != nil {
		return KindUnknown, err
	}
	if hasRadioGroup(ctx, radios) {
		return KindRadio, nil
	}

	checkboxes, err := block.QueryAll(ctx, `input[type="checkbox"]`)
	if err != nil {
		return KindUnknown, err
	}
	if len(checkboxes) > 0 {
		return KindCheckbox, nil
	}

	if _, err := block.Query(ctx, textControlSelector); err == nil {
		return KindText, nil
	} else if !errors.Is(err, browser.ErrNotFound) {
		return KindUnknown, err
	}

	return KindUnknown, nil
}

// hasRadioGroup reports whether at least two radios share a name.
func hasRadioGroup(ctx context.Context, radios []browser.Element) bool {
	if len(radios) < 2 {
		return false
	}
	byName := map[string]int{}
	for _, radio := range radios {
		name, _, err := radio.Attribute(ctx, "name")
		if err != nil {
			continue
		}
		byName[name]++
		if byName[name] >= 2 {
			return true
		}
	}
	return false
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func dedupeKey(question string, prefixLen int) string {
	key := strings.ToLower(question)
	if len(key) > prefixLen {
		key = key[:prefixLen]
	}
	return key
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func matchesSkipLabel(question string) bool {
	lower := strings.ToLower(question)
	for _, label := range skipLabels {
		if strings.Contains(lower, label) {
			return true
		}
	}
	return false
}
