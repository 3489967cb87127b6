// File: internal/form/verify.go
package form

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/resolver"
)

// Repair is the mutating verification pass. It re-scans the form, re-runs
// the demographic and consent sweeps (both idempotent), re-commits every
// field still empty, and records fields that stay unresolved. Fields already
// marked filled are never touched again, so convergence is monotonic.
func (f *Filler) Repair(ctx context.Context, scanner *Scanner) {
	fields, err := scanner.Scan(ctx)
	if err != nil {
		f.result.AddError("repair scan failed: %v", err)
		return
	}
	f.logger.Info("Repair pass started", zap.Int("fields", len(fields)))

	// Demographic sweep first: these dropdowns are the most common stragglers.
	for _, field := range fields {
		if field.Kind == KindDropdown && resolver.IsDemographic(field.Question) &&
			!f.result.IsFilled(field.Question) && f.fieldEmpty(ctx, field) {
			f.FillField(ctx, field)
		}
	}
	f.SweepConsent(ctx)

	for _, field := range fields {
		if f.result.IsFilled(field.Question) {
			continue
		}
		if !f.fieldEmpty(ctx, field) {
			f.result.MarkFilled(field.Question)
			continue
		}
		f.FillField(ctx, field)
		if !f.result.IsFilled(field.Question) && f.fieldEmpty(ctx, field) {
			f.result.MarkEmpty(field.Question)
		}
	}
}

// Audit is the read-only completeness report, restricted to blocks carrying
// an explicit required marker. It performs no mutation; it only records
// still-empty required fields and reports overall completion.
func (f *Filler) Audit(ctx context.Context, scanner *Scanner) bool {
	fields, err := scanner.Scan(ctx)
	if err != nil {
		f.result.AddError("audit scan failed: %v", err)
		return false
	}

	complete := true
	for _, field := range fields {
		if !field.Required {
			continue
		}
		if f.result.IsFilled(field.Question) {
			continue
		}
		if f.fieldEmpty(ctx, field) {
			f.result.MarkEmpty(field.Question)
			complete = false
			continue
		}
		f.result.MarkFilled(field.Question)
	}

	f.logger.Info("Audit pass complete",
		zap.Bool("complete", complete),
		zap.Int("fields_empty", len(f.result.FieldsEmpty())))
	return complete
}

// fieldEmpty applies the type-specific emptiness predicate.
func (f *Filler) fieldEmpty(ctx context.Context, field Field) bool {
	switch field.Kind {
	case KindText:
		input, err := field.Block.Query(ctx, textControlSelector)
		if err != nil {
			return false
		}
		value, err := input.Value(ctx)
		return err == nil && strings.TrimSpace(value) == ""

	case KindDropdown:
		return f.dropdownEmpty(ctx, field)

	case KindRadio:
		radios, err := field.Block.QueryAll(ctx, `input[type="radio"]`)
		if err != nil || len(radios) == 0 {
			return false
		}
		for _, radio := range radios {
			if checked, err := radio.Checked(ctx); err == nil && checked {
				return false
			}
		}
		return true

	case KindCheckbox:
		// Only consent-like boxes count as required by this pass.
		if _, ok := consentCategoryFor(field.Question); !ok {
			return false
		}
		boxes, err := field.Block.QueryAll(ctx, `input[type="checkbox"]`)
		if err != nil {
			return false
		}
		for _, box := range boxes {
			if checked, err := box.Checked(ctx); err == nil && checked {
				return false
			}
		}
		return true

	default:
		return false
	}
}

// dropdownEmpty evaluates displayed state through a layered check: native
// select value, composite inner input value, a visible selected-option
// marker, and finally the single-line display text heuristic rejecting
// placeholder-like strings.
func (f *Filler) dropdownEmpty(ctx context.Context, field Field) bool {
	control, err := field.Block.Query(ctx, dropdownControlSelector)
	if err != nil {
		return false
	}

	if tag, err := control.TagName(ctx); err == nil && tag == "select" {
		value, err := control.Value(ctx)
		return err == nil && strings.TrimSpace(value) == ""
	}

	if inner, err := control.Query(ctx, "input"); err == nil {
		if value, err := inner.Value(ctx); err == nil && strings.TrimSpace(value) != "" {
			return false
		}
	}

	if marker, err := field.Block.Query(ctx, `[aria-selected="true"], [class*="selected"]`); err == nil {
		if visible, err := marker.Visible(ctx); err == nil && visible {
			return false
		}
	}

	displayed := f.displayedText(ctx, control)
	if displayed != "" && !resolver.IsPlaceholder(displayed) && !looksLikePlaceholder(displayed) {
		return false
	}
	return true
}

// looksLikePlaceholder catches placeholder phrasings beyond the exact
// sentinels ("Please select an option", "Choose one").
func looksLikePlaceholder(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range []string{"select", "choose", "pick one"} {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}
