// File: internal/form/coverletter.go
package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/tkoster88/applypilot-cli/internal/browser"
)

const coverLetterInstruction = "Write a cover letter of 3-4 short paragraphs: open with genuine enthusiasm " +
	"for the role, connect the candidate's most relevant experience to it, and address the role's " +
	"requirements. No more than 250 words. Plain text, no bracketed placeholders."

// coverLetterLocators are the discovery strategies for the cover letter
// control, in priority order.
var coverLetterLocators = []string{
	`textarea[name*="cover"]`,
	`textarea[id*="cover"]`,
	`textarea[placeholder*="cover"]`,
	`textarea[aria-label*="cover"]`,
	`div[class*="additional"] textarea`,
}

// FillCoverLetter locates the cover letter field and fills it: the oracle
// first, then a deterministic template built from the profile. No-op when
// the form has no such field.
func (f *Filler) FillCoverLetter(ctx context.Context) {
	textarea := f.findCoverLetter(ctx)
	if textarea == nil {
		f.logger.Debug("No cover letter field on this form")
		return
	}

	if current, err := textarea.Value(ctx); err == nil &&
		len(strings.TrimSpace(current)) >= f.cfg.CoverLetterMinLen {
		f.result.MarkFilled("Cover letter")
		return
	}

	letter := f.ask(ctx, "Write a cover letter for this application.", coverLetterInstruction)
	if letter == "" {
		letter = f.templateLetter()
	}
	if err := textarea.SetValue(ctx, letter); err != nil {
		f.result.AddError("failed to fill cover letter: %v", err)
		return
	}
	f.result.MarkFilled("Cover letter")
}

func (f *Filler) findCoverLetter(ctx context.Context) browser.Element {
	for _, selector := range coverLetterLocators {
		if el, err := f.page.Query(ctx, selector); err == nil {
			return el
		}
	}

	// Label text scan for forms that name the field only in a label.
	labels, err := f.page.QueryAll(ctx, "label")
	if err != nil {
		return nil
	}
	for _, label := range labels {
		text, err := label.Text(ctx)
		if err != nil || !strings.Contains(strings.ToLower(text), "cover letter") {
			continue
		}
		if id, ok, _ := label.Attribute(ctx, "for"); ok && id != "" {
			if el, err := f.page.Query(ctx, `textarea[id="`+id+`"]`); err == nil {
				return el
			}
		}
		if parent, err := label.Parent(ctx); err == nil {
			if el, err := parent.Query(ctx, "textarea"); err == nil {
				return el
			}
		}
	}
	return nil
}

// templateLetter is the deterministic fallback when the oracle is
// unavailable.
func (f *Filler) templateLetter() string {
	c := f.candidate
	var experience string
	if company := c.CurrentCompany(); company != "" {
		experience = fmt.Sprintf("In my current role as %s at %s, I have built the skills this position calls for, and I am confident they transfer directly.",
			c.CurrentPosition(), company)
	} else {
		experience = fmt.Sprintf("My background in %s has prepared me well for the responsibilities this position carries.",
			c.CurrentPosition())
	}

	return strings.Join([]string{
		"Dear Hiring Team,",
		"I am excited to apply for this position. The role aligns closely with my experience and with the direction I want my career to take.",
		experience,
		"I would welcome the opportunity to discuss how I can contribute to your team. Thank you for your consideration.",
		"Sincerely,\n" + c.FullName(),
	}, "\n\n")
}
