// File: internal/form/field.go

// Package form implements the adaptive form-resolution engine: scanning an
// arbitrary rendered application form, classifying each question block,
// deciding answers through the resolver chain and committing them, then
// verifying and repairing whatever remains empty.
package form

import (
	"github.com/tkoster88/applypilot-cli/internal/browser"
)

// Kind is the detected control type of a question block.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindDropdown
	KindRadio
	KindCheckbox
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDropdown:
		return "dropdown"
	case KindRadio:
		return "radio"
	case KindCheckbox:
		return "checkbox"
	default:
		return "unknown"
	}
}

// Field is one detected question unit. Identity is structural: the question
// text plus position in the scan, recomputed on every pass. Block is the live
// handle and goes stale on navigation.
type Field struct {
	Block    browser.Element
	Question string
	Kind     Kind
	Required bool
}
