// File: internal/browser/browser.go

// Package browser wraps the driven Chrome instance behind small capability
// interfaces. The form engine only ever talks to Page and Element, which
// keeps the DOM-independent logic testable against an in-memory fake.
package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Query when no element matches the selector.
var ErrNotFound = errors.New("element not found")

// Key names accepted by Press. Implementations translate them to real
// keyboard input.
const (
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyTab       = "Tab"
)

// Element is a live handle to a DOM node. Handles are only valid while the
// page they came from is loaded; after navigation they go stale and return
// errors.
type Element interface {
	// Text returns the rendered text content, trimmed.
	Text(ctx context.Context) (string, error)
	// Attribute returns an attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// TagName returns the lowercase tag name.
	TagName(ctx context.Context) (string, error)
	// Value returns the current input value (inputs, textareas, selects).
	Value(ctx context.Context) (string, error)
	// SetValue replaces the input value and fires input/change events so
	// framework-bound fields notice the write.
	SetValue(ctx context.Context, value string) error
	// Click scrolls the element into view and clicks it.
	Click(ctx context.Context) error
	// Press focuses the element and sends one key.
	Press(ctx context.Context, key string) error
	// Checked reports the checked state of a checkbox or radio.
	Checked(ctx context.Context) (bool, error)
	// Visible reports whether the element takes part in layout.
	Visible(ctx context.Context) (bool, error)
	// SelectOption picks a native select option by its visible text.
	SelectOption(ctx context.Context, text string) error
	// Options lists a native select's option texts in document order.
	Options(ctx context.Context) ([]string, error)
	// Query finds the first descendant matching the selector.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll finds all descendants matching the selector.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Parent returns the parent element, or ErrNotFound at the tree root.
	Parent(ctx context.Context) (Element, error)
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads a URL and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error
	// URL returns the current location.
	URL(ctx context.Context) (string, error)
	// Query finds the first element matching the selector.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll finds all elements matching the selector.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Press sends one key to whatever currently holds focus.
	Press(ctx context.Context, key string) error
	// Evaluate runs a JavaScript expression and decodes its result into out.
	// Pass nil to discard the result.
	Evaluate(ctx context.Context, expression string, out any) error
}
