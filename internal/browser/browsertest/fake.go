// File: internal/browser/browsertest/fake.go

// Package browsertest provides an in-memory Page/Element implementation for
// tests. It models just enough of a DOM (tree, attributes, a small CSS
// selector subset, input state) to exercise the form engine without a
// browser process.
package browsertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/tkoster88/applypilot-cli/internal/browser"
)

// FakeElement is one node of the fake DOM. Fields are exported so tests can
// build trees with literals and inspect state after the code under test ran.
type FakeElement struct {
	Tag     string
	Attrs   map[string]string
	OwnText string // this node's text, not including children
	Val     string
	Marked  bool // checked state for radios and checkboxes
	Hidden  bool

	ParentNode *FakeElement
	Children   []*FakeElement

	// Hooks let a test script widget behavior (a combobox expanding on
	// click, a listbox consuming arrow keys). All are optional.
	OnClick    func(el *FakeElement)
	OnPress    func(el *FakeElement, key string)
	OnSetValue func(el *FakeElement, value string)
}

// NewElement builds a node and wires parent pointers for its children.
func NewElement(tag string, attrs map[string]string, children ...*FakeElement) *FakeElement {
	if attrs == nil {
		attrs = map[string]string{}
	}
	el := &FakeElement{Tag: strings.ToLower(tag), Attrs: attrs, Children: children}
	for _, child := range children {
		child.ParentNode = el
	}
	return el
}

// WithText sets the node's own text and returns it, for literal tree builds.
func (el *FakeElement) WithText(text string) *FakeElement {
	el.OwnText = text
	return el
}

// Append adds children, wiring parent pointers.
func (el *FakeElement) Append(children ...*FakeElement) *FakeElement {
	for _, child := range children {
		child.ParentNode = el
		el.Children = append(el.Children, child)
	}
	return el
}

func (el *FakeElement) root() *FakeElement {
	node := el
	for node.ParentNode != nil {
		node = node.ParentNode
	}
	return node
}

func (el *FakeElement) walk(visit func(*FakeElement)) {
	visit(el)
	for _, child := range el.Children {
		child.walk(visit)
	}
}

// innerText renders the subtree text the way the real implementation reads
// innerText: own text first, children in order, newline separated.
func (el *FakeElement) innerText() string {
	var parts []string
	el.walk(func(node *FakeElement) {
		if t := strings.TrimSpace(node.OwnText); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}

// -- browser.Element implementation --

func (el *FakeElement) Text(context.Context) (string, error) { return el.innerText(), nil }

func (el *FakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (el *FakeElement) TagName(context.Context) (string, error) { return el.Tag, nil }

func (el *FakeElement) Value(context.Context) (string, error) { return el.Val, nil }

func (el *FakeElement) SetValue(_ context.Context, value string) error {
	el.Val = value
	if el.OnSetValue != nil {
		el.OnSetValue(el, value)
	}
	return nil
}

func (el *FakeElement) Click(ctx context.Context) error {
	switch {
	case el.Tag == "input" && el.Attrs["type"] == "checkbox":
		el.Marked = !el.Marked
	case el.Tag == "input" && el.Attrs["type"] == "radio":
		name := el.Attrs["name"]
		el.root().walk(func(node *FakeElement) {
			if node.Tag == "input" && node.Attrs["type"] == "radio" && node.Attrs["name"] == name {
				node.Marked = node == el
			}
		})
	case el.Tag == "label":
		// Labels activate their control, matching browser behavior.
		if target := el.labelTarget(); target != nil {
			if err := target.Click(ctx); err != nil {
				return err
			}
		}
	}
	if el.OnClick != nil {
		el.OnClick(el)
	}
	return nil
}

func (el *FakeElement) labelTarget() *FakeElement {
	if id := el.Attrs["for"]; id != "" {
		var target *FakeElement
		el.root().walk(func(node *FakeElement) {
			if target == nil && node.Attrs["id"] == id {
				target = node
			}
		})
		return target
	}
	var target *FakeElement
	el.walk(func(node *FakeElement) {
		if target == nil && node != el && node.Tag == "input" {
			target = node
		}
	})
	return target
}

func (el *FakeElement) Press(_ context.Context, key string) error {
	if el.OnPress != nil {
		el.OnPress(el, key)
	}
	return nil
}

func (el *FakeElement) Checked(context.Context) (bool, error) { return el.Marked, nil }

func (el *FakeElement) Visible(context.Context) (bool, error) {
	for node := el; node != nil; node = node.ParentNode {
		if node.Hidden {
			return false, nil
		}
	}
	return true, nil
}

func (el *FakeElement) SelectOption(_ context.Context, text string) error {
	if el.Tag != "select" {
		return fmt.Errorf("not a select: %w", browser.ErrNotFound)
	}
	for _, child := range el.Children {
		if child.Tag == "option" && strings.TrimSpace(child.OwnText) == strings.TrimSpace(text) {
			if v, ok := child.Attrs["value"]; ok {
				el.Val = v
			} else {
				el.Val = strings.TrimSpace(child.OwnText)
			}
			return nil
		}
	}
	return fmt.Errorf("option %q: %w", text, browser.ErrNotFound)
}

func (el *FakeElement) Options(context.Context) ([]string, error) {
	var options []string
	for _, child := range el.Children {
		if child.Tag == "option" {
			options = append(options, strings.TrimSpace(child.OwnText))
		}
	}
	return options, nil
}

func (el *FakeElement) Query(_ context.Context, selector string) (browser.Element, error) {
	matches, err := selectIn(el, selector, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, browser.ErrNotFound
	}
	return matches[0], nil
}

func (el *FakeElement) Parent(context.Context) (browser.Element, error) {
	if el.ParentNode == nil {
		return nil, browser.ErrNotFound
	}
	return el.ParentNode, nil
}

func (el *FakeElement) QueryAll(_ context.Context, selector string) ([]browser.Element, error) {
	matches, err := selectIn(el, selector, -1)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, len(matches))
	for i, m := range matches {
		out[i] = m
	}
	return out, nil
}

// FakePage is the in-memory Page. The zero value is unusable; build it with
// NewPage.
type FakePage struct {
	Root     *FakeElement
	Location string

	// NavigateFunc, EvalFunc and PressFunc let tests script page-level
	// behavior. Navigate always updates Location first.
	NavigateFunc func(url string) error
	EvalFunc     func(expression string, out any) error
	PressFunc    func(key string)
}

// NewPage wraps a body tree in a page.
func NewPage(body *FakeElement) *FakePage {
	return &FakePage{Root: body, Location: "https://jobs.example.com/posting"}
}

func (p *FakePage) Navigate(_ context.Context, url string) error {
	p.Location = url
	if p.NavigateFunc != nil {
		return p.NavigateFunc(url)
	}
	return nil
}

func (p *FakePage) URL(context.Context) (string, error) { return p.Location, nil }

func (p *FakePage) Query(ctx context.Context, selector string) (browser.Element, error) {
	return p.Root.Query(ctx, selector)
}

func (p *FakePage) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return p.Root.QueryAll(ctx, selector)
}

func (p *FakePage) Press(_ context.Context, key string) error {
	if p.PressFunc != nil {
		p.PressFunc(key)
	}
	return nil
}

func (p *FakePage) Evaluate(_ context.Context, expression string, out any) error {
	if p.EvalFunc != nil {
		return p.EvalFunc(expression, out)
	}
	return fmt.Errorf("no evaluate hook installed for %q", firstLine(expression))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var (
	_ browser.Element = (*FakeElement)(nil)
	_ browser.Page    = (*FakePage)(nil)
)
