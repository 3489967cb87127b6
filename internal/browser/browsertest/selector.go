// File: internal/browser/browsertest/selector.go
package browsertest

import (
	"fmt"
	"strings"
)

// The fake supports the selector subset the engine actually uses: tag names,
// ids, classes, attribute tests ([a], [a="v"], [a*="v"], [a^="v"]), compound
// selectors, the descendant combinator and comma groups.

type attrTest struct {
	name string
	op   string // "", "=", "*=", "^="
	val  string
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrTest
}

func (c compound) matches(el *FakeElement) bool {
	if c.tag != "" && c.tag != "*" && el.Tag != c.tag {
		return false
	}
	if c.id != "" && el.Attrs["id"] != c.id {
		return false
	}
	for _, class := range c.classes {
		if !hasClass(el, class) {
			return false
		}
	}
	for _, at := range c.attrs {
		v, ok := el.Attrs[at.name]
		if !ok {
			return false
		}
		switch at.op {
		case "":
		case "=":
			if v != at.val {
				return false
			}
		case "*=":
			if !strings.Contains(v, at.val) {
				return false
			}
		case "^=":
			if !strings.HasPrefix(v, at.val) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func hasClass(el *FakeElement, class string) bool {
	for _, c := range strings.Fields(el.Attrs["class"]) {
		if c == class {
			return true
		}
	}
	return false
}

func parseCompound(s string) (compound, error) {
	var c compound
	rest := s
	for rest != "" {
		switch rest[0] {
		case '.':
			end := nextDelim(rest[1:])
			c.classes = append(c.classes, rest[1:1+end])
			rest = rest[1+end:]
		case '#':
			end := nextDelim(rest[1:])
			c.id = rest[1 : 1+end]
			rest = rest[1+end:]
		case '[':
			close := strings.IndexByte(rest, ']')
			if close < 0 {
				return c, fmt.Errorf("unterminated attribute selector in %q", s)
			}
			at, err := parseAttr(rest[1:close])
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, at)
			rest = rest[close+1:]
		default:
			end := nextDelim(rest)
			if end == 0 {
				return c, fmt.Errorf("unsupported selector syntax at %q", rest)
			}
			c.tag = strings.ToLower(rest[:end])
			rest = rest[end:]
		}
	}
	if c.tag == "" && c.id == "" && len(c.classes) == 0 && len(c.attrs) == 0 {
		return c, fmt.Errorf("empty compound selector in %q", s)
	}
	return c, nil
}

func nextDelim(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == '[' || s[i] == '#' {
			return i
		}
	}
	return len(s)
}

func parseAttr(s string) (attrTest, error) {
	for _, op := range []string{"*=", "^=", "="} {
		if i := strings.Index(s, op); i >= 0 {
			val := strings.Trim(s[i+len(op):], `"'`)
			return attrTest{name: strings.TrimSpace(s[:i]), op: op, val: val}, nil
		}
	}
	name := strings.TrimSpace(s)
	if name == "" {
		return attrTest{}, fmt.Errorf("empty attribute selector")
	}
	return attrTest{name: name}, nil
}

// selectIn evaluates a selector against root's descendants (root itself is
// never a match, per querySelector semantics). limit < 0 means all matches.
func selectIn(root *FakeElement, selector string, limit int) ([]*FakeElement, error) {
	var chains [][]compound
	for _, group := range strings.Split(selector, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		var chain []compound
		for _, part := range strings.Fields(group) {
			c, err := parseCompound(part)
			if err != nil {
				return nil, err
			}
			chain = append(chain, c)
		}
		chains = append(chains, chain)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("empty selector %q", selector)
	}

	var matches []*FakeElement
	seen := map[*FakeElement]bool{}
	var visit func(el *FakeElement)
	visit = func(el *FakeElement) {
		if limit >= 0 && len(matches) >= limit {
			return
		}
		if el != root && !seen[el] {
			for _, chain := range chains {
				if matchChain(el, root, chain) {
					matches = append(matches, el)
					seen[el] = true
					break
				}
			}
		}
		for _, child := range el.Children {
			visit(child)
		}
	}
	visit(root)
	return matches, nil
}

// matchChain checks the last compound against el and walks its ancestors for
// the earlier ones. Like querySelector, ancestors above the scoping root
// still count for combinator purposes.
func matchChain(el, _ *FakeElement, chain []compound) bool {
	if !chain[len(chain)-1].matches(el) {
		return false
	}
	remaining := chain[:len(chain)-1]
	node := el.ParentNode
	for len(remaining) > 0 {
		if node == nil {
			return false
		}
		if remaining[len(remaining)-1].matches(node) {
			remaining = remaining[:len(remaining)-1]
		}
		node = node.ParentNode
	}
	return true
}
