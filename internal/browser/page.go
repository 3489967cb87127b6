// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/config"
)

// registryJS installs the element handle registry. Handles are plain indexes
// into a page-lifetime array; navigation clears the array and stales every
// outstanding handle.
const registryJS = `(() => {
	if (!window.__apReg) {
		window.__apReg = { els: [], add(el) { this.els.push(el); return this.els.length - 1; } };
	}
	return true;
})()`

// chromedpPage drives one tab over the DevTools protocol.
type chromedpPage struct {
	browserCtx context.Context
	cfg        config.BrowserConfig
	logger     *zap.Logger
}

func newChromedpPage(browserCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *chromedpPage {
	return &chromedpPage{browserCtx: browserCtx, cfg: cfg, logger: logger.Named("page")}
}

// run executes chromedp actions on the tab, carrying over the caller's
// deadline when it has one.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.browserCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) ensureRegistry(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(registryJS, nil))
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	timeout := p.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.logger.Debug("Navigating", zap.String("url", url))
	if err := p.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (p *chromedpPage) Query(ctx context.Context, selector string) (Element, error) {
	if err := p.ensureRegistry(ctx); err != nil {
		return nil, err
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? window.__apReg.add(el) : -1;
	})()`, strconv.Quote(selector))

	var idx int
	if err := p.run(ctx, chromedp.Evaluate(js, &idx)); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	return &chromedpElement{page: p, idx: idx}, nil
}

func (p *chromedpPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := p.ensureRegistry(ctx); err != nil {
		return nil, err
	}
	js := fmt.Sprintf(`(() =>
		Array.from(document.querySelectorAll(%s)).map(el => window.__apReg.add(el))
	)()`, strconv.Quote(selector))

	var indexes []int
	if err := p.run(ctx, chromedp.Evaluate(js, &indexes)); err != nil {
		return nil, fmt.Errorf("queryAll %q failed: %w", selector, err)
	}
	elements := make([]Element, 0, len(indexes))
	for _, idx := range indexes {
		elements = append(elements, &chromedpElement{page: p, idx: idx})
	}
	return elements, nil
}

func (p *chromedpPage) Press(ctx context.Context, key string) error {
	return p.dispatchKey(ctx, key)
}

func (p *chromedpPage) Evaluate(ctx context.Context, expression string, out any) error {
	if err := p.run(ctx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// keyDef carries the DevTools key event parameters for the handful of
// non-character keys the filler uses.
type keyDef struct {
	key  string
	code string
	vk   int64
	text string
}

var keyDefs = map[string]keyDef{
	KeyArrowDown: {key: "ArrowDown", code: "ArrowDown", vk: 40},
	KeyArrowUp:   {key: "ArrowUp", code: "ArrowUp", vk: 38},
	KeyEnter:     {key: "Enter", code: "Enter", vk: 13, text: "\r"},
	KeyEscape:    {key: "Escape", code: "Escape", vk: 27},
	KeyTab:       {key: "Tab", code: "Tab", vk: 9},
}

func (p *chromedpPage) dispatchKey(ctx context.Context, key string) error {
	def, ok := keyDefs[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	down := input.DispatchKeyEvent(input.KeyRawDown).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).
		WithNativeVirtualKeyCode(def.vk)
	if def.text != "" {
		down = input.DispatchKeyEvent(input.KeyDown).
			WithKey(def.key).
			WithCode(def.code).
			WithText(def.text).
			WithUnmodifiedText(def.text).
			WithWindowsVirtualKeyCode(def.vk).
			WithNativeVirtualKeyCode(def.vk)
	}
	up := input.DispatchKeyEvent(input.KeyUp).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).
		WithNativeVirtualKeyCode(def.vk)

	if err := p.run(ctx, down, up); err != nil {
		return fmt.Errorf("key dispatch %q failed: %w", key, err)
	}
	return nil
}

// chromedpElement addresses one registered node.
type chromedpElement struct {
	page *chromedpPage
	idx  int
}

func (e *chromedpElement) ref() string {
	return fmt.Sprintf("window.__apReg.els[%d]", e.idx)
}

// evalResult is the uniform shape element scripts return, so stale handles
// are distinguishable from legitimate empty values.
type evalResult struct {
	OK    bool   `json:"ok"`
	Value string `json:"value"`
	Flag  bool   `json:"flag"`
}

func (e *chromedpElement) eval(ctx context.Context, body string, args ...any) (evalResult, error) {
	js := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return { ok: false, value: "", flag: false };
		%s
	})()`, e.ref(), fmt.Sprintf(body, args...))

	var res evalResult
	if err := e.page.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return res, fmt.Errorf("element script failed: %w", err)
	}
	if !res.OK {
		return res, fmt.Errorf("stale element handle %d", e.idx)
	}
	return res, nil
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, `return { ok: true, value: (el.innerText || el.textContent || "").trim(), flag: false };`)
	return res.Value, err
}

func (e *chromedpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	res, err := e.eval(ctx, `
		const v = el.getAttribute(%s);
		return { ok: true, value: v === null ? "" : v, flag: v !== null };`, strconv.Quote(name))
	return res.Value, res.Flag, err
}

func (e *chromedpElement) TagName(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, `return { ok: true, value: el.tagName.toLowerCase(), flag: false };`)
	return res.Value, err
}

func (e *chromedpElement) Value(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, `return { ok: true, value: el.value === undefined ? "" : String(el.value), flag: false };`)
	return res.Value, err
}

func (e *chromedpElement) SetValue(ctx context.Context, value string) error {
	// Use the prototype setter so framework-controlled inputs observe the
	// write, then fire the events their bindings listen for.
	_, err := e.eval(ctx, `
		const value = %s;
		const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return { ok: true, value: "", flag: true };`, strconv.Quote(value))
	return err
}

func (e *chromedpElement) Click(ctx context.Context) error {
	_, err := e.eval(ctx, `
		el.scrollIntoView({ block: 'center', inline: 'center' });
		el.click();
		return { ok: true, value: "", flag: true };`)
	return err
}

func (e *chromedpElement) Press(ctx context.Context, key string) error {
	if _, err := e.eval(ctx, `el.focus(); return { ok: true, value: "", flag: true };`); err != nil {
		return err
	}
	return e.page.dispatchKey(ctx, key)
}

func (e *chromedpElement) Checked(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, `return { ok: true, value: "", flag: !!el.checked };`)
	return res.Flag, err
}

func (e *chromedpElement) Visible(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, `return { ok: true, value: "", flag: !!(el.offsetParent || el.getClientRects().length) };`)
	return res.Flag, err
}

func (e *chromedpElement) SelectOption(ctx context.Context, text string) error {
	res, err := e.eval(ctx, `
		const want = %s;
		if (el.tagName !== 'SELECT') return { ok: true, value: "", flag: false };
		for (const opt of el.options) {
			if (opt.text.trim() === want) {
				el.value = opt.value;
				el.dispatchEvent(new Event('input', { bubbles: true }));
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return { ok: true, value: "", flag: true };
			}
		}
		return { ok: true, value: "", flag: false };`, strconv.Quote(text))
	if err != nil {
		return err
	}
	if !res.Flag {
		return fmt.Errorf("option %q not found in select: %w", text, ErrNotFound)
	}
	return nil
}

func (e *chromedpElement) Options(ctx context.Context) ([]string, error) {
	js := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el || el.tagName !== 'SELECT') return [];
		return Array.from(el.options).map(o => o.text.trim());
	})()`, e.ref())

	var options []string
	if err := e.page.run(ctx, chromedp.Evaluate(js, &options)); err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	return options, nil
}

func (e *chromedpElement) Query(ctx context.Context, selector string) (Element, error) {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		if (!root) return -2;
		const el = root.querySelector(%s);
		return el ? window.__apReg.add(el) : -1;
	})()`, e.ref(), strconv.Quote(selector))

	var idx int
	if err := e.page.run(ctx, chromedp.Evaluate(js, &idx)); err != nil {
		return nil, fmt.Errorf("scoped query %q failed: %w", selector, err)
	}
	switch {
	case idx == -2:
		return nil, fmt.Errorf("stale element handle %d", e.idx)
	case idx < 0:
		return nil, ErrNotFound
	}
	return &chromedpElement{page: e.page, idx: idx}, nil
}

func (e *chromedpElement) Parent(ctx context.Context) (Element, error) {
	js := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return -2;
		return el.parentElement ? window.__apReg.add(el.parentElement) : -1;
	})()`, e.ref())

	var idx int
	if err := e.page.run(ctx, chromedp.Evaluate(js, &idx)); err != nil {
		return nil, fmt.Errorf("parent lookup failed: %w", err)
	}
	switch {
	case idx == -2:
		return nil, fmt.Errorf("stale element handle %d", e.idx)
	case idx < 0:
		return nil, ErrNotFound
	}
	return &chromedpElement{page: e.page, idx: idx}, nil
}

func (e *chromedpElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		if (!root) return null;
		return Array.from(root.querySelectorAll(%s)).map(el => window.__apReg.add(el));
	})()`, e.ref(), strconv.Quote(selector))

	var indexes []int
	if err := e.page.run(ctx, chromedp.Evaluate(js, &indexes)); err != nil {
		return nil, fmt.Errorf("scoped queryAll %q failed: %w", selector, err)
	}
	elements := make([]Element, 0, len(indexes))
	for _, idx := range indexes {
		elements = append(elements, &chromedpElement{page: e.page, idx: idx})
	}
	return elements, nil
}
