// File: internal/captcha/challenge.go

// Package captcha detects challenge widgets on the application form, obtains
// a solution token (via a co-located extension bridge or an external solving
// service) and injects it before submission. Every failure degrades to "not
// solved" plus an error string; the submission flow is never blocked.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tkoster88/applypilot-cli/internal/browser"
)

// Challenge types.
const (
	TypeRecaptchaV2 = "recaptcha_v2"
	TypeRecaptchaV3 = "recaptcha_v3"
	TypeHCaptcha    = "hcaptcha"
)

// Challenge describes one detected widget.
type Challenge struct {
	Type    string `json:"captcha_type"`
	SiteKey string `json:"site_key"`
	PageURL string `json:"page_url"`
	Action  string `json:"action,omitempty"` // v3 only
}

// marker is one detection probe: a widget or iframe selector and the
// challenge family it indicates.
type marker struct {
	selector string
	family   string
	iframe   bool
}

var markers = []marker{
	{selector: ".g-recaptcha", family: TypeRecaptchaV2},
	{selector: `iframe[src*="recaptcha"]`, family: TypeRecaptchaV2, iframe: true},
	{selector: ".h-captcha", family: TypeHCaptcha},
	{selector: `iframe[src*="hcaptcha"]`, family: TypeHCaptcha, iframe: true},
}

// iframeKeyPattern pulls the site key out of a cross-origin widget iframe
// URL (k= for reCAPTCHA, sitekey= for hCaptcha).
var iframeKeyPattern = regexp.MustCompile(`[?&](?:k|sitekey)=([^&]+)`)

// Detect probes the page for a challenge widget. It returns (nil, nil) when
// the page carries none, and a Challenge with an empty SiteKey when a widget
// is present but key extraction failed.
func Detect(ctx context.Context, page browser.Page) (*Challenge, error) {
	for _, m := range markers {
		el, err := page.Query(ctx, m.selector)
		if err != nil {
			if errors.Is(err, browser.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("captcha probe %q failed: %w", m.selector, err)
		}

		pageURL, err := page.URL(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read page url: %w", err)
		}

		ch := &Challenge{Type: m.family, PageURL: pageURL}
		if m.iframe {
			extractFromIframe(ctx, el, ch)
		} else {
			extractFromWidget(ctx, el, ch)
		}
		return ch, nil
	}
	return nil, nil
}

// extractFromWidget reads the site key and v3 hints off a same-origin
// widget container.
func extractFromWidget(ctx context.Context, el browser.Element, ch *Challenge) {
	if key, ok, _ := el.Attribute(ctx, "data-sitekey"); ok {
		ch.SiteKey = key
	}
	if ch.Type != TypeRecaptchaV2 {
		return
	}
	if action, ok, _ := el.Attribute(ctx, "data-action"); ok && action != "" {
		ch.Type = TypeRecaptchaV3
		ch.Action = action
		return
	}
	if size, ok, _ := el.Attribute(ctx, "data-size"); ok && strings.EqualFold(size, "invisible") {
		ch.Type = TypeRecaptchaV3
	}
}

func extractFromIframe(ctx context.Context, el browser.Element, ch *Challenge) {
	src, ok, _ := el.Attribute(ctx, "src")
	if !ok {
		return
	}
	if m := iframeKeyPattern.FindStringSubmatch(src); m != nil {
		ch.SiteKey = m[1]
	}
}

// responseFieldSelectors maps a challenge type to the hidden response field
// the widget script reads.
func responseFieldSelectors(challengeType string) []string {
	if challengeType == TypeHCaptcha {
		return []string{
			`textarea[name="h-captcha-response"]`,
			`[name="h-captcha-response"]`,
		}
	}
	return []string{
		`textarea[name="g-recaptcha-response"]`,
		`[name="g-recaptcha-response"]`,
	}
}

// Inject writes the solution token into the hidden response field. SetValue
// dispatches the input/change events client-side validation listens for.
func Inject(ctx context.Context, page browser.Page, ch *Challenge, token string) error {
	for _, selector := range responseFieldSelectors(ch.Type) {
		el, err := page.Query(ctx, selector)
		if err != nil {
			continue
		}
		if err := el.SetValue(ctx, token); err != nil {
			return fmt.Errorf("failed to set captcha response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no response field found for %s", ch.Type)
}
