// File: internal/captcha/captcha_test.go
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tkoster88/applypilot-cli/internal/browser/browsertest"
	"github.com/tkoster88/applypilot-cli/internal/config"
)

func solverConfig(serviceURL string, pollInterval, solveTimeout time.Duration) config.CaptchaConfig {
	return config.CaptchaConfig{
		APIKey:       "test-key",
		ServiceURL:   serviceURL,
		PollInterval: pollInterval,
		SolveTimeout: solveTimeout,
	}
}

// solvingService is a 2captcha-protocol stub: it answers not-ready for the
// first readyAfter polls and then returns token.
type solvingService struct {
	readyAfter int32
	token      string
	polls      int32
}

func (s *solvingService) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "test-key", r.FormValue("key"))
		require.Equal(t, "1", r.FormValue("json"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/in.php":
			fmt.Fprint(w, `{"status":1,"request":"task-42"}`)
		case "/res.php":
			if r.FormValue("action") == "getbalance" {
				fmt.Fprint(w, `{"status":1,"request":"2.75"}`)
				return
			}
			require.Equal(t, "task-42", r.FormValue("id"))
			n := atomic.AddInt32(&s.polls, 1)
			if s.readyAfter >= 0 && n > s.readyAfter {
				fmt.Fprintf(w, `{"status":1,"request":"%s"}`, s.token)
				return
			}
			fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
}

func TestSolvePollsUntilToken(t *testing.T) {
	svc := &solvingService{readyAfter: 2, token: "tok-abc"}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, 2*time.Second), zaptest.NewLogger(t))
	start := time.Now()
	token, err := solver.Solve(context.Background(), &Challenge{
		Type:    TypeRecaptchaV2,
		SiteKey: "site-key",
		PageURL: "https://jobs.example.com/apply",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.EqualValues(t, 3, atomic.LoadInt32(&svc.polls))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSolveFailsAtTimeoutBoundary(t *testing.T) {
	svc := &solvingService{readyAfter: -1}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	timeout := 150 * time.Millisecond
	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, timeout), zaptest.NewLogger(t))
	start := time.Now()
	_, err := solver.Solve(context.Background(), &Challenge{
		Type:    TypeRecaptchaV2,
		SiteKey: "site-key",
		PageURL: "https://jobs.example.com/apply",
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	// The deadline is authoritative: failure lands at the boundary, not after
	// an extra grace poll.
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
}

func TestSolveSurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`)
	}))
	defer srv.Close()

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, time.Second), zaptest.NewLogger(t))
	_, err := solver.Solve(context.Background(), &Challenge{Type: TypeHCaptcha, SiteKey: "k", PageURL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_WRONG_USER_KEY")
}

func TestSolveWithoutKeyFailsFast(t *testing.T) {
	solver := NewSolver(config.CaptchaConfig{
		ServiceURL:   "http://127.0.0.1:1",
		PollInterval: 10 * time.Millisecond,
		SolveTimeout: time.Second,
	}, zaptest.NewLogger(t))
	_, err := solver.Solve(context.Background(), &Challenge{Type: TypeRecaptchaV2, SiteKey: "k", PageURL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no captcha service API key")
}

func TestSubmitSetsMethodPerType(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = append(seen, r.FormValue("method")+"/"+r.FormValue("version"))
		fmt.Fprint(w, `{"status":1,"request":"id"}`)
	}))
	defer srv.Close()

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, time.Second), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := solver.Submit(ctx, &Challenge{Type: TypeRecaptchaV2, SiteKey: "k", PageURL: "u"})
	require.NoError(t, err)
	_, err = solver.Submit(ctx, &Challenge{Type: TypeRecaptchaV3, SiteKey: "k", PageURL: "u", Action: "submit"})
	require.NoError(t, err)
	_, err = solver.Submit(ctx, &Challenge{Type: TypeHCaptcha, SiteKey: "k", PageURL: "u"})
	require.NoError(t, err)

	assert.Equal(t, []string{"userrecaptcha/", "userrecaptcha/v3", "hcaptcha/"}, seen)
}

func TestBalance(t *testing.T) {
	svc := &solvingService{}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, time.Second), zaptest.NewLogger(t))
	balance, err := solver.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.75, balance)
}

func TestDetectRecaptchaWidget(t *testing.T) {
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("div", map[string]string{
			"class":        "g-recaptcha",
			"data-sitekey": "6LcW-site-key",
		}),
	)
	page := browsertest.NewPage(body)

	ch, err := Detect(context.Background(), page)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, TypeRecaptchaV2, ch.Type)
	assert.Equal(t, "6LcW-site-key", ch.SiteKey)
	assert.Equal(t, page.Location, ch.PageURL)
}

func TestDetectInvisibleRecaptchaIsV3(t *testing.T) {
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("div", map[string]string{
			"class":        "g-recaptcha",
			"data-sitekey": "key",
			"data-size":    "invisible",
		}),
	)
	ch, err := Detect(context.Background(), browsertest.NewPage(body))
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, TypeRecaptchaV3, ch.Type)
}

func TestDetectSiteKeyFromIframe(t *testing.T) {
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("iframe", map[string]string{
			"src": "https://newassets.hcaptcha.com/captcha/v1/frame?sitekey=hc-key&theme=light",
		}),
	)
	ch, err := Detect(context.Background(), browsertest.NewPage(body))
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, TypeHCaptcha, ch.Type)
	assert.Equal(t, "hc-key", ch.SiteKey)
}

func TestDetectNoChallenge(t *testing.T) {
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("form", nil),
	)
	ch, err := Detect(context.Background(), browsertest.NewPage(body))
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestInjectWritesResponseField(t *testing.T) {
	field := browsertest.NewElement("textarea", map[string]string{"name": "g-recaptcha-response"})
	body := browsertest.NewElement("body", nil, field)
	page := browsertest.NewPage(body)

	err := Inject(context.Background(), page, &Challenge{Type: TypeRecaptchaV2}, "token-xyz")
	require.NoError(t, err)
	assert.Equal(t, "token-xyz", field.Val)
}

func TestInjectHCaptchaField(t *testing.T) {
	field := browsertest.NewElement("textarea", map[string]string{"name": "h-captcha-response"})
	body := browsertest.NewElement("body", nil, field)

	err := Inject(context.Background(), browsertest.NewPage(body), &Challenge{Type: TypeHCaptcha}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", field.Val)
}

func TestResolveNoChallengeIsSolved(t *testing.T) {
	body := browsertest.NewElement("body", nil)
	r := NewResolver(nil, zaptest.NewLogger(t))
	solved, detail := r.Resolve(context.Background(), browsertest.NewPage(body))
	assert.True(t, solved)
	assert.Empty(t, detail)
}

func TestResolveDegradesWithoutService(t *testing.T) {
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("div", map[string]string{
			"class":        "g-recaptcha",
			"data-sitekey": "key",
		}),
	)
	page := browsertest.NewPage(body)
	// No extension hook on the page.
	page.EvalFunc = func(expression string, out any) error {
		if b, ok := out.(*bool); ok {
			*b = false
		}
		return nil
	}

	r := NewResolver(NewSolver(config.CaptchaConfig{
		ServiceURL:   "http://127.0.0.1:1",
		PollInterval: 10 * time.Millisecond,
		SolveTimeout: time.Second,
	}, zaptest.NewLogger(t)), zaptest.NewLogger(t))

	solved, detail := r.Resolve(context.Background(), page)
	assert.False(t, solved)
	assert.Contains(t, detail, "no solving service configured")
}

func TestResolveSolvesAndInjects(t *testing.T) {
	svc := &solvingService{readyAfter: 1, token: "solved-token"}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	field := browsertest.NewElement("textarea", map[string]string{"name": "g-recaptcha-response"})
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("div", map[string]string{
			"class":        "g-recaptcha",
			"data-sitekey": "site-key",
		}),
		field,
	)
	page := browsertest.NewPage(body)
	page.EvalFunc = func(expression string, out any) error {
		if b, ok := out.(*bool); ok {
			*b = false
		}
		return nil
	}

	solver := NewSolver(solverConfig(srv.URL, 10*time.Millisecond, 2*time.Second), zaptest.NewLogger(t))
	r := NewResolver(solver, zaptest.NewLogger(t))

	solved, detail := r.Resolve(context.Background(), page)
	assert.True(t, solved)
	assert.Empty(t, detail)
	assert.Equal(t, "solved-token", field.Val)
}

func TestResolveViaExtensionHook(t *testing.T) {
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("div", map[string]string{
			"class":        "g-recaptcha",
			"data-sitekey": "key",
		}),
	)
	page := browsertest.NewPage(body)

	var requested string
	page.EvalFunc = func(expression string, out any) error {
		switch {
		case strings.Contains(expression, "typeof window.__captchaDetection"):
			*(out.(*bool)) = true
		case strings.Contains(expression, "requestSolve"):
			requested = expression
		case strings.Contains(expression, "h.status"):
			*(out.(*string)) = "solved"
		}
		return nil
	}

	r := NewResolver(nil, zaptest.NewLogger(t))
	solved, detail := r.Resolve(context.Background(), page)
	assert.True(t, solved)
	assert.Empty(t, detail)

	require.NotEmpty(t, requested)
	start := strings.Index(requested, "(")
	end := strings.LastIndex(requested, ")")
	var sent Challenge
	require.NoError(t, json.Unmarshal([]byte(requested[start+1:end]), &sent))
	assert.Equal(t, "key", sent.SiteKey)
	assert.Equal(t, TypeRecaptchaV2, sent.Type)
}
