// File: internal/captcha/solver.go
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/config"
)

const notReadyStatus = "CAPCHA_NOT_READY"

// Solver is a client for a 2captcha-protocol solving service: a task is
// submitted on /in.php and its result polled on /res.php until the service
// replies with a token or the configured timeout elapses.
type Solver struct {
	cfg        config.CaptchaConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSolver creates a solving service client. The returned solver is usable
// even without an API key; Solve then fails fast with a clear error.
func NewSolver(cfg config.CaptchaConfig, logger *zap.Logger) *Solver {
	return &Solver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("captcha-solver"),
	}
}

// Configured reports whether an API key is present.
func (s *Solver) Configured() bool { return strings.TrimSpace(s.cfg.APIKey) != "" }

// serviceResponse is the json=1 envelope both endpoints use. Status 1 means
// success and Request carries the payload (task id, token, balance); status 0
// means Request carries an error code.
type serviceResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (s *Solver) call(ctx context.Context, path string, params url.Values) (*serviceResponse, error) {
	params.Set("key", s.cfg.APIKey)
	params.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ServiceURL+path,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solving service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solving service returned status %d", resp.StatusCode)
	}

	var sr serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode service response: %w", err)
	}
	return &sr, nil
}

// Submit registers a solving task and returns its id.
func (s *Solver) Submit(ctx context.Context, ch *Challenge) (string, error) {
	params := url.Values{"pageurl": {ch.PageURL}}
	switch ch.Type {
	case TypeRecaptchaV2:
		params.Set("method", "userrecaptcha")
		params.Set("googlekey", ch.SiteKey)
	case TypeRecaptchaV3:
		params.Set("method", "userrecaptcha")
		params.Set("googlekey", ch.SiteKey)
		params.Set("version", "v3")
		if ch.Action != "" {
			params.Set("action", ch.Action)
		}
	case TypeHCaptcha:
		params.Set("method", "hcaptcha")
		params.Set("sitekey", ch.SiteKey)
	default:
		return "", fmt.Errorf("unsupported captcha type %q", ch.Type)
	}

	sr, err := s.call(ctx, "/in.php", params)
	if err != nil {
		return "", err
	}
	if sr.Status != 1 {
		return "", fmt.Errorf("task rejected: %s", sr.Request)
	}
	s.logger.Info("Captcha task submitted",
		zap.String("task_id", sr.Request),
		zap.String("type", ch.Type))
	return sr.Request, nil
}

// Poll checks one task once. done is false while the service is still working.
func (s *Solver) Poll(ctx context.Context, taskID string) (token string, done bool, err error) {
	sr, err := s.call(ctx, "/res.php", url.Values{
		"action": {"get"},
		"id":     {taskID},
	})
	if err != nil {
		return "", false, err
	}
	if sr.Status == 1 {
		return sr.Request, true, nil
	}
	if sr.Request == notReadyStatus {
		return "", false, nil
	}
	return "", false, fmt.Errorf("solving task failed: %s", sr.Request)
}

// Balance fetches the remaining account balance.
func (s *Solver) Balance(ctx context.Context) (float64, error) {
	if !s.Configured() {
		return 0, fmt.Errorf("no captcha service API key configured")
	}
	sr, err := s.call(ctx, "/res.php", url.Values{"action": {"getbalance"}})
	if err != nil {
		return 0, err
	}
	if sr.Status != 1 {
		return 0, fmt.Errorf("balance request failed: %s", sr.Request)
	}
	balance, err := strconv.ParseFloat(strings.TrimSpace(sr.Request), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable balance %q: %w", sr.Request, err)
	}
	return balance, nil
}

// Solve submits the challenge and polls until a token arrives or the solve
// timeout elapses. The deadline is authoritative: a task still pending when
// the timer fires is abandoned, not grace-polled.
func (s *Solver) Solve(ctx context.Context, ch *Challenge) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("no captcha service API key configured")
	}

	taskID, err := s.Submit(ctx, ch)
	if err != nil {
		return "", err
	}

	deadline := time.NewTimer(s.cfg.SolveTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("captcha solving timed out after %s", s.cfg.SolveTimeout)
		case <-ticker.C:
			token, done, err := s.Poll(ctx, taskID)
			if err != nil {
				return "", err
			}
			if done {
				s.logger.Info("Captcha solved",
					zap.String("task_id", taskID),
					zap.Duration("elapsed", time.Since(start)))
				return token, nil
			}
			s.logger.Debug("Captcha not ready yet", zap.String("task_id", taskID))
		}
	}
}
