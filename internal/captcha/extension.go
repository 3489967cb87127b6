// File: internal/captcha/extension.go
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/browser"
)

// The companion extension, when installed, publishes window.__captchaDetection
// on pages it manages: requestSolve(challenge) starts a solve and status
// transitions "idle" -> "pending" -> "solved" | "failed". The extension
// injects the token itself, so a "solved" status needs no further action here.
const (
	extensionProbeJS = `typeof window.__captchaDetection === "object" && window.__captchaDetection !== null`

	extensionStatusJS = `(function() {
		var h = window.__captchaDetection;
		return h && typeof h.status === "string" ? h.status : "";
	})()`

	extensionPollInterval = time.Second
	extensionWait         = 60 * time.Second
)

// solveViaExtension hands the challenge to the in-page extension hook and
// waits for it to report completion. Returns false whenever the extension is
// absent, declines, or times out; the caller then falls back to the service.
func solveViaExtension(ctx context.Context, page browser.Page, ch *Challenge, logger *zap.Logger) bool {
	var present bool
	if err := page.Evaluate(ctx, extensionProbeJS, &present); err != nil || !present {
		return false
	}

	payload, err := json.Marshal(ch)
	if err != nil {
		return false
	}
	request := fmt.Sprintf(`window.__captchaDetection.requestSolve(%s)`, payload)
	if err := page.Evaluate(ctx, request, nil); err != nil {
		logger.Debug("Extension hook rejected solve request", zap.Error(err))
		return false
	}
	logger.Info("Captcha handed to extension hook", zap.String("type", ch.Type))

	deadline := time.NewTimer(extensionWait)
	defer deadline.Stop()
	ticker := time.NewTicker(extensionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			logger.Warn("Extension hook did not resolve in time")
			return false
		case <-ticker.C:
			var status string
			if err := page.Evaluate(ctx, extensionStatusJS, &status); err != nil {
				return false
			}
			switch status {
			case "solved":
				return true
			case "failed":
				logger.Warn("Extension hook reported failure")
				return false
			}
		}
	}
}
