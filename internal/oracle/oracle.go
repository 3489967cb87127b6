// File: internal/oracle/oracle.go

// Package oracle is the generative fallback for questions the deterministic
// resolver cannot answer. The contract is deliberately forgiving: Ask returns
// a best-effort answer string, and the empty string on any failure. Callers
// never see an error, a missing API key simply disables the fallback.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/tkoster88/applypilot-cli/internal/config"
	"github.com/tkoster88/applypilot-cli/internal/profile"
)

// -- Completion API request/response structures (internal to this file) --

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type requestPayload struct {
	Contents          []content          `json:"contents"`
	SystemInstruction *systemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  generationConfig   `json:"generationConfig,omitempty"`
}

type responsePayload struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

const systemPrompt = "You are filling out a job application on behalf of a candidate. " +
	"Answer questions truthfully based on the candidate profile provided. " +
	"Keep answers concise and professional. Never invent credentials the profile does not contain, " +
	"and never use bracket placeholders like [Your Name]."

// Oracle answers free-form application questions from the candidate profile
// and the job description of the current run.
type Oracle struct {
	cfg        config.LLMConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	candidate  *profile.Candidate

	mu             sync.RWMutex
	jobDescription string
}

// New creates an oracle for one candidate. A missing API key is not an
// error; it just makes every Ask return "".
func New(cfg config.LLMConfig, candidate *profile.Candidate, logger *zap.Logger) *Oracle {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}
	return &Oracle{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("oracle"),
		candidate:  candidate,
	}
}

// SetJobDescription installs the posting text for the current run, truncated
// to the configured limit so prompts stay bounded.
func (o *Oracle) SetJobDescription(text string) {
	limit := o.cfg.JobDescriptionLimit
	if limit > 0 && len(text) > limit {
		text = text[:limit]
	}
	o.mu.Lock()
	o.jobDescription = text
	o.mu.Unlock()
}

// Ask generates an answer for a question the resolver could not handle.
// extraInstruction augments the prompt for special cases (cover letters).
// Any failure degrades to "".
func (o *Oracle) Ask(ctx context.Context, question, extraInstruction string) string {
	if o.cfg.APIKey == "" {
		o.logger.Debug("No API key configured, skipping generative answer",
			zap.String("question", question))
		return ""
	}

	answer, err := o.generate(ctx, o.buildPrompt(question, extraInstruction))
	if err != nil {
		o.logger.Warn("Generative answer failed",
			zap.String("question", question), zap.Error(err))
		return ""
	}
	return sanitizeAnswer(answer)
}

func (o *Oracle) buildPrompt(question, extraInstruction string) string {
	o.mu.RLock()
	jobDescription := o.jobDescription
	o.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Candidate profile:\n")
	b.WriteString(o.candidate.MarshalContext())
	if jobDescription != "" {
		b.WriteString("\n\nJob description:\n")
		b.WriteString(jobDescription)
	}
	b.WriteString("\n\nApplication question:\n")
	b.WriteString(question)
	if extraInstruction != "" {
		b.WriteString("\n\n")
		b.WriteString(extraInstruction)
	} else {
		b.WriteString("\n\nAnswer in one or two short sentences, plain text only.")
	}
	return b.String()
}

func (o *Oracle) generate(ctx context.Context, prompt string) (string, error) {
	payload := requestPayload{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		SystemInstruction: &systemInstruction{Parts: []part{{Text: systemPrompt}}},
		GenerationConfig: generationConfig{
			Temperature:     o.cfg.Temperature,
			MaxOutputTokens: o.cfg.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = o.cfg.APITimeout
	b.MaxInterval = 10 * time.Second

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", o.cfg.APIKey)

		startTime := time.Now()
		resp, err := o.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			o.logger.Warn("Network error during completion request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return o.handleAPIError(resp.StatusCode, respBody)
		}

		var response responsePayload
		if err := json.Unmarshal(respBody, &response); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(response.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("completion API returned no candidates"))
		}

		candidate := response.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("completion API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("completion API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		o.logger.Info("Completion generated",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", response.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", response.UsageMetadata.CandidatesTokenCount),
			zap.Int("total_tokens", response.UsageMetadata.TotalTokenCount),
		)

		responseContent = candidate.Content.Parts[0].Text
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (o *Oracle) handleAPIError(statusCode int, body []byte) error {
	o.logger.Error("Completion API returned error status",
		zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("completion API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}

// sanitizeAnswer trims whitespace and a single layer of wrapping quotes.
// Answers still carrying bracket placeholders are discarded wholesale: the
// model ignored the instruction and the text is unusable on a real form.
func sanitizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	if len(answer) >= 2 && answer[0] == '"' && answer[len(answer)-1] == '"' {
		answer = strings.TrimSpace(answer[1 : len(answer)-1])
	}
	if strings.Contains(answer, "[") && strings.Contains(answer, "]") {
		return ""
	}
	return answer
}
