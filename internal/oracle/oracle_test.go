// File: internal/oracle/oracle_test.go
package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tkoster88/applypilot-cli/internal/config"
	"github.com/tkoster88/applypilot-cli/internal/profile"
)

func testConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:              "test-key",
		Model:               "test-model",
		Endpoint:            endpoint,
		APITimeout:          5 * time.Second,
		Temperature:         0.5,
		MaxTokens:           400,
		JobDescriptionLimit: 2000,
	}
}

func completionResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
		"usageMetadata": map[string]int{"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestAskReturnsTrimmedAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		io.WriteString(w, completionResponse("  \"5 years of production Go experience.\"  \n"))
	}))
	defer server.Close()

	o := New(testConfig(server.URL), profile.NewDefault(), zaptest.NewLogger(t))
	answer := o.Ask(context.Background(), "How many years of Go experience do you have?", "")
	assert.Equal(t, "5 years of production Go experience.", answer)
}

func TestAskWithoutAPIKeyReturnsEmpty(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.APIKey = ""

	o := New(cfg, profile.NewDefault(), zaptest.NewLogger(t))
	assert.Empty(t, o.Ask(context.Background(), "Any question", ""))
}

func TestAskNeverReturnsErrorOnServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	o := New(testConfig(server.URL), profile.NewDefault(), zaptest.NewLogger(t))
	assert.Empty(t, o.Ask(context.Background(), "Any question", ""))
}

func TestAskRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, completionResponse("Yes"))
	}))
	defer server.Close()

	o := New(testConfig(server.URL), profile.NewDefault(), zaptest.NewLogger(t))
	answer := o.Ask(context.Background(), "Are you open to hybrid work?", "")
	assert.Equal(t, "Yes", answer)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestAskRejectsPlaceholderAnswers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completionResponse("Dear Hiring Manager, my name is [Your Name]."))
	}))
	defer server.Close()

	o := New(testConfig(server.URL), profile.NewDefault(), zaptest.NewLogger(t))
	assert.Empty(t, o.Ask(context.Background(), "Why do you want this role?", ""))
}

func TestSetJobDescriptionTruncatesPrompt(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		prompt = payload.Contents[0].Parts[0].Text
		io.WriteString(w, completionResponse("ok"))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.JobDescriptionLimit = 100

	o := New(cfg, profile.NewDefault(), zaptest.NewLogger(t))
	o.SetJobDescription(strings.Repeat("job text ", 100))
	o.Ask(context.Background(), "Question long enough to matter", "")

	require.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "Job description:")
	// Only the truncated slice of the posting makes it into the prompt.
	assert.NotContains(t, prompt, strings.Repeat("job text ", 20))
}

func TestAskUsesExtraInstruction(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		prompt = payload.Contents[0].Parts[0].Text
		io.WriteString(w, completionResponse("A letter."))
	}))
	defer server.Close()

	o := New(testConfig(server.URL), profile.NewDefault(), zaptest.NewLogger(t))
	o.Ask(context.Background(), "Cover letter", "Write a three-paragraph cover letter.")
	assert.Contains(t, prompt, "Write a three-paragraph cover letter.")
	assert.NotContains(t, prompt, "one or two short sentences")
}
