// File: internal/engine/report.go
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tkoster88/applypilot-cli/internal/form"
)

// Report is the end-of-run artifact: one JSON document per application
// attempt, plus a human-readable rendering for the terminal.
type Report struct {
	RunID        string    `json:"run_id"`
	JobURL       string    `json:"job_url"`
	StartedAt    time.Time `json:"started_at"`
	DurationSecs float64   `json:"duration_secs"`

	Success      bool     `json:"success"`
	Submitted    bool     `json:"submitted"`
	Complete     bool     `json:"complete"`
	FieldsFilled []string `json:"fields_filled"`
	FieldsEmpty  []string `json:"fields_empty"`
	Errors       []string `json:"errors"`
}

func NewReport(jobURL string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		JobURL:    jobURL,
		StartedAt: time.Now().UTC(),
	}
}

// Finish folds the accumulated form result into the report. Success means the
// form was submitted, every required field ended filled and no errors were
// recorded along the way.
func (r *Report) Finish(result *form.Result, submitted, complete bool) {
	r.DurationSecs = time.Since(r.StartedAt).Seconds()
	r.Submitted = submitted
	r.Complete = complete
	r.FieldsFilled = result.FieldsFilled()
	r.FieldsEmpty = result.FieldsEmpty()
	r.Errors = result.Errors()
	r.Success = submitted && complete && result.Success()
}

// Write persists the artifact as <dir>/application-result-<run id>.json and
// returns the path.
func (r *Report) Write(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create result dir: %w", err)
	}
	path := filepath.Join(dir, "application-result-"+r.RunID+".json")

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Render formats the report for the terminal.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Application run %s\n", r.RunID)
	fmt.Fprintf(&b, "  Job:       %s\n", r.JobURL)
	fmt.Fprintf(&b, "  Duration:  %.1fs\n", r.DurationSecs)
	fmt.Fprintf(&b, "  Submitted: %v\n", r.Submitted)
	fmt.Fprintf(&b, "  Success:   %v\n", r.Success)

	fmt.Fprintf(&b, "  Filled (%d):\n", len(r.FieldsFilled))
	for _, field := range r.FieldsFilled {
		fmt.Fprintf(&b, "    + %s\n", field)
	}
	if len(r.FieldsEmpty) > 0 {
		fmt.Fprintf(&b, "  Still empty (%d):\n", len(r.FieldsEmpty))
		for _, field := range r.FieldsEmpty {
			fmt.Fprintf(&b, "    - %s\n", field)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "  Errors (%d):\n", len(r.Errors))
		for _, msg := range r.Errors {
			fmt.Fprintf(&b, "    ! %s\n", msg)
		}
	}
	return b.String()
}
