// File: internal/engine/engine_test.go
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tkoster88/applypilot-cli/internal/browser/browsertest"
	"github.com/tkoster88/applypilot-cli/internal/config"
	"github.com/tkoster88/applypilot-cli/internal/profile"
)

type recordingOracle struct {
	description string
	answers     map[string]string
}

func (o *recordingOracle) Ask(_ context.Context, question, _ string) string {
	for key, answer := range o.answers {
		if strings.Contains(strings.ToLower(question), key) {
			return answer
		}
	}
	return ""
}

func (o *recordingOracle) SetJobDescription(text string) { o.description = text }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Browser.SettleDelay = time.Millisecond
	return cfg
}

func testCandidate() *profile.Candidate {
	c, err := profile.Parse([]byte(`{
		"personal_info": {
			"full_name": "Jordan Reyes",
			"email": "jordan.reyes@example.com",
			"phone": "+1 512 555 0100",
			"location": "Austin, TX"
		},
		"experience": [
			{"company": "Acme Corp", "position": "Backend Engineer", "start_date": "2021-03"}
		],
		"salary_expectations": {"min": 90000, "max": 120000}
	}`))
	if err != nil {
		panic(err)
	}
	return c
}

// postingBody builds the job posting page.
func postingBody() *browsertest.FakeElement {
	description := strings.Repeat("We are hiring a backend engineer to build form tooling. ", 5)
	return browsertest.NewElement("body", nil,
		browsertest.NewElement("div", map[string]string{"class": "job-description"}).WithText(description),
	)
}

// applyBody builds the application form page: cookie banner, basic info,
// two question blocks, a consent checkbox and a submit button.
func applyBody(page *browsertest.FakePage) *browsertest.FakeElement {
	banner := browsertest.NewElement("div", map[string]string{"id": "cookie-consent"},
		browsertest.NewElement("button", nil).WithText("Accept all"),
	)
	banner.Children[0].OnClick = func(*browsertest.FakeElement) { banner.Hidden = true }

	salaryBlock := browsertest.NewElement("li", map[string]string{"class": "application-question"},
		browsertest.NewElement("label", nil).WithText("What are your salary expectations? ✱"),
		browsertest.NewElement("input", map[string]string{"type": "text"}),
	)
	genderBlock := browsertest.NewElement("li", map[string]string{"class": "application-question"},
		browsertest.NewElement("label", nil).WithText("What is your gender?"),
		browsertest.NewElement("select", nil,
			browsertest.NewElement("option", nil).WithText("Select..."),
			browsertest.NewElement("option", nil).WithText("Male"),
			browsertest.NewElement("option", nil).WithText("Female"),
			browsertest.NewElement("option", nil).WithText("Prefer not to say"),
		),
	)

	submit := browsertest.NewElement("button", map[string]string{"type": "submit"}).
		WithText("Submit application")
	submit.OnClick = func(*browsertest.FakeElement) {
		page.Location = page.Location + "/confirmation"
	}

	return browsertest.NewElement("body", nil,
		banner,
		browsertest.NewElement("form", nil,
			browsertest.NewElement("label", map[string]string{"for": "name"}).WithText("Full name"),
			browsertest.NewElement("input", map[string]string{"type": "text", "id": "name"}),
			browsertest.NewElement("label", map[string]string{"for": "email"}).WithText("Email address"),
			browsertest.NewElement("input", map[string]string{"type": "email", "id": "email"}),
			browsertest.NewElement("ul", nil, salaryBlock, genderBlock),
			browsertest.NewElement("label", map[string]string{"for": "terms"}).
				WithText("I agree to the terms and conditions"),
			browsertest.NewElement("input", map[string]string{"type": "checkbox", "id": "terms"}),
			submit,
		),
	)
}

// jobBoardPage wires a page that swaps content when navigation reaches the
// apply route.
func jobBoardPage() *browsertest.FakePage {
	page := browsertest.NewPage(browsertest.NewElement("html", nil, postingBody()))
	page.NavigateFunc = func(url string) error {
		if strings.HasSuffix(url, "/apply") {
			page.Root = browsertest.NewElement("html", nil, applyBody(page))
		}
		return nil
	}
	return page
}

func TestApplyFullPipeline(t *testing.T) {
	page := jobBoardPage()
	oracle := &recordingOracle{answers: map[string]string{}}
	e := New(page, testConfig(t), testCandidate(), oracle, nil, zaptest.NewLogger(t))

	report := e.Apply(context.Background(), "https://jobs.example.com/acme/123")

	assert.True(t, report.Submitted)
	assert.True(t, report.Complete)
	assert.True(t, report.Success, "errors: %v", report.Errors)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.RunID)

	assert.Contains(t, report.FieldsFilled, "What are your salary expectations? ✱")
	assert.Contains(t, report.FieldsFilled, "What is your gender?")
	assert.Contains(t, report.FieldsFilled, "Checkbox: consent")
	assert.Contains(t, report.FieldsFilled, "Full name")

	// The posting text was extracted before moving to the form.
	assert.Contains(t, oracle.description, "backend engineer")

	// The committed values landed in the fake DOM.
	salary, err := page.Query(context.Background(), `li[class*="application-question"] input`)
	require.NoError(t, err)
	value, err := salary.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "$90,000 - $120,000", value)
}

func TestApplyNavigationFailureAborts(t *testing.T) {
	page := browsertest.NewPage(browsertest.NewElement("html", nil))
	page.NavigateFunc = func(string) error { return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED") }

	e := New(page, testConfig(t), testCandidate(), nil, nil, zaptest.NewLogger(t))
	report := e.Apply(context.Background(), "https://jobs.example.com/acme/123")

	assert.False(t, report.Success)
	assert.False(t, report.Submitted)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "failed to open posting")
}

func TestApplySubmissionUnclear(t *testing.T) {
	// A form whose submit click changes nothing observable.
	body := browsertest.NewElement("body", nil,
		browsertest.NewElement("button", map[string]string{"type": "submit"}).WithText("Submit"),
	)
	page := browsertest.NewPage(browsertest.NewElement("html", nil, body))

	e := New(page, testConfig(t), testCandidate(), nil, nil, zaptest.NewLogger(t))
	report := e.Apply(context.Background(), "https://jobs.example.com/acme/123/apply")

	assert.False(t, report.Submitted)
	assert.Contains(t, report.Errors, "Submission status unclear")
}

func TestApplyNoSubmitButton(t *testing.T) {
	page := browsertest.NewPage(browsertest.NewElement("html", nil,
		browsertest.NewElement("body", nil)))

	e := New(page, testConfig(t), testCandidate(), nil, nil, zaptest.NewLogger(t))
	report := e.Apply(context.Background(), "https://jobs.example.com/acme/123/apply")

	assert.False(t, report.Submitted)
	assert.Contains(t, report.Errors, "no submit button found")
}

func TestDeriveApplyURL(t *testing.T) {
	cases := map[string]string{
		"https://jobs.example.com/acme/123":        "https://jobs.example.com/acme/123/apply",
		"https://jobs.example.com/acme/123/":       "https://jobs.example.com/acme/123/apply",
		"https://jobs.example.com/acme/123/apply":  "https://jobs.example.com/acme/123/apply",
		"https://jobs.example.com/apply/acme":      "https://jobs.example.com/apply/acme",
		"https://jobs.example.com/acme/123?src=li": "https://jobs.example.com/acme/123/apply?src=li",
	}
	for in, want := range cases {
		assert.Equal(t, want, deriveApplyURL(in), in)
	}
}

func TestSuccessConfirmedByPageIndicator(t *testing.T) {
	confirmation := browsertest.NewElement("div", map[string]string{"class": "application-success"}).
		WithText("Thank you for applying!")
	confirmation.Hidden = true
	submit := browsertest.NewElement("button", map[string]string{"type": "submit"}).
		WithText("Submit application")
	submit.OnClick = func(*browsertest.FakeElement) { confirmation.Hidden = false }

	body := browsertest.NewElement("body", nil, submit, confirmation)
	page := browsertest.NewPage(browsertest.NewElement("html", nil, body))

	e := New(page, testConfig(t), testCandidate(), nil, nil, zaptest.NewLogger(t))
	report := e.Apply(context.Background(), "https://jobs.example.com/acme/123/apply")

	assert.True(t, report.Submitted)
	assert.NotContains(t, report.Errors, "Submission status unclear")
}

func TestReportWriteAndRender(t *testing.T) {
	report := NewReport("https://jobs.example.com/acme/123")
	report.FieldsFilled = []string{"Salary expectations"}
	report.FieldsEmpty = []string{"Describe a project"}
	report.Errors = []string{"Submission status unclear"}

	dir := t.TempDir()
	path, err := report.Write(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "application-result-"+report.RunID+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fields_filled"`)
	assert.Contains(t, string(data), report.RunID)

	rendered := report.Render()
	assert.Contains(t, rendered, "+ Salary expectations")
	assert.Contains(t, rendered, "- Describe a project")
	assert.Contains(t, rendered, "! Submission status unclear")
}
