// File: internal/resolver/resolver_test.go
package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoster88/applypilot-cli/internal/profile"
)

func testCandidate(t *testing.T) *profile.Candidate {
	t.Helper()
	c, err := profile.Parse([]byte(`{
		"personal_info": {"full_name": "Jordan Reyes", "email": "jordan@example.com"},
		"salary_expectations": {"min": 90000, "max": 120000, "currency": "USD"},
		"notice_period": "2 weeks",
		"visa_status": "Authorized to work in the US",
		"skills": {"languages": ["English", "Spanish"]},
		"application_preferences": {
			"diversity_fields": {"gender": "Prefer not to say"},
			"common_questions": {"how_did_you_hear": "LinkedIn", "open_to_remote": "Yes"}
		}
	}`))
	require.NoError(t, err)
	return c
}

func TestResolveSalaryFreeText(t *testing.T) {
	r := New(testCandidate(t))

	answer, ok := r.Resolve("What are your salary expectations?", nil)
	require.True(t, ok)
	assert.Equal(t, "$90,000 - $120,000", answer)
}

func TestResolveSalaryDefaultsWhenUnset(t *testing.T) {
	r := New(profile.NewDefault())

	answer, ok := r.Resolve("Desired salary", nil)
	require.True(t, ok)
	assert.Equal(t, "$80,000 - $100,000", answer)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := New(testCandidate(t))
	options := []string{"Select...", "Male", "Female", "Prefer not to say"}

	first, ok := r.Resolve("What is your gender?", options)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, ok := r.Resolve("What is your gender?", options)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestResolveTopicRules(t *testing.T) {
	r := New(testCandidate(t))

	tests := []struct {
		name     string
		question string
		options  []string
		want     string
	}{
		{"notice free text", "What is your notice period?", nil, "2 weeks"},
		{"notice options", "Notice period required by your current employer", []string{"Immediately", "2 weeks", "1 month"}, "2 weeks"},
		{"visa free text", "Do you require visa sponsorship to work here?", nil, "Authorized to work in the US"},
		{"language free text", "What is your preferred language?", nil, "English"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, ok := r.Resolve(tt.question, tt.options)
			require.True(t, ok)
			assert.Equal(t, tt.want, answer)
		})
	}
}

func TestResolveDemographicFallsBackToDecline(t *testing.T) {
	r := New(profile.NewDefault())

	// No configured preference for ethnicity and no option matching the
	// global default phrase, so the decline entry wins.
	answer, ok := r.Resolve("Please select your ethnicity", []string{"Select...", "Hispanic or Latino", "Asian", "I prefer not to answer"})
	require.True(t, ok)
	assert.Equal(t, "I prefer not to answer", answer)
}

func TestResolveDemographicPreferredPhrase(t *testing.T) {
	c := testCandidate(t)
	c.Preferences.DiversityFields["veteran_status"] = "I am not a protected veteran"
	r := New(c)

	answer, ok := r.Resolve("Veteran status", []string{"Select...", "I am not a protected veteran", "I identify as a veteran"})
	require.True(t, ok)
	assert.Equal(t, "I am not a protected veteran", answer)
}

func TestResolveDemographicRequiresOptions(t *testing.T) {
	r := New(testCandidate(t))

	_, ok := r.Resolve("What is your gender?", nil)
	assert.False(t, ok)
}

func TestResolveStartDateMatchesMonth(t *testing.T) {
	c := profile.NewDefault()
	c.Preferences.CommonQuestions["start_date_preference"] = "ASAP"
	r := New(c)

	answer, ok := r.Resolve("When could you start this new role? Please pick a date", []string{"Select...", "January 2027", "March 2027"})
	require.True(t, ok)
	assert.Equal(t, "January 2027", answer)
}

func TestResolveHowDidYouHear(t *testing.T) {
	r := New(testCandidate(t))

	answer, ok := r.Resolve("How did you hear about this position at our company?", []string{"Select...", "LinkedIn", "Referral", "Other"})
	require.True(t, ok)
	assert.Equal(t, "LinkedIn", answer)
}

func TestResolveWorkAuthorizationOptions(t *testing.T) {
	r := New(profile.NewDefault())

	answer, ok := r.Resolve("Are you authorized to work in the United States?", []string{"Select...", "Yes, I am authorized", "No, I require sponsorship"})
	require.True(t, ok)
	assert.Equal(t, "Yes, I am authorized", answer)
}

func TestResolveBinaryRemotePreference(t *testing.T) {
	r := New(testCandidate(t))

	answer, ok := r.Resolve("Are you open to fully remote work arrangements?", []string{"Yes", "No"})
	require.True(t, ok)
	assert.Equal(t, "Yes", answer)
}

func TestResolveUnknownQuestionFallsThrough(t *testing.T) {
	r := New(testCandidate(t))

	_, ok := r.Resolve("Describe a project you are proud of and your role in it", nil)
	assert.False(t, ok)

	_, ok = r.Resolve("", nil)
	assert.False(t, ok)
}

func TestFirstSelectableSkipsPlaceholders(t *testing.T) {
	answer, ok := FirstSelectable([]string{"Select...", "", "Choose", "0-1 years", "2-4 years"})
	require.True(t, ok)
	assert.Equal(t, "0-1 years", answer)

	_, ok = FirstSelectable([]string{"Select...", ""})
	assert.False(t, ok)
}

func TestBinaryYesNo(t *testing.T) {
	tests := []struct {
		name     string
		question string
		options  []string
		want     string
		ok       bool
	}{
		{"authorized biases yes", "Are you authorized to work in the US?", []string{"Yes", "No"}, "Yes", true},
		{"willing biases yes", "Are you willing to relocate?", []string{"Yes", "No"}, "Yes", true},
		{"sponsorship biases no", "Will you require visa sponsorship?", []string{"Yes", "No"}, "No", true},
		{"no keyword no answer", "Have you worked with us before?", []string{"Yes", "No"}, "", false},
		{"not a yes/no set", "Are you willing to travel?", []string{"Often", "Rarely"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BinaryYesNo(tt.question, tt.options)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDemographicCategory(t *testing.T) {
	cat, ok := DemographicCategory("What is your race or ethnicity?")
	require.True(t, ok)
	assert.Equal(t, "ethnicity", cat)

	_, ok = DemographicCategory("What is your desired salary?")
	assert.False(t, ok)
}

func TestDemographicCategoryAgeMatchesWholeWordOnly(t *testing.T) {
	for _, question := range []string{
		"What is your age range?",
		"Please select your age bracket",
		"What is your age?",
	} {
		cat, ok := DemographicCategory(question)
		require.True(t, ok, question)
		assert.Equal(t, "age_bracket", cat, question)
	}

	// "age" as a fragment of another word must not classify the question.
	for _, question := range []string{
		"What is your preferred programming language?",
		"How do you manage competing deadlines?",
		"Which package manager do you use?",
	} {
		assert.False(t, IsDemographic(question), question)
	}
}

func TestIsDeclineOption(t *testing.T) {
	assert.True(t, IsDeclineOption("Prefer not to say"))
	assert.True(t, IsDeclineOption("I decline to self-identify"))
	assert.False(t, IsDeclineOption("Female"))
}
