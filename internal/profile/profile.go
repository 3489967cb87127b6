// File: internal/profile/profile.go

// Package profile normalizes candidate data into the queryable structure the
// resolver and filler consume. A Candidate is loaded once per application run
// and treated as immutable afterwards.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Defaults applied when the profile document omits a key.
const (
	DefaultSalaryMin    = 80000
	DefaultSalaryMax    = 100000
	DefaultNoticePeriod = "2 weeks"
	DefaultVisaStatus   = "Authorized to work"
	DefaultLanguage     = "English"
	// DefaultDiversityAnswer is the global fallback for demographic questions
	// when no category preference is configured.
	DefaultDiversityAnswer = "Prefer not to say"
)

// PersonalInfo holds the candidate's contact details.
type PersonalInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// Experience is a single role. The profile's experience list is ordered
// most-recent first.
type Experience struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

// Skills groups the candidate's technical and language skills.
type Skills struct {
	Technical []string `json:"technical"`
	Languages []string `json:"languages"`
}

// SalaryExpectations is the candidate's expected compensation range.
type SalaryExpectations struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
}

// ConsentPreferences controls the consent checkbox sweep. Each category can
// be toggled independently and defaults to on when the document omits it.
type ConsentPreferences struct {
	AutoCheckConsent bool `json:"auto_check_consent"`
	AutoCheckTerms   bool `json:"auto_check_terms"`
	AutoCheckPrivacy bool `json:"auto_check_privacy"`

	decoded bool
}

// UnmarshalJSON treats absent keys as true so that a partial consent block
// only overrides the categories it names.
func (p *ConsentPreferences) UnmarshalJSON(data []byte) error {
	aux := struct {
		Consent *bool `json:"auto_check_consent"`
		Terms   *bool `json:"auto_check_terms"`
		Privacy *bool `json:"auto_check_privacy"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.AutoCheckConsent = aux.Consent == nil || *aux.Consent
	p.AutoCheckTerms = aux.Terms == nil || *aux.Terms
	p.AutoCheckPrivacy = aux.Privacy == nil || *aux.Privacy
	p.decoded = true
	return nil
}

// ApplicationPreferences holds the candidate's stated answers for recurring
// application questions.
type ApplicationPreferences struct {
	// DiversityFields maps a demographic category key (gender, ethnicity,
	// race, age_bracket, veteran_status, disability_status) to the preferred
	// phrase. The "default" key covers categories without an explicit entry.
	DiversityFields map[string]string `json:"diversity_fields"`
	// CommonQuestions maps a topic key (start_date_preference,
	// how_did_you_hear, require_visa_sponsorship, open_to_remote,
	// open_to_relocation, available_immediately) to the preferred phrase.
	CommonQuestions map[string]string `json:"common_questions"`
	Consent         ConsentPreferences `json:"consent_preferences"`
}

// Candidate is the normalized profile document.
type Candidate struct {
	Personal    PersonalInfo           `json:"personal_info"`
	Experience  []Experience           `json:"experience"`
	Skills      Skills                 `json:"skills"`
	Salary      SalaryExpectations     `json:"salary_expectations"`
	Notice      string                 `json:"notice_period"`
	VisaStatus  string                 `json:"visa_status"`
	Preferences ApplicationPreferences `json:"application_preferences"`
}

// Load reads a profile document from disk and normalizes it.
func Load(path string) (*Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a profile document and applies defaults for absent keys.
func Parse(data []byte) (*Candidate, error) {
	var c Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode profile document: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// NewDefault returns a candidate carrying only the hard-coded defaults.
// Useful in tests and as the zero-configuration baseline.
func NewDefault() *Candidate {
	c := &Candidate{}
	c.applyDefaults()
	return c
}

func (c *Candidate) applyDefaults() {
	if c.Salary.Min == 0 {
		c.Salary.Min = DefaultSalaryMin
	}
	if c.Salary.Max == 0 {
		c.Salary.Max = DefaultSalaryMax
	}
	if strings.TrimSpace(c.Notice) == "" {
		c.Notice = DefaultNoticePeriod
	}
	if strings.TrimSpace(c.VisaStatus) == "" {
		c.VisaStatus = DefaultVisaStatus
	}
	if len(c.Skills.Languages) == 0 {
		c.Skills.Languages = []string{DefaultLanguage}
	}
	if c.Preferences.DiversityFields == nil {
		c.Preferences.DiversityFields = map[string]string{}
	}
	if c.Preferences.CommonQuestions == nil {
		c.Preferences.CommonQuestions = map[string]string{}
	}
	if !c.Preferences.Consent.decoded {
		c.Preferences.Consent = ConsentPreferences{
			AutoCheckConsent: true,
			AutoCheckTerms:   true,
			AutoCheckPrivacy: true,
		}
	}
}

// FullName returns the candidate's full name, or a neutral placeholder when
// the profile omits it (used by the templated cover letter).
func (c *Candidate) FullName() string {
	if strings.TrimSpace(c.Personal.FullName) == "" {
		return "Candidate"
	}
	return c.Personal.FullName
}

// CurrentCompany returns the company of the most recent experience entry.
func (c *Candidate) CurrentCompany() string {
	if len(c.Experience) == 0 {
		return ""
	}
	return c.Experience[0].Company
}

// CurrentPosition returns the title of the most recent experience entry, or
// a neutral phrase when the profile carries no experience.
func (c *Candidate) CurrentPosition() string {
	if len(c.Experience) == 0 || strings.TrimSpace(c.Experience[0].Position) == "" {
		return "the field"
	}
	return c.Experience[0].Position
}

// PrimaryLanguage returns the first configured language.
func (c *Candidate) PrimaryLanguage() string {
	if len(c.Skills.Languages) == 0 {
		return DefaultLanguage
	}
	return c.Skills.Languages[0]
}

// DiversityPreference resolves the preferred phrase for a demographic
// category key: the explicit entry, then the configured "default", then the
// global fallback.
func (c *Candidate) DiversityPreference(category string) string {
	if v, ok := c.Preferences.DiversityFields[category]; ok && v != "" {
		return v
	}
	if v, ok := c.Preferences.DiversityFields["default"]; ok && v != "" {
		return v
	}
	return DefaultDiversityAnswer
}

// CommonPreference returns the configured phrase for a common-question topic
// key, or the provided fallback.
func (c *Candidate) CommonPreference(topic, fallback string) string {
	if v, ok := c.Preferences.CommonQuestions[topic]; ok && v != "" {
		return v
	}
	return fallback
}

// SalaryRange formats the expected range the way application forms ask for
// it, e.g. "$90,000 - $120,000".
func (c *Candidate) SalaryRange() string {
	return fmt.Sprintf("$%s - $%s", groupThousands(c.Salary.Min), groupThousands(c.Salary.Max))
}

// MarshalContext serializes the candidate for inclusion in an oracle prompt.
func (c *Candidate) MarshalContext() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func groupThousands(n int) string {
	if n < 0 {
		return "-" + groupThousands(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
