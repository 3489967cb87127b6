// File: internal/resolver/resolver.go

// Package resolver derives deterministic answers for application questions
// from the candidate profile and stated preferences. Resolution is a pure
// function: identical (question, options, profile) inputs always yield the
// same output. The cascade is an explicit ordered list of (predicate,
// resolve) rules evaluated first-match-wins, so precedence stays auditable
// without any DOM involvement.
package resolver

import (
	"strings"
	"unicode"

	"github.com/tkoster88/applypilot-cli/internal/profile"
)

// Placeholder sentinels that mark an unselected dropdown entry.
var placeholderOptions = []string{"select...", "select", "choose...", "choose", "please select"}

// demographicCategory pairs a preference key with the question keywords that
// identify it. Order matters: the first category that matches wins. Keywords
// match as substrings; Words match whole words only, for terms like "age"
// that are substrings of unrelated words ("manage", "language").
type demographicCategory struct {
	Key      string
	Keywords []string
	Words    []string
}

var demographicCategories = []demographicCategory{
	{Key: "gender", Keywords: []string{"gender"}},
	{Key: "ethnicity", Keywords: []string{"ethnicity", "ethnic"}},
	{Key: "race", Keywords: []string{"race"}},
	{Key: "age_bracket", Keywords: []string{"age bracket", "age range", "age group"}, Words: []string{"age"}},
	{Key: "veteran_status", Keywords: []string{"veteran"}},
	{Key: "disability_status", Keywords: []string{"disability"}},
}

// question is the normalized resolution input shared by all rules.
type question struct {
	text    string // lowercase question text
	options []string
}

func (q question) hasOptions() bool { return len(q.options) > 0 }

func (q question) contains(words ...string) bool {
	for _, w := range words {
		if strings.Contains(q.text, w) {
			return true
		}
	}
	return false
}

// rule is one step of the cascade.
type rule struct {
	name    string
	match   func(q question) bool
	resolve func(r *Resolver, q question) (string, bool)
}

// Resolver answers questions from a single immutable candidate profile.
type Resolver struct {
	candidate *profile.Candidate
	rules     []rule
}

// New creates a resolver bound to a candidate profile.
func New(c *profile.Candidate) *Resolver {
	return &Resolver{candidate: c, rules: cascade}
}

// Resolve runs the rule cascade for a question and its discrete options (nil
// for free-text fields). It returns ok=false when no rule applies, signaling
// the caller to fall through to the generative oracle.
func (r *Resolver) Resolve(questionText string, options []string) (string, bool) {
	q := question{text: strings.ToLower(strings.TrimSpace(questionText)), options: options}
	if q.text == "" {
		return "", false
	}
	for _, rl := range r.rules {
		if !rl.match(q) {
			continue
		}
		if answer, ok := rl.resolve(r, q); ok {
			return answer, true
		}
	}
	return "", false
}

// cascade is the full rule order: direct profile topics first, then
// demographic preferences, then common-question preferences.
var cascade = []rule{
	{
		name:    "salary",
		match:   func(q question) bool { return q.contains("salary", "compensation expectation") },
		resolve: func(r *Resolver, q question) (string, bool) { return matchOrText(q, r.candidate.SalaryRange()) },
	},
	{
		name:    "notice-period",
		match:   func(q question) bool { return q.contains("notice") },
		resolve: (*Resolver).resolveNotice,
	},
	{
		name: "work-authorization",
		match: func(q question) bool {
			return q.contains("visa", "authorized", "authorisation", "authorization") ||
				(q.contains("work") && q.contains("permit"))
		},
		resolve: (*Resolver).resolveWorkAuthorization,
	},
	{
		name:    "language",
		match:   func(q question) bool { return q.contains("language") },
		resolve: func(r *Resolver, q question) (string, bool) { return matchOrText(q, r.candidate.PrimaryLanguage()) },
	},
	{
		name: "demographic",
		match: func(q question) bool {
			_, ok := DemographicCategory(q.text)
			return ok && q.hasOptions()
		},
		resolve: (*Resolver).resolveDemographic,
	},
	{
		name: "start-date",
		match: func(q question) bool {
			return q.hasOptions() && q.contains("start", "date")
		},
		resolve: (*Resolver).resolveStartDate,
	},
	{
		name: "how-did-you-hear",
		match: func(q question) bool {
			return q.hasOptions() && q.contains("hear", "found", "where did you")
		},
		resolve: (*Resolver).resolveHowDidYouHear,
	},
	{
		name: "binary-preference",
		match: func(q question) bool {
			return q.hasOptions() && hasYesNoPair(q.options) && len(q.options) <= 3
		},
		resolve: (*Resolver).resolveBinaryPreference,
	},
}

// matchOrText returns the synthesized text directly for free-text questions,
// or the option it matches when a discrete set was supplied.
func matchOrText(q question, text string) (string, bool) {
	if !q.hasOptions() {
		return text, true
	}
	if opt, ok := matchOption(q.options, text); ok {
		return opt, true
	}
	return "", false
}

func (r *Resolver) resolveNotice(q question) (string, bool) {
	if answer, ok := matchOrText(q, r.candidate.Notice); ok {
		return answer, true
	}
	// No option matched the stated notice period: prefer the shortest one.
	for _, opt := range q.options {
		lower := strings.ToLower(opt)
		if strings.Contains(lower, "1 week") || strings.Contains(lower, "immediate") || strings.Contains(lower, "available") {
			return opt, true
		}
	}
	return "", false
}

func (r *Resolver) resolveWorkAuthorization(q question) (string, bool) {
	if !q.hasOptions() {
		return r.candidate.VisaStatus, true
	}
	if strings.EqualFold(r.candidate.CommonPreference("require_visa_sponsorship", "No"), "no") {
		for _, opt := range q.options {
			lower := strings.ToLower(opt)
			if strings.Contains(lower, "yes") || strings.Contains(lower, "authorized") ||
				strings.Contains(lower, "citizen") || strings.Contains(lower, "no") {
				return opt, true
			}
		}
	}
	return "", false
}

func (r *Resolver) resolveDemographic(q question) (string, bool) {
	category, _ := DemographicCategory(q.text)
	preferred := r.candidate.DiversityPreference(category)
	if opt, ok := matchOption(q.options, preferred); ok {
		return opt, true
	}
	// Fall back to any decline-to-answer style entry.
	for _, opt := range q.options {
		if IsDeclineOption(opt) {
			return opt, true
		}
	}
	return "", false
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func (r *Resolver) resolveStartDate(q question) (string, bool) {
	preferred := r.candidate.CommonPreference("start_date_preference", r.candidate.Notice)
	if opt, ok := matchOption(q.options, preferred); ok {
		return opt, true
	}
	for _, month := range monthNames {
		for _, opt := range q.options {
			if strings.Contains(opt, month) {
				return opt, true
			}
		}
	}
	return "", false
}

func (r *Resolver) resolveHowDidYouHear(q question) (string, bool) {
	return matchOption(q.options, r.candidate.CommonPreference("how_did_you_hear", "Job board"))
}

func (r *Resolver) resolveBinaryPreference(q question) (string, bool) {
	var preferred string
	switch {
	case q.contains("remote"):
		preferred = r.candidate.CommonPreference("open_to_remote", "Yes")
	case q.contains("relocat"):
		preferred = r.candidate.CommonPreference("open_to_relocation", "No")
	case q.contains("immediate", "available"):
		preferred = r.candidate.CommonPreference("available_immediately", "Yes")
	default:
		return "", false
	}
	for _, opt := range q.options {
		if strings.EqualFold(strings.TrimSpace(opt), preferred) {
			return opt, true
		}
	}
	return "", false
}

// -- Helpers shared with the filler --

// DemographicCategory reports which demographic preference key a question
// maps to, if any.
func DemographicCategory(questionText string) (string, bool) {
	lower := strings.ToLower(questionText)
	for _, cat := range demographicCategories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat.Key, true
			}
		}
		for _, w := range cat.Words {
			if containsWord(lower, w) {
				return cat.Key, true
			}
		}
	}
	return "", false
}

// containsWord reports whether word appears in text as a whole word.
func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if field == word {
			return true
		}
	}
	return false
}

// IsDemographic reports whether a question is a demographic/diversity field.
func IsDemographic(questionText string) bool {
	_, ok := DemographicCategory(questionText)
	return ok
}

// IsDeclineOption reports whether an option text is a decline-to-answer
// style entry.
func IsDeclineOption(option string) bool {
	lower := strings.ToLower(option)
	for _, phrase := range []string{"prefer not", "decline", "not to say"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsPlaceholder reports whether an option text is an unselected-state
// sentinel rather than a real choice.
func IsPlaceholder(option string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(option))
	if trimmed == "" {
		return true
	}
	for _, p := range placeholderOptions {
		if trimmed == p {
			return true
		}
	}
	return false
}

// FirstSelectable returns the first option that is not a placeholder. This
// is the positional fallback at the end of the resolver chain.
func FirstSelectable(options []string) (string, bool) {
	for _, opt := range options {
		if !IsPlaceholder(opt) {
			return opt, true
		}
	}
	return "", false
}

// Keyword sets for the binary radio heuristics. Openness-style questions
// bias to yes, sponsorship/requirement-style questions bias to no.
var (
	affirmativeKeywords = []string{"open to", "willing", "available", "interested", "able to", "authorized"}
	negativeKeywords    = []string{"require", "need", "visa", "sponsorship"}
)

// BinaryYesNo applies the yes/no heuristics for a radio group whose option
// set is exactly {yes, no}. It returns the option (in the group's original
// casing) to select.
func BinaryYesNo(questionText string, options []string) (string, bool) {
	if !isExactYesNoSet(options) {
		return "", false
	}
	lower := strings.ToLower(questionText)
	for _, kw := range affirmativeKeywords {
		if strings.Contains(lower, kw) {
			return optionEqualFold(options, "yes")
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			return optionEqualFold(options, "no")
		}
	}
	return "", false
}

func isExactYesNoSet(options []string) bool {
	if len(options) != 2 {
		return false
	}
	seen := map[string]bool{}
	for _, opt := range options {
		seen[strings.ToLower(strings.TrimSpace(opt))] = true
	}
	return seen["yes"] && seen["no"]
}

func hasYesNoPair(options []string) bool {
	var yes, no bool
	for _, opt := range options {
		switch strings.ToLower(strings.TrimSpace(opt)) {
		case "yes":
			yes = true
		case "no":
			no = true
		}
	}
	return yes && no
}

func optionEqualFold(options []string, want string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), want) {
			return opt, true
		}
	}
	return "", false
}

// matchOption finds the option whose text contains, or is contained by, the
// preferred phrase (case-insensitive).
func matchOption(options []string, preferred string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(preferred))
	if p == "" {
		return "", false
	}
	for _, opt := range options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o == "" || IsPlaceholder(opt) {
			continue
		}
		if strings.Contains(o, p) || strings.Contains(p, o) {
			return opt, true
		}
	}
	return "", false
}
