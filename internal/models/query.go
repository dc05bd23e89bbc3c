package models

import "strings"

// RegexRule is a named regular expression searched case-insensitively.
type RegexRule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Description string `json:"description" yaml:"description"`
}

// SearchMode selects which rule groups are evaluated against extracted text.
type SearchMode string

const (
	// ModeKeywords evaluates keywords only.
	ModeKeywords SearchMode = "keywords"
	// ModeRegex evaluates regex rules only.
	ModeRegex SearchMode = "regex"
	// ModeBoth evaluates keywords, then regex rules.
	ModeBoth SearchMode = "both"
	// ModeNone is the result of parsing an unrecognized mode; nothing is evaluated.
	ModeNone SearchMode = ""
)

// ParseSearchMode maps s to a SearchMode, ignoring case. Surrounding space is not trimmed.
// Unrecognized values map to ModeNone, which yields no matches rather than an error.
func ParseSearchMode(s string) SearchMode {
	switch strings.ToLower(s) {
	case "keywords":
		return ModeKeywords
	case "regex":
		return ModeRegex
	case "both":
		return ModeBoth
	default:
		return ModeNone
	}
}

// Keywords reports whether the keyword group runs in this mode.
func (m SearchMode) Keywords() bool {
	return m == ModeKeywords || m == ModeBoth
}

// Regex reports whether the regex group runs in this mode.
func (m SearchMode) Regex() bool {
	return m == ModeRegex || m == ModeBoth
}
