// Package match searches extracted text for literal keywords and regular expressions.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/docscan/internal/models"
)

// RuleError reports a regex rule that failed to compile.
type RuleError struct {
	Index       int
	Pattern     string
	Description string
	Err         error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("regex rule %d (%s) %q: %v", e.Index, e.Description, e.Pattern, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

type compiledRule struct {
	re     *regexp.Regexp
	source string
}

// Matcher holds a compiled rule set. It keeps no state between searches and is safe
// for concurrent use.
type Matcher struct {
	keywords      []string
	lowerKeywords []string
	rules         []compiledRule
}

// Compile prepares keywords and regex rules for searching. Every pattern is compiled
// case-insensitively; the first invalid pattern aborts with a *RuleError.
// Empty keywords are dropped; whitespace-only keywords are kept as literal needles.
func Compile(keywords []string, rules []models.RegexRule) (*Matcher, error) {
	m := &Matcher{}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		m.keywords = append(m.keywords, kw)
		m.lowerKeywords = append(m.lowerKeywords, strings.ToLower(kw))
	}
	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, &RuleError{Index: i, Pattern: r.Pattern, Description: r.Description, Err: err}
		}
		m.rules = append(m.rules, compiledRule{re: re, source: models.RegexSource(r.Description)})
	}
	return m, nil
}

// Search returns the matches of text against the rule groups enabled by mode.
// Keywords come first, each reported once if present anywhere in text. Regex hits
// follow, every non-overlapping occurrence in left-to-right order. The result is
// never nil.
func (m *Matcher) Search(text string, mode models.SearchMode) []models.MatchRecord {
	out := []models.MatchRecord{}
	if text == "" {
		return out
	}
	if mode.Keywords() {
		lower := strings.ToLower(text)
		for i, kw := range m.lowerKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, models.MatchRecord{Text: m.keywords[i], Source: models.SourceKeyword})
			}
		}
	}
	if mode.Regex() {
		for _, r := range m.rules {
			for _, hit := range r.re.FindAllString(text, -1) {
				out = append(out, models.MatchRecord{Text: hit, Source: r.source})
			}
		}
	}
	return out
}

// Search compiles the rules and searches text in one call.
func Search(text string, keywords []string, rules []models.RegexRule, mode models.SearchMode) ([]models.MatchRecord, error) {
	m, err := Compile(keywords, rules)
	if err != nil {
		return nil, err
	}
	return m.Search(text, mode), nil
}
