package match

import (
	"errors"
	"regexp/syntax"
	"testing"

	"github.com/hyperjump/docscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_emptyRules(t *testing.T) {
	got, err := Search("anything at all", nil, nil, models.ModeBoth)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearch_emptyText(t *testing.T) {
	got, err := Search("", []string{"secret"}, []models.RegexRule{{Pattern: `a*`, Description: "any"}}, models.ModeBoth)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearch_keywordPresenceOnce(t *testing.T) {
	got, err := Search("Secret SECRET secret", []string{"secret"}, nil, models.ModeKeywords)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchRecord{{Text: "secret", Source: "Keyword"}}, got)
}

func TestSearch_keywordOrderFollowsRules(t *testing.T) {
	got, err := Search("beta then alpha", []string{"Alpha", "missing", "BETA"}, nil, models.ModeKeywords)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchRecord{
		{Text: "Alpha", Source: "Keyword"},
		{Text: "BETA", Source: "Keyword"},
	}, got)
}

func TestSearch_regexEveryOccurrence(t *testing.T) {
	got, err := Search("a1 a2 a3", nil, []models.RegexRule{{Pattern: `a\d`, Description: "digit"}}, models.ModeRegex)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchRecord{
		{Text: "a1", Source: "Regex (digit)"},
		{Text: "a2", Source: "Regex (digit)"},
		{Text: "a3", Source: "Regex (digit)"},
	}, got)
}

func TestSearch_regexCaseInsensitive(t *testing.T) {
	got, err := Search("Ref: ABC-123", nil, []models.RegexRule{{Pattern: `abc-\d+`, Description: "ref"}}, models.ModeRegex)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchRecord{{Text: "ABC-123", Source: "Regex (ref)"}}, got)
}

func TestSearch_modes(t *testing.T) {
	text := "password: hunter2 and Password again"
	keywords := []string{"password"}
	rules := []models.RegexRule{
		{Pattern: `hunter\d`, Description: "cred"},
		{Pattern: `password`, Description: "word"},
	}

	kw, err := Search(text, keywords, rules, models.ModeKeywords)
	require.NoError(t, err)
	for _, r := range kw {
		assert.Equal(t, "Keyword", r.Source)
	}
	assert.Len(t, kw, 1)

	rx, err := Search(text, keywords, rules, models.ModeRegex)
	require.NoError(t, err)
	for _, r := range rx {
		assert.NotEqual(t, "Keyword", r.Source)
	}
	assert.Len(t, rx, 3)

	both, err := Search(text, keywords, rules, models.ModeBoth)
	require.NoError(t, err)
	// no deduplication across groups, keywords first
	assert.Equal(t, []models.MatchRecord{
		{Text: "password", Source: "Keyword"},
		{Text: "hunter2", Source: "Regex (cred)"},
		{Text: "password", Source: "Regex (word)"},
		{Text: "Password", Source: "Regex (word)"},
	}, both)
}

func TestSearch_unknownModeYieldsNothing(t *testing.T) {
	got, err := Search("secret a1", []string{"secret"}, []models.RegexRule{{Pattern: `a\d`, Description: "d"}}, models.ParseSearchMode("kw"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCompile_invalidPattern(t *testing.T) {
	_, err := Compile(nil, []models.RegexRule{
		{Pattern: `ok`, Description: "fine"},
		{Pattern: `(unclosed`, Description: "broken"},
	})
	require.Error(t, err)
	var rerr *RuleError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 1, rerr.Index)
	assert.Equal(t, "broken", rerr.Description)
	var serr *syntax.Error
	assert.True(t, errors.As(err, &serr))
}

func TestCompile_lookaroundRejected(t *testing.T) {
	_, err := Compile(nil, []models.RegexRule{{Pattern: `foo(?=bar)`, Description: "lookahead"}})
	assert.Error(t, err)
}

func TestCompile_emptyKeywordsDropped(t *testing.T) {
	m, err := Compile([]string{"", "token"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchRecord{{Text: "token", Source: "Keyword"}}, m.Search("a token here", models.ModeKeywords))
}

func TestSearch_whitespaceKeywordIsLiteral(t *testing.T) {
	got, err := Search("a b", []string{" "}, nil, models.ModeKeywords)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchRecord{{Text: " ", Source: "Keyword"}}, got)

	got, err = Search("ab", []string{"  "}, nil, models.ModeKeywords)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatcher_reusableAcrossTexts(t *testing.T) {
	m, err := Compile([]string{"alpha"}, []models.RegexRule{{Pattern: `\d{3}`, Description: "num"}})
	require.NoError(t, err)
	first := m.Search("alpha 123", models.ModeBoth)
	second := m.Search("nothing here", models.ModeBoth)
	assert.Len(t, first, 2)
	assert.Empty(t, second)
}
