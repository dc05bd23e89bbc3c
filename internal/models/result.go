package models

import "time"

// SourceKeyword labels matches produced by literal keywords.
const SourceKeyword = "Keyword"

// OCRPlaceholder is written in the OCR column of match events; OCR use is not tracked per match.
const OCRPlaceholder = "N/A"

// MatchRecord is one hit: the matched text and the rule group that produced it.
type MatchRecord struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// RegexSource returns the source label for a regex rule with the given description.
func RegexSource(description string) string {
	return "Regex (" + description + ")"
}

// FileStatus is the per-file outcome written to the report log.
type FileStatus string

const (
	StatusMatchFound FileStatus = "Match Found"
	StatusNoMatch    FileStatus = "No Match"
	StatusError      FileStatus = "Error"
)

// FileOutcome is the per-file record sent to report sinks.
type FileOutcome struct {
	Timestamp time.Time  `json:"timestamp"`
	Path      string     `json:"path"`
	Status    FileStatus `json:"status"`
	// Reason carries the failure text for StatusError outcomes.
	Reason string `json:"reason,omitempty"`
}

// MatchEvent is the per-match record sent to report sinks.
type MatchEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Path        string    `json:"path"`
	MatchedText string    `json:"matched_text"`
	FileExt     string    `json:"file_ext"`
	Source      string    `json:"source"`
	OCRFlag     string    `json:"ocr_flag"`
}

// RunSummary aggregates one scan run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Root           string    `json:"root"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Files          int       `json:"files"`
	Matched        int       `json:"matched"`
	NoMatch        int       `json:"no_match"`
	Errors         int       `json:"errors"`
	Matches        int       `json:"matches"`
	Uploads        int       `json:"uploads"`
	UploadFailures int       `json:"upload_failures"`
}

// Record adds one file's status and match count to the summary.
func (s *RunSummary) Record(status FileStatus, matches int) {
	s.Files++
	s.Matches += matches
	switch status {
	case StatusMatchFound:
		s.Matched++
	case StatusNoMatch:
		s.NoMatch++
	case StatusError:
		s.Errors++
	}
}
