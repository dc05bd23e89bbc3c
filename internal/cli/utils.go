// Package cli formats scan results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/pkg/utils"
)

// OutputFormat is the format for run and match output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per record.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts text, compact or json.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

const matchPreviewLen = 80

// WriteSummary writes a run summary to w in the given format.
func WriteSummary(w io.Writer, run *models.RunSummary, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, run)
	case OutputCompact:
		_, err := fmt.Fprintf(w, "%s files=%d matched=%d no_match=%d errors=%d matches=%d uploads=%d upload_failures=%d\n",
			run.RunID, run.Files, run.Matched, run.NoMatch, run.Errors, run.Matches, run.Uploads, run.UploadFailures)
		return err
	default:
		writeSummaryText(w, run)
		return nil
	}
}

func writeSummaryText(w io.Writer, run *models.RunSummary) {
	fmt.Fprintf(w, "\nScanned %d files under %s in %s\n\n", run.Files, run.Root, runDuration(run))
	fmt.Fprintf(w, "  Run ID:        %s\n", run.RunID)
	fmt.Fprintf(w, "  Match found:   %d (%d matches)\n", run.Matched, run.Matches)
	fmt.Fprintf(w, "  No match:      %d\n", run.NoMatch)
	fmt.Fprintf(w, "  Errors:        %d\n", run.Errors)
	if run.Uploads > 0 || run.UploadFailures > 0 {
		fmt.Fprintf(w, "  Uploaded:      %d (%d failed)\n", run.Uploads, run.UploadFailures)
	}
	fmt.Fprintln(w)
}

func runDuration(run *models.RunSummary) time.Duration {
	if run.FinishedAt.IsZero() || run.FinishedAt.Before(run.StartedAt) {
		return 0
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)
}

// WriteMatches writes match events to w in the given format.
func WriteMatches(w io.Writer, matches []models.MatchEvent, format OutputFormat) error {
	if matches == nil {
		matches = []models.MatchEvent{}
	}
	switch format {
	case OutputJSON:
		return writeJSON(w, matches)
	case OutputCompact:
		for _, m := range matches {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", m.Path, m.Source, m.MatchedText); err != nil {
				return err
			}
		}
		return nil
	default:
		if len(matches) == 0 {
			fmt.Fprintln(w, "No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "%s\n", m.Path)
			fmt.Fprintf(w, "[%s] %s\n", m.Source, utils.Truncate(m.MatchedText, matchPreviewLen))
		}
		fmt.Fprintln(w)
		return nil
	}
}

// WriteOutcomes writes per-file outcomes to w in the given format.
func WriteOutcomes(w io.Writer, outcomes []models.FileOutcome, format OutputFormat) error {
	if outcomes == nil {
		outcomes = []models.FileOutcome{}
	}
	if format == OutputJSON {
		return writeJSON(w, outcomes)
	}
	for _, o := range outcomes {
		line := fmt.Sprintf("%-12s %s", o.Status, o.Path)
		if o.Reason != "" {
			line += "  (" + utils.Truncate(o.Reason, matchPreviewLen) + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
