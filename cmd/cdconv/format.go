package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"cdconv/internal/classify"
	"cdconv/internal/convert"
	"cdconv/internal/errors"
	"cdconv/internal/history"
	"cdconv/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatHuman:
		return f, nil
	default:
		return "", errors.Newf(errors.ConfigInvalid, "unsupported format: %s (want human, json or yaml)", s)
	}
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *convert.Summary:
		return formatSummaryHuman(v), nil
	case []history.Run:
		return formatRunsHuman(v), nil
	case *unresolvedResponse:
		return formatUnresolvedHuman(v), nil
	case *classify.Result:
		return formatApplyHuman(v), nil
	case version.BuildInfo:
		return fmt.Sprintf("cdconv version %s\nCommit: %s\nBuilt: %s\nGo: %s",
			v.Version, v.Commit, v.BuildDate, v.GoVersion), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func formatSummaryHuman(s *convert.Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("cdconv run %s\n", s.RunID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Release date:      %s\n", s.ReleaseDate))
	b.WriteString(fmt.Sprintf("Output directory:  %s\n", s.OutputDir))
	b.WriteString("Archives:\n")
	for _, l := range s.Layers {
		b.WriteString(fmt.Sprintf("  %-10s %s\n", l.Kind, l.Path))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Attributes mapped: %s\n", count(s.Attributes)))
	b.WriteString(fmt.Sprintf("Number concepts:   %s\n", count(s.NumberConcepts)))
	b.WriteString(fmt.Sprintf("Numeric values:    %s\n", count(s.NumericValues)))
	if n := len(s.Report.Unresolved); n > 0 {
		b.WriteString(fmt.Sprintf("  without value:   %s\n", count(n)))
	}
	if n := len(s.Report.Duplicates); n > 0 {
		b.WriteString(fmt.Sprintf("  shared values:   %s\n", count(n)))
	}

	if len(s.Passes) > 0 {
		b.WriteString("\nPasses:\n")
		for _, p := range s.Passes {
			b.WriteString(fmt.Sprintf("  %d: %s rows from %s files in %s\n",
				p.Pass, count(p.Rows), count(p.Entries), p.Duration.Round(time.Millisecond)))
		}
	}

	if len(s.Passes) < 3 {
		b.WriteString("\nDry run, nothing written.\n")
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Rows written:      %s\n", count(s.RowsWritten)))
	b.WriteString(fmt.Sprintf("  rewritten now:   %s\n", count(s.WrittenImmediately)))
	b.WriteString(fmt.Sprintf("  carried forward: %s\n", count(s.PendingDrained)))
	b.WriteString(fmt.Sprintf("Superseded:        %s\n", count(s.PendingDiscarded)))
	b.WriteString(fmt.Sprintf("No number value:   %s\n", count(s.UnresolvedExpressions)))
	b.WriteString(fmt.Sprintf("Remodelled:        %s\n", count(s.Remodelled)))

	if len(s.Files) > 0 {
		b.WriteString("\nFiles:\n")
		for _, f := range s.Files {
			b.WriteString("  " + f + "\n")
		}
	}
	b.WriteString(fmt.Sprintf("\nCompleted in %s", s.Duration.Round(time.Millisecond)))
	return b.String()
}

func formatRunsHuman(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-36s  %-16s  %-8s  %10s  %10s  %s\n",
		"RUN", "STARTED", "RELEASE", "REMODELLED", "NO VALUE", "SNAPSHOT"))
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%-36s  %-16s  %-8s  %10s  %10s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.ReleaseDate,
			count(r.Remodelled),
			count(r.UnresolvedExpressions),
			r.Dependency))
	}
	return strings.TrimRight(b.String(), "\n")
}

// unresolvedResponse lists the number concepts a run could not resolve.
type unresolvedResponse struct {
	RunID    string   `json:"runId" yaml:"runId"`
	Concepts []string `json:"concepts" yaml:"concepts"`
}

func formatUnresolvedHuman(u *unresolvedResponse) string {
	if len(u.Concepts) == 0 {
		return fmt.Sprintf("Run %s resolved every number concept.", u.RunID)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Run %s: %s number concepts without a numeric value\n", u.RunID, count(len(u.Concepts))))
	for _, c := range u.Concepts {
		b.WriteString("  " + c + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatApplyHuman(r *classify.Result) string {
	return fmt.Sprintf("Classifier ids read: %s\nRows suppressed:     %s\nRows appended:       %s",
		count(r.IDsRead), count(r.Suppressed), count(r.Appended))
}
