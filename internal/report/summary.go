package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phimhub/ingest/internal/catalog"
)

// ItemLine is the per-item record of a run, in work-list order
type ItemLine struct {
	Index         int
	Slug          string
	Outcome       string
	MovieID       int64
	EpisodesAdded int
	Message       string
	Duration      time.Duration
	At            time.Time
}

// SummaryReport represents a complete summary report of one run
type SummaryReport struct {
	GeneratedAt time.Time
	Run         *catalog.Run

	Items     []ItemLine
	Failures  []ItemLine
	Skipped   []ItemLine
	TopErrors []ErrorSummary

	// Metadata
	DatabasePath string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// BuildSummaryReport assembles the report of a finished run
func BuildSummaryReport(run *catalog.Run, items []ItemLine, eventLogPath string) *SummaryReport {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		Run:          run,
		Items:        items,
		EventLogPath: eventLogPath,
	}

	for _, it := range items {
		switch it.Outcome {
		case "error":
			report.Failures = append(report.Failures, it)
		case "skipped":
			report.Skipped = append(report.Skipped, it)
		}
	}

	report.TopErrors = gatherTopErrors(report.Failures, 10)
	return report
}

// Slugs, URLs and numbers differ from item to item; strip them so equal
// causes group together
var (
	quotedPattern = regexp.MustCompile(`"[^"]*"`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	numberPattern = regexp.MustCompile(`\d+`)
)

func errorShape(msg string) string {
	msg = urlPattern.ReplaceAllString(msg, "<url>")
	msg = quotedPattern.ReplaceAllString(msg, "<slug>")
	msg = numberPattern.ReplaceAllString(msg, "N")
	return msg
}

// gatherTopErrors groups failures by message shape, most frequent first
func gatherTopErrors(failures []ItemLine, limit int) []ErrorSummary {
	counts := make(map[string]int)
	for _, f := range failures {
		counts[errorShape(f.Message)]++
	}

	summaries := make([]ErrorSummary, 0, len(counts))
	for msg, n := range counts {
		summaries = append(summaries, ErrorSummary{Error: msg, Count: n})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].Error < summaries[j].Error
	})

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// WriteMarkdownReport writes a human-readable markdown report
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the report as markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder
	run := report.Run

	md.WriteString("# Catalog Ingest - Run Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if run != nil && run.ID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", run.ID))
	}
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	if run != nil {
		md.WriteString("## 📊 Overview\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Status | %s |\n", run.Status))
		if run.Source != "" {
			md.WriteString(fmt.Sprintf("| Source | %s |\n", run.Source))
		}
		if run.Type != "" {
			md.WriteString(fmt.Sprintf("| Batch | %s |\n", run.Type))
		}
		md.WriteString(fmt.Sprintf("| Work Items | %s |\n", humanize.Comma(int64(run.Total))))
		md.WriteString(fmt.Sprintf("| Movies Added | %s |\n", humanize.Comma(int64(run.MoviesAdded))))
		md.WriteString(fmt.Sprintf("| Movies Updated | %s |\n", humanize.Comma(int64(run.MoviesUpdated))))
		if run.MoviesSkipped > 0 {
			md.WriteString(fmt.Sprintf("| Movies Skipped | %s |\n", humanize.Comma(int64(run.MoviesSkipped))))
		}
		if run.MoviesFailed > 0 {
			md.WriteString(fmt.Sprintf("| Movies Failed | %s |\n", humanize.Comma(int64(run.MoviesFailed))))
		}
		md.WriteString(fmt.Sprintf("| Episodes Added | %s |\n", humanize.Comma(int64(run.EpisodesAdded))))
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", run.Duration.Round(time.Second)))
		if run.Message != "" {
			md.WriteString(fmt.Sprintf("| Message | %s |\n", escapeCell(run.Message)))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Error | Count |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", escapeCell(e.Error), e.Count))
		}
		md.WriteString("\n")
	}

	if len(report.Failures) > 0 {
		md.WriteString("## ❌ Failed Items\n\n")
		writeItemTable(&md, report.Failures)
	}

	if len(report.Skipped) > 0 {
		md.WriteString("## ⏭️ Skipped Items\n\n")
		writeItemTable(&md, report.Skipped)
	}

	md.WriteString("---\n\n")
	md.WriteString("*Report generated by phimctl*\n")

	return md.String()
}

func writeItemTable(md *strings.Builder, items []ItemLine) {
	md.WriteString("| # | Slug | Time | Reason |\n")
	md.WriteString("|---|------|------|--------|\n")
	for _, it := range items {
		md.WriteString(fmt.Sprintf("| %d | `%s` | %s | %s |\n",
			it.Index+1, it.Slug, it.At.Format("15:04:05"), escapeCell(it.Message)))
	}
	md.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
