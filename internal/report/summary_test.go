package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phimhub/ingest/internal/catalog"
)

func testRun() *catalog.Run {
	return &catalog.Run{
		ID:            "3f1c",
		Type:          "pages 1-3",
		Source:        "primary",
		Status:        catalog.RunSuccess,
		Total:         1200,
		MoviesAdded:   1100,
		MoviesUpdated: 40,
		MoviesSkipped: 1,
		MoviesFailed:  3,
		EpisodesAdded: 15000,
		Duration:      95 * time.Second,
	}
}

func testItems() []ItemLine {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []ItemLine{
		{Index: 0, Slug: "a", Outcome: "success", At: at},
		{Index: 1, Slug: "b", Outcome: "error", Message: `primary: movie "b" not found`, At: at},
		{Index: 2, Slug: "c", Outcome: "error", Message: `primary: movie "c" not found`, At: at},
		{Index: 3, Slug: "d", Outcome: "error", Message: "primary: GET https://x/phim/d: status 502", At: at},
		{Index: 4, Slug: "e", Outcome: "skipped", Message: "type single | excluded", At: at},
	}
}

func TestBuildSummaryReport(t *testing.T) {
	report := BuildSummaryReport(testRun(), testItems(), "events.jsonl")

	if len(report.Failures) != 3 {
		t.Errorf("Failures = %d, want 3", len(report.Failures))
	}
	if len(report.Skipped) != 1 {
		t.Errorf("Skipped = %d, want 1", len(report.Skipped))
	}
	if len(report.TopErrors) != 2 {
		t.Fatalf("TopErrors = %+v, want 2 groups", report.TopErrors)
	}
	if report.TopErrors[0].Count != 2 || !strings.Contains(report.TopErrors[0].Error, "not found") {
		t.Errorf("top error = %+v", report.TopErrors[0])
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")

	report := BuildSummaryReport(testRun(), testItems(), "/test/events.jsonl")
	report.DatabasePath = "/test/catalog.db"

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report file: %v", err)
	}
	contentStr := string(content)

	for _, want := range []string{
		"# Catalog Ingest - Run Report",
		"## 📊 Overview",
		"| Movies Added | 1,100 |",
		"| Episodes Added | 15,000 |",
		"| Duration | 1m35s |",
		"## ⚠️ Top Errors",
		"## ❌ Failed Items",
		"## ⏭️ Skipped Items",
		"type single \\| excluded",
		"/test/catalog.db",
		"`3f1c`",
	} {
		if !strings.Contains(contentStr, want) {
			t.Errorf("Report missing %q", want)
		}
	}
}

func TestRenderMarkdownCleanRun(t *testing.T) {
	run := testRun()
	run.MoviesFailed = 0
	run.MoviesSkipped = 0
	md := RenderMarkdown(BuildSummaryReport(run, nil, ""))

	if strings.Contains(md, "Top Errors") || strings.Contains(md, "Failed Items") {
		t.Error("clean run should have no error sections")
	}
	if strings.Contains(md, "Movies Failed") {
		t.Error("zero failures should be omitted from the overview")
	}
}

func TestErrorShape(t *testing.T) {
	a := errorShape(`ophim: GET https://a/phim/x: status 503`)
	b := errorShape(`ophim: GET https://a/phim/y: status 502`)
	if a != b {
		t.Errorf("shapes differ: %q vs %q", a, b)
	}
}
