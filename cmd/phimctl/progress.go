package main

import (
	"fmt"
	"os"
	"time"

	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/util"
	"github.com/schollz/progressbar/v3"
)

// progressReporter renders orchestrator progress: a bar on a terminal, a log
// line every logEvery items otherwise
type progressReporter struct {
	bar      *progressbar.ProgressBar
	logEvery int
	width    int
	tty      bool

	counts map[crawl.Outcome]int
}

func newProgressReporter() *progressReporter {
	// Disable the bar when stderr is piped/redirected
	return &progressReporter{
		logEvery: 10,
		width:    util.GetTerminalWidth(),
		tty:      util.IsTerminal(os.Stderr.Fd()) && !util.IsQuiet(),
		counts:   make(map[crawl.Outcome]int),
	}
}

// newBar is created on the first update, once page runs know their total
func newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("movies"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update is a crawl.ProgressFunc
func (r *progressReporter) Update(p crawl.Progress) {
	r.counts[p.Last.Outcome]++

	if r.bar == nil && r.tty && p.Total > 0 {
		r.bar = newBar(p.Total)
	}
	if r.bar != nil {
		r.bar.Describe(r.describe(p.CurrentSlug))
		_ = r.bar.Set(p.Processed)
		return
	}

	if p.Last.Outcome == crawl.OutcomeError {
		util.WarnLog("[%d/%d] %s: %s", p.Processed, p.Total, p.CurrentSlug, p.Last.Message())
	} else {
		util.DebugLog("[%d/%d] %s: %s", p.Processed, p.Total, p.CurrentSlug, p.Last.Outcome)
	}
	if p.Processed%r.logEvery == 0 || p.Processed == p.Total {
		util.InfoLog("Progress: %d/%d (added %d, updated %d, unchanged %d, skipped %d, failed %d)",
			p.Processed, p.Total,
			r.counts[crawl.OutcomeSuccess], r.counts[crawl.OutcomeUpdated], r.counts[crawl.OutcomeUnchanged],
			r.counts[crawl.OutcomeSkipped], r.counts[crawl.OutcomeError])
	}
}

func (r *progressReporter) describe(slug string) string {
	stats := fmt.Sprintf(" | +%d ~%d !%d", r.counts[crawl.OutcomeSuccess], r.counts[crawl.OutcomeUpdated], r.counts[crawl.OutcomeError])
	// bar, counters and rate take roughly 70 columns
	room := r.width - 70 - len(stats)
	if room < 8 {
		return "Ingesting" + stats
	}
	if len(slug) > room {
		slug = slug[:room-1] + "…"
	}
	return slug + stats
}

// Finish clears the bar
func (r *progressReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
