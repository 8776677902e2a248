package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/report"
	"github.com/phimhub/ingest/internal/store/memstore"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest a work list into the catalog",
	Long: `Ingest movies from the active source.

The work list comes from --in (one slug or movie URL per line, '-' for stdin)
or from listing pages --from..--to. For each item this command:
1. Extracts the slug and fetches the movie detail
2. Skips it when its type is excluded (--skip-format)
3. Inserts the movie if the catalog does not have it yet
4. Links genres, countries, actors, directors, category and year
   (excluded genres/countries are only left unlinked)
5. Adds the episodes the catalog does not have yet

A random delay between --wait-min and --wait-max milliseconds separates items.
Every run is recorded in the run ledger ('phimctl runs'). Ctrl-C stops the run
between items and records it as cancelled.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("in", "", "work list file ('-' for stdin)")
	runCmd.Flags().Int("from", 0, "first listing page")
	runCmd.Flags().Int("to", 0, "last listing page")
	runCmd.Flags().Bool("shuffle", false, "process the work list in random order")
	runCmd.Flags().StringSlice("skip-format", nil, "movie types to skip (single, series, hoathinh, tvshows)")
	runCmd.Flags().StringSlice("skip-genre", nil, "genres left unlinked")
	runCmd.Flags().StringSlice("skip-country", nil, "countries left unlinked")
	runCmd.Flags().Int("wait-min", 500, "minimum delay between items (ms)")
	runCmd.Flags().Int("wait-max", 1500, "maximum delay between items (ms)")
	runCmd.Flags().Int("workers", 1, "items processed in parallel (capped by the source max_concurrency)")
	runCmd.Flags().Bool("dry-run", false, "use an in-memory store; nothing is written")
	runCmd.Flags().String("report-dir", "", "report directory (default: artifacts/reports/<timestamp>)")

	viper.BindPFlag("crawl.skip_formats", runCmd.Flags().Lookup("skip-format"))
	viper.BindPFlag("crawl.skip_genres", runCmd.Flags().Lookup("skip-genre"))
	viper.BindPFlag("crawl.skip_countries", runCmd.Flags().Lookup("skip-country"))
	viper.BindPFlag("crawl.wait_min_ms", runCmd.Flags().Lookup("wait-min"))
	viper.BindPFlag("crawl.wait_max_ms", runCmd.Flags().Lookup("wait-max"))
	viper.BindPFlag("crawl.workers", runCmd.Flags().Lookup("workers"))
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	in, _ := cmd.Flags().GetString("in")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	shuffle, _ := cmd.Flags().GetBool("shuffle")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if (in == "") == (from == 0 && to == 0) {
		return fmt.Errorf("%w: use either --in or --from/--to", util.ErrInvalidInput)
	}
	if in == "" && to == 0 {
		to = from
	}

	adapter, srcCfg, err := openAdapter()
	if err != nil {
		return err
	}

	var st catalog.Store
	if dryRun {
		util.WarnLog("Dry run: using the in-memory store")
		st = memstore.New()
	} else if st, err = openStore(); err != nil {
		return err
	}
	defer st.Close()

	events := newEventLogger()
	defer events.Close()

	opts, err := crawlOptions(srcCfg)
	if err != nil {
		return err
	}

	var list []string
	if in != "" {
		if list, err = readList(in); err != nil {
			return err
		}
		opts.Label = "list " + filepath.Base(in)
		if shuffle {
			list = crawl.Shuffle(list, nil)
			opts.Label += " shuffled"
		}
	} else {
		opts.Shuffle = shuffle
	}

	progress := newProgressReporter()

	c, err := newCrawler(adapter, st, events, crawl.WithProgress(progress.Update))
	if err != nil {
		return err
	}

	util.InfoLog("=== Ingest ===")
	util.InfoLog("Source: %s (%s, tag %q)", srcCfg.Key, srcCfg.BaseURL, adapter.Tag())
	util.InfoLog("Workers: %d, delay %v-%v", opts.Workers, opts.WaitMin, opts.WaitMax)
	if len(opts.Filter.SkipFormats) > 0 || len(opts.Filter.SkipGenres) > 0 || len(opts.Filter.SkipCountries) > 0 {
		util.InfoLog("Filters: formats %v, genres %v, countries %v",
			opts.Filter.SkipFormats, opts.Filter.SkipGenres, opts.Filter.SkipCountries)
	}

	var summary *crawl.RunSummary
	if in != "" {
		summary, err = c.Run(ctx, list, opts)
	} else {
		summary, err = c.RunPages(ctx, from, to, opts)
	}
	progress.Finish()

	if summary != nil {
		printSummary(summary)
		writeRunReport(cmd, st, summary, events.Path())
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if summary.Status == catalog.RunCancelled {
		return fmt.Errorf("run %s: %w", summary.RunID, util.ErrCancelled)
	}
	return nil
}

func printSummary(s *crawl.RunSummary) {
	util.InfoLog("")
	util.SuccessLog("=== Run Summary ===")
	util.InfoLog("Run: %s (%s)", s.RunID, s.Status)
	util.InfoLog("Total time: %v", s.Duration.Round(time.Millisecond))
	util.InfoLog("Items processed: %s of %s", humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Total)))
	util.InfoLog("  Added: %d", s.Added)
	util.InfoLog("  Updated: %d", s.Updated)
	util.InfoLog("  Unchanged: %d", s.Unchanged)
	util.InfoLog("  Skipped: %d", s.Skipped)
	if s.Failed > 0 {
		util.WarnLog("  Failed: %d", s.Failed)
	}
	util.InfoLog("Episodes added: %s", humanize.Comma(int64(s.EpisodesAdded)))

	failures := 0
	for _, e := range s.Errors {
		if failures == 0 {
			util.InfoLog("")
			util.WarnLog("Errors encountered:")
		}
		if failures >= 10 {
			util.WarnLog("... and %d more", len(s.Errors)-10)
			break
		}
		util.WarnLog("  - [%d] %s: %s", e.Index, e.Slug, e.Message)
		failures++
	}
}

func writeRunReport(cmd *cobra.Command, st catalog.Store, s *crawl.RunSummary, eventLogPath string) {
	run, err := st.GetRun(cmd.Context(), s.RunID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		run = &catalog.Run{ID: s.RunID, Status: s.Status, Total: s.Total, Duration: s.Duration}
	case err != nil:
		util.WarnLog("Failed to load run %s: %v", s.RunID, err)
		return
	}

	summaryReport := report.BuildSummaryReport(run, s.Lines(), eventLogPath)
	summaryReport.DatabasePath = viper.GetString("db")

	reportDir, _ := cmd.Flags().GetString("report-dir")
	if reportDir == "" {
		reportDir = filepath.Join("artifacts", "reports", time.Now().Format("20060102-150405"))
	}
	reportPath := filepath.Join(reportDir, "summary.md")
	if err := report.WriteMarkdownReport(summaryReport, reportPath); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.SuccessLog("Summary report saved to: %s", reportPath)
}
