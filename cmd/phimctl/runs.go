package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the run ledger",
	Long: `List the newest entries of the run ledger with their status and counters.

Use 'phimctl runs show <id>' for the full entry, including its message.`,
	RunE: runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run ledger entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.Flags().Int("limit", 20, "number of runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		util.WarnLog("No runs recorded yet. Start one with 'phimctl run'.")
		return nil
	}
	return printRunTable(os.Stdout, runs, time.Now())
}

func printRunTable(out io.Writer, runs []*catalog.Run, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tTYPE\tSTATUS\tTOTAL\tADDED\tUPDATED\tSKIPPED\tFAILED\tEPISODES\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, humanize.RelTime(r.StartedAt, now, "ago", "from now"), r.Source, r.Type, r.Status,
			r.Total, r.MoviesAdded, r.MoviesUpdated, r.MoviesSkipped, r.MoviesFailed,
			humanize.Comma(int64(r.EpisodesAdded)), r.Duration.Round(time.Second))
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), args[0])
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("run %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	util.InfoLog("=== Run %s ===", run.ID)
	util.InfoLog("Type: %s", run.Type)
	util.InfoLog("Source: %s", run.Source)
	util.InfoLog("Status: %s", run.Status)
	util.InfoLog("Started: %s (%s)", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
	if run.FinishedAt != nil {
		util.InfoLog("Finished: %s", run.FinishedAt.Local().Format(time.DateTime))
	}
	util.InfoLog("Duration: %v", run.Duration.Round(time.Millisecond))
	util.InfoLog("Items: %d", run.Total)
	util.InfoLog("  Added: %d", run.MoviesAdded)
	util.InfoLog("  Updated: %d", run.MoviesUpdated)
	util.InfoLog("  Skipped: %d", run.MoviesSkipped)
	if run.MoviesFailed > 0 {
		util.WarnLog("  Failed: %d", run.MoviesFailed)
	}
	util.InfoLog("Episodes added: %s", humanize.Comma(int64(run.EpisodesAdded)))
	if run.Message != "" {
		util.InfoLog("Message: %s", run.Message)
	}
	return nil
}
