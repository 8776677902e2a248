package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve listing pages into a work list of slugs",
	Long: `Fetch listing pages --from..--to from the active source and print the
movie slugs found, one per line, in page order without duplicates.

Resolution stops early once the source reports no further pages.
Use --out to write the list to a file for 'phimctl shuffle' or 'phimctl run --in'.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().Int("from", 1, "first listing page")
	resolveCmd.Flags().Int("to", 1, "last listing page")
	resolveCmd.Flags().String("out", "", "write the list to this file instead of stdout")
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	out, _ := cmd.Flags().GetString("out")

	adapter, _, err := openAdapter()
	if err != nil {
		return err
	}

	util.InfoLog("=== Resolving pages %d-%d from %s ===", from, to, adapter.Key())
	slugs, err := crawl.ResolveList(ctx, adapter, from, to, nil)
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}

	if err := writeList(out, slugs); err != nil {
		return err
	}
	util.SuccessLog("Resolved %d slugs", len(slugs))
	return nil
}

// writeList writes one entry per line to path, or to stdout when path is empty
func writeList(path string, list []string) error {
	text := strings.Join(list, "\n")
	if len(list) > 0 {
		text += "\n"
	}
	if path == "" {
		_, err := fmt.Fprint(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	util.InfoLog("Wrote %s", path)
	return nil
}

// readList reads a work list from path, or from stdin when path is empty or "-"
func readList(path string) ([]string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read work list: %w", err)
	}
	return crawl.ParseList(string(data)), nil
}
