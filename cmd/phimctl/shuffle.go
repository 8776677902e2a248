package main

import (
	"io"
	"os"

	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
)

var shuffleCmd = &cobra.Command{
	Use:   "shuffle",
	Short: "Shuffle a work list",
	Long: `Read a work list (one slug or movie URL per line) and write it back in
uniformly random order. Blank lines and '#' comments are dropped.

Reads stdin when --in is omitted and writes stdout when --out is omitted.`,
	RunE: runShuffle,
}

func init() {
	rootCmd.AddCommand(shuffleCmd)

	shuffleCmd.Flags().String("in", "", "input list (default stdin)")
	shuffleCmd.Flags().String("out", "", "output list (default stdout)")
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func runShuffle(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")

	list, err := readList(in)
	if err != nil {
		return err
	}
	util.DebugLog("Shuffling %d entries", len(list))
	return writeList(out, crawl.Shuffle(list, nil))
}
