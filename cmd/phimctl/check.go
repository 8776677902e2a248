package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/store"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run diagnostic checks on the configuration, database and source",
	Long: `Run diagnostic checks to ensure phimctl can operate correctly.

This command checks:
- SQLite version (built-in driver)
- Database accessibility, schema version and integrity
- Store connectivity for the configured store.driver
- Source reachability (fetches listing page 1)
- Asset directory (resize mode only)

Use this command to troubleshoot issues before starting a run.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Bool("offline", false, "skip the source reachability check")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	util.InfoLog("=== phimctl check - diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}

	driver := GetConfigString("store.driver", "sqlite")
	if driver == "sqlite" {
		results = append(results, checkDatabase(GetConfigString("db", "phimctl.db")))
	} else {
		results = append(results, checkStore(ctx, driver))
	}

	offline, _ := cmd.Flags().GetBool("offline")
	srcCfg, err := sourceConfig(GetConfigString("source", "primary"))
	switch {
	case err != nil:
		results = append(results, checkResult{name: "Source", error: true, message: err.Error()})
	case !offline:
		results = append(results, checkSource(ctx, srcCfg))
	}

	if GetConfigString("assets.mode", "passthrough") == "resize" {
		results = append(results, checkAssetDir(viper.GetString("assets.dir")))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running phimctl.")
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! Ready to ingest.")
	}
	return nil
}

// checkSQLite verifies the embedded SQLite version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

// checkDatabase verifies the sqlite file, its schema and integrity
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{name: "Database", warning: true, message: "no database path specified (use --db flag or config)"}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{name: "Database", message: fmt.Sprintf("%s (will be created on first run)", dbPath)}
		}
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot access %s: %v", dbPath, err)}
	}
	if !info.Mode().IsRegular() {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("%s is not a regular file", dbPath)}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot open %s: %v", dbPath, err)}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}

	version, err := db.SchemaVersion()
	if err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot read schema version: %v", err)}
	}
	movies, _ := db.CountMovies(context.Background())

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, schema v%d, %s movies)", dbPath, humanize.Bytes(uint64(info.Size())), version, humanize.Comma(int64(movies))),
	}
}

// checkStore pings a non-sqlite backend
func checkStore(ctx context.Context, driver string) checkResult {
	name := fmt.Sprintf("Store (%s)", driver)
	st, err := openStore()
	if err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("ping failed: %v", err)}
	}
	return checkResult{name: name, message: "reachable"}
}

// checkSource fetches listing page 1
func checkSource(ctx context.Context, cfg source.SourceConfig) checkResult {
	name := fmt.Sprintf("Source %s (%s)", cfg.Key, cfg.Kind)
	adapter, err := source.New(cfg)
	if err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}

	start := time.Now()
	items, pagination, err := adapter.FetchList(ctx, 1)
	if err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("%s unreachable: %v", cfg.BaseURL, err)}
	}
	if len(items) == 0 {
		return checkResult{name: name, warning: true, message: "listing page 1 is empty"}
	}
	return checkResult{
		name: name,
		message: fmt.Sprintf("%d items on page 1 of %s (%v)", len(items),
			humanize.Comma(int64(pagination.TotalPages)), time.Since(start).Round(time.Millisecond)),
	}
}

// checkAssetDir verifies the resize output directory is writable
func checkAssetDir(dir string) checkResult {
	if dir == "" {
		return checkResult{name: "Asset directory", error: true, message: "assets.dir is empty"}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{name: "Asset directory", error: true, message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}

	testFile := filepath.Join(dir, ".phimctl_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{name: "Asset directory", error: true, message: fmt.Sprintf("cannot write to %s: %v", dir, err)}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{name: "Asset directory", message: fmt.Sprintf("%s (writable)", dir)}
}
