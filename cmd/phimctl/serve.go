package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phimhub/ingest/internal/api"
	"github.com/phimhub/ingest/internal/scheduler"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator HTTP API and the crawl schedule",
	Long: `Start the operator HTTP API:

  POST /api/runs       start a run (slugs or from/to), returns its id
  GET  /api/runs       newest ledger entries
  GET  /api/runs/:id   one ledger entry
  POST /api/resolve    slugs of a page range
  GET  /healthz        store health

When schedule.cron (or schedule.interval) is set, pages 1..schedule.pages are
crawled on that schedule. A scheduled crawl never overlaps another run.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "listen port")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	adapter, srcCfg, err := openAdapter()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events := newEventLogger()
	defer events.Close()

	c, err := newCrawler(adapter, st, events)
	if err != nil {
		return err
	}

	opts, err := crawlOptions(srcCfg)
	if err != nil {
		return err
	}
	svc := api.NewService(ctx, c, adapter, opts, srcCfg.MaxConcurrency)
	defer svc.Wait()

	if def := scheduleDefinition(); def.Cron != "" || def.Interval > 0 {
		pages := GetConfigInt("schedule.pages", 3)
		sch, err := scheduler.New(fmt.Sprintf("crawl pages 1-%d", pages), def, func(ctx context.Context) error {
			_, err := svc.Execute(ctx, api.RunRequest{From: 1, To: pages, Label: "scheduled"})
			if errors.Is(err, api.ErrBusy) {
				util.InfoLog("Scheduled crawl skipped: another run is in progress")
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
		sch.Start(ctx)
		defer sch.Stop()
		if next, err := sch.NextRun(); err == nil {
			util.InfoLog("Next scheduled crawl: %s", next.Local().Format(time.DateTime))
		}
	}

	router := api.NewRouter(api.NewHandler(svc, st), GetConfigString("server.mode", "release"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", GetConfigInt("server.port", 8080)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.SuccessLog("Listening on %s (source %s)", srv.Addr, srcCfg.Key)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		util.InfoLog("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func scheduleDefinition() scheduler.Definition {
	return scheduler.Definition{
		Cron:     viper.GetString("schedule.cron"),
		Interval: viper.GetDuration("schedule.interval"),
	}
}
