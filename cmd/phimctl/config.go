package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/phimhub/ingest/internal/asset"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/crawl"
	"github.com/phimhub/ingest/internal/filter"
	"github.com/phimhub/ingest/internal/report"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/store"
	"github.com/phimhub/ingest/internal/store/memstore"
	"github.com/phimhub/ingest/internal/store/pgstore"
	"github.com/phimhub/ingest/internal/util"
	"github.com/spf13/viper"
)

// PHIMCTL_CRAWL_WORKERS maps to crawl.workers
var envKeyReplacer = strings.NewReplacer(".", "_")

func init() {
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.max_open_conns", 10)
	viper.SetDefault("store.max_idle_conns", 5)

	viper.SetDefault("sources.primary.kind", "ophim")
	viper.SetDefault("sources.primary.base_url", "https://ophim1.com")
	viper.SetDefault("sources.primary.rate_per_sec", 2)
	viper.SetDefault("sources.secondary.kind", "ophimv1")
	viper.SetDefault("sources.secondary.base_url", "https://ophim1.com")
	viper.SetDefault("sources.secondary.tag", "v1")
	viper.SetDefault("sources.secondary.rate_per_sec", 2)

	viper.SetDefault("crawl.wait_min_ms", 500)
	viper.SetDefault("crawl.wait_max_ms", 1500)
	viper.SetDefault("crawl.workers", 1)
	viper.SetDefault("crawl.episode_chunk", catalog.DefaultChunkSize)

	viper.SetDefault("assets.mode", "passthrough")
	viper.SetDefault("assets.dir", "media")
	viper.SetDefault("assets.public_prefix", "/media")
	viper.SetDefault("assets.max_width", 600)
	viper.SetDefault("assets.quality", 85)

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("schedule.pages", 3)
}

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PHIMCTL_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigStringSlice retrieves a string slice config value
func GetConfigStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// sourceConfig reads sources.<key>
func sourceConfig(key string) (source.SourceConfig, error) {
	p := "sources." + key + "."
	cfg := source.SourceConfig{
		Key:            key,
		Kind:           viper.GetString(p + "kind"),
		BaseURL:        viper.GetString(p + "base_url"),
		ListPath:       viper.GetString(p + "list_path"),
		DetailPath:     viper.GetString(p + "detail_path"),
		Tag:            viper.GetString(p + "tag"),
		Timeout:        time.Duration(viper.GetInt(p+"timeout")) * time.Second,
		RetryCount:     source.DefaultRetryCount,
		RatePerSec:     viper.GetFloat64(p + "rate_per_sec"),
		Burst:          viper.GetInt(p + "burst"),
		MaxConcurrency: viper.GetInt(p + "max_concurrency"),
		Proxy:          viper.GetString(p + "proxy"),
		UserAgent:      viper.GetString(p + "user_agent"),
	}
	if viper.IsSet(p + "retry_count") {
		cfg.RetryCount = viper.GetInt(p + "retry_count")
	}
	if cfg.Kind == "" {
		return cfg, fmt.Errorf("%w: source %q is not configured (kinds: %s)",
			util.ErrInvalidConfig, key, strings.Join(source.Kinds(), ", "))
	}
	return cfg.WithDefaults(), nil
}

// openAdapter builds the adapter for the active source key
func openAdapter() (source.Adapter, source.SourceConfig, error) {
	cfg, err := sourceConfig(GetConfigString("source", "primary"))
	if err != nil {
		return nil, cfg, err
	}
	adapter, err := source.New(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return adapter, cfg, nil
}

// openStore opens the backend named by store.driver
func openStore() (catalog.Store, error) {
	switch driver := GetConfigString("store.driver", "sqlite"); driver {
	case "sqlite":
		dbPath := GetConfigString("db", "phimctl.db")
		util.InfoLog("Opening database: %s", dbPath)
		db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{
			BulkPragmas: viper.GetBool("store.bulk_pragmas"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	case "postgres":
		util.InfoLog("Opening PostgreSQL store")
		db, err := pgstore.Open(pgstore.Config{
			DSN:             viper.GetString("store.dsn"),
			MaxOpenConns:    viper.GetInt("store.max_open_conns"),
			MaxIdleConns:    viper.GetInt("store.max_idle_conns"),
			ConnMaxLifetime: time.Hour,
			LogSQL:          viper.GetBool("verbose"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	case "memory":
		util.WarnLog("Using the in-memory store: nothing is persisted")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store.driver %q", util.ErrInvalidConfig, driver)
	}
}

// assetPolicy builds the image policy named by assets.mode
func assetPolicy() (asset.Policy, error) {
	switch mode := GetConfigString("assets.mode", "passthrough"); mode {
	case "passthrough":
		return asset.Passthrough{}, nil
	case "resize":
		return asset.NewResize(asset.ResizeConfig{
			Dir:          viper.GetString("assets.dir"),
			PublicPrefix: viper.GetString("assets.public_prefix"),
			MaxWidth:     viper.GetInt("assets.max_width"),
			Quality:      viper.GetInt("assets.quality"),
		})
	default:
		return nil, fmt.Errorf("%w: unknown assets.mode %q", util.ErrInvalidConfig, mode)
	}
}

// crawlOptions reads the crawl section. Workers is capped by the source's
// max_concurrency.
func crawlOptions(src source.SourceConfig) (crawl.Options, error) {
	formats, err := filter.ParseFormats(GetConfigStringSlice("crawl.skip_formats"))
	if err != nil {
		return crawl.Options{}, fmt.Errorf("crawl.skip_formats: %w", err)
	}
	opts := crawl.Options{
		Filter: filter.Rules{
			SkipFormats:   formats,
			SkipGenres:    GetConfigStringSlice("crawl.skip_genres"),
			SkipCountries: GetConfigStringSlice("crawl.skip_countries"),
		},
		WaitMin: time.Duration(viper.GetInt("crawl.wait_min_ms")) * time.Millisecond,
		WaitMax: time.Duration(viper.GetInt("crawl.wait_max_ms")) * time.Millisecond,
		Workers: GetConfigInt("crawl.workers", 1),
	}
	opts.Workers = capWorkers(opts.Workers, src.MaxConcurrency)
	return opts, nil
}

func capWorkers(workers, maxConcurrency int) int {
	if workers < 1 {
		workers = 1
	}
	if maxConcurrency > 0 && workers > maxConcurrency {
		util.WarnLog("Workers capped at %d by source max_concurrency", maxConcurrency)
		workers = maxConcurrency
	}
	return workers
}

// newEventLogger opens the JSONL audit log under artifacts/
func newEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger("artifacts", logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}

// newCrawler wires the configured asset policy and chunk size
func newCrawler(adapter source.Adapter, st catalog.Store, events *report.EventLogger, extra ...crawl.Option) (*crawl.Crawler, error) {
	policy, err := assetPolicy()
	if err != nil {
		return nil, err
	}
	opts := []crawl.Option{
		crawl.WithAssets(policy),
		crawl.WithEvents(events),
		crawl.WithChunkSize(GetConfigInt("crawl.episode_chunk", catalog.DefaultChunkSize)),
	}
	return crawl.New(adapter, st, append(opts, extra...)...), nil
}
