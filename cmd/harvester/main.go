// Command harvester runs the news-harvest pipeline once or on a cron
// schedule: discover trending articles per configured market, scrape and
// normalize their content, and persist the result.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/the-globe-v2/news-scraper/internal/articlebuilder"
	"github.com/the-globe-v2/news-scraper/internal/config"
	"github.com/the-globe-v2/news-scraper/internal/contentvalidator"
	"github.com/the-globe-v2/news-scraper/internal/extractor"
	"github.com/the-globe-v2/news-scraper/internal/fetcher"
	"github.com/the-globe-v2/news-scraper/internal/fetcher/browser"
	"github.com/the-globe-v2/news-scraper/internal/newssource"
	"github.com/the-globe-v2/news-scraper/internal/obslog"
	"github.com/the-globe-v2/news-scraper/internal/pipeline"
	"github.com/the-globe-v2/news-scraper/internal/store"
	"github.com/the-globe-v2/news-scraper/internal/telemetry"
)

func main() {
	env := flag.String("env", "dev", "runtime environment: dev|prod|test")
	logLevelFlag := flag.String("log-level", "", "overrides LOG_LEVEL: DEBUG|INFO|WARNING|ERROR|CRITICAL")
	cronSchedule := flag.String("cron-schedule", "", "five-field cron expression; when set, runs the pipeline on each trigger")
	runNow := flag.Bool("run-now", false, "run once immediately at startup, independent of --cron-schedule")
	initStore := flag.Bool("init-store", false, "create store indexes and views, then exit")
	configFile := flag.String("config", "", "optional YAML file overlaying log_level/cron_schedule/sources; env vars still take precedence")
	flag.Parse()

	cfg := config.LoadFromEnv(slog.Default())
	cfg = config.ApplyFile(cfg, *configFile, slog.Default())
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	if *cronSchedule != "" {
		cfg.CronSchedule = *cronSchedule
	}
	logger := obslog.New(cfg.LogLevel, cfg.LoggingDir)
	slog.SetDefault(logger)

	logger.Info("harvester starting",
		slog.String("env", *env),
		slog.Int("max_scraping_workers", cfg.MaxScrapingWorkers),
		slog.Int("sources", len(cfg.Sources)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoStore, err := store.Connect(ctx, cfg.StoreURI, cfg.StoreDB, cfg.StoreConnectTimeout, logger)
	if err != nil {
		logger.Error("fatal: store connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := mongoStore.Close(closeCtx); err != nil {
			logger.Error("failed to close store connection", slog.Any("error", err))
		}
	}()

	if *initStore {
		if err := mongoStore.EnsureViews(ctx); err != nil {
			logger.Error("fatal: store initialization failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("store indexes and views created")
		return
	}

	p := buildPipeline(cfg, mongoStore, logger)

	switch {
	case cfg.CronSchedule != "":
		if *runNow {
			runOnce(ctx, logger, p)
		}
		startCron(logger, p, cfg.CronSchedule)
	default:
		runOnce(ctx, logger, p)
	}
}

// buildPipeline wires WebContentFetcher, the headless-browser manager, the
// extractor/validator/telemetry stack, every configured NewsSource, and the
// ArticleBuilder into a Pipeline — mirroring the teacher's
// setupFetchService wiring shape.
func buildPipeline(cfg config.PipelineConfig, mongoStore *store.MongoStore, logger *slog.Logger) *pipeline.Pipeline {
	tel := telemetry.New(prometheus.DefaultRegisterer)

	fetchCfg := fetcher.LoadConfigFromEnv(logger)

	browserMgr := browser.NewManager(browser.Config{RecycleInterval: fetchCfg.BrowserRecycleInterval, Logger: logger})
	headlessFetcher := browser.NewHeadlessFetcher(browserMgr, fetchCfg.BrowserTimeout, logger)
	customFetchers := fetcher.NewCustomFetcherRegistry(browserMgr, logger)

	webFetcher := fetcher.New(fetchCfg, customFetchers, headlessFetcher, tel, logger)

	contentExtractor := extractor.New(logger)
	validator := contentvalidator.New(cfg.MinContentLength, cfg.MaxContentLength, nil)
	builder := articlebuilder.New(webFetcher, contentExtractor, validator, tel, logger)

	sources := newssource.NewSources(cfg.Sources, logger)
	pipelineSources := make([]pipeline.Source, len(sources))
	for i, s := range sources {
		pipelineSources[i] = s
	}

	return pipeline.New(pipelineSources, builder, mongoStore, cfg.MaxScrapingWorkers, logger)
}

func runOnce(ctx context.Context, logger *slog.Logger, p *pipeline.Pipeline) {
	start := time.Now()
	ids, err := p.Run(ctx)
	if err != nil {
		logger.Error("pipeline run failed", slog.Any("error", err))
		return
	}
	logger.Info("pipeline run finished", slog.Int("inserted", len(ids)), slog.Duration("duration", time.Since(start)))
}

func startCron(logger *slog.Logger, p *pipeline.Pipeline, schedule string) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		runOnce(context.Background(), logger, p)
	})
	if err != nil {
		logger.Error("fatal: invalid cron schedule", slog.String("schedule", schedule), slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	logger.Info("harvester scheduled", slog.String("schedule", schedule))
	select {}
}

