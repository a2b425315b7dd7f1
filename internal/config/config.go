// Package config loads PipelineConfig: the pipeline-level environment keys
// (the fetcher's own keys are loaded by internal/fetcher.LoadConfigFromEnv),
// fail-open like the teacher's worker config — an unset key silently
// defaults and a set-but-invalid one logs a warning and falls back.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "github.com/the-globe-v2/news-scraper/internal/pkg/config"
)

// SourceConfig is one configured NewsSource's credentials and market list,
// keyed by its <NEWS_API> env prefix (e.g. "BING").
type SourceConfig struct {
	Name            string
	Endpoint        string
	SubscriptionKey string
	Markets         []string
}

// PipelineConfig is the full set of operational settings for one harvester
// run, adapted from the teacher's WorkerConfig shape.
type PipelineConfig struct {
	LogLevel   string
	LoggingDir string

	StoreURI            string
	StoreDB             string
	StoreConnectTimeout time.Duration

	MaxScrapingWorkers int
	MinContentLength   int
	MaxContentLength   int

	Sources []SourceConfig

	CronSchedule string
}

// DefaultConfig returns a PipelineConfig with the defaults spec §6 and
// SPEC_FULL.md §6.1 name.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		LogLevel:            "INFO",
		LoggingDir:          "",
		StoreURI:            "mongodb://localhost:27017",
		StoreDB:             "globe_news",
		StoreConnectTimeout: 10 * time.Second,
		MaxScrapingWorkers:  5,
		MinContentLength:    200,
		MaxContentLength:    50000,
		CronSchedule:        "",
	}
}

// fileOverlay is the optional --config YAML shape: a source list and a
// handful of top-level overrides, read once at startup before the env-var
// overlay (env always wins over file, file always wins over DefaultConfig).
type fileOverlay struct {
	LogLevel     string         `yaml:"log_level"`
	CronSchedule string         `yaml:"cron_schedule"`
	Sources      []SourceConfig `yaml:"sources"`
}

// ApplyFile reads path as a YAML fileOverlay and merges it onto cfg: a zero
// LogLevel/CronSchedule, or one whose env key is set, leaves cfg's value
// untouched, and a non-empty Sources list is used only when cfg has no
// sources from the environment. A missing or malformed file is
// never fatal — it is logged and cfg is returned unchanged, matching this
// package's fail-open posture.
func ApplyFile(cfg PipelineConfig, path string, logger *slog.Logger) PipelineConfig {
	if path == "" {
		return cfg
	}
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("config file not readable, ignoring", slog.String("path", path), slog.Any("error", err))
		return cfg
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		logger.Warn("config file is not valid yaml, ignoring", slog.String("path", path), slog.Any("error", err))
		return cfg
	}

	if overlay.LogLevel != "" && os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = overlay.LogLevel
	}
	if overlay.CronSchedule != "" && os.Getenv("CRON_SCHEDULE") == "" {
		cfg.CronSchedule = overlay.CronSchedule
	}
	if len(overlay.Sources) > 0 && len(cfg.Sources) == 0 {
		cfg.Sources = overlay.Sources
	}
	return cfg
}

// sourcePrefixes lists the <NEWS_API> env prefixes this build resolves.
// Adding a second news API means adding one entry here — spec §9's "Factory
// for polymorphic sources".
var sourcePrefixes = []string{"BING"}

// LoadFromEnv loads PipelineConfig from the environment with fail-open
// semantics: every field falls back to its default on a missing or invalid
// value, logging a warning. Nothing here stops startup; the caller exits on
// an unreachable store (after Connect) and on a cron schedule the scheduler
// rejects.
func LoadFromEnv(logger *slog.Logger) PipelineConfig {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()

	cfg.LogLevel = pkgconfig.LoadEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.LoggingDir = pkgconfig.LoadEnvString("LOGGING_DIR", cfg.LoggingDir)
	cfg.StoreURI = pkgconfig.LoadEnvString("STORE_URI", cfg.StoreURI)
	cfg.StoreDB = pkgconfig.LoadEnvString("STORE_DB", cfg.StoreDB)
	cfg.CronSchedule = pkgconfig.LoadEnvString("CRON_SCHEDULE", cfg.CronSchedule)

	warn := func(field string, result pkgconfig.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		for _, w := range result.Warnings {
			logger.Warn("configuration fallback applied", slog.String("field", field), slog.String("warning", w))
		}
	}

	workersResult := pkgconfig.LoadEnvInt("MAX_SCRAPING_WORKERS", cfg.MaxScrapingWorkers, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 100)
	})
	cfg.MaxScrapingWorkers = workersResult.Value.(int)
	warn("MaxScrapingWorkers", workersResult)

	minLenResult := pkgconfig.LoadEnvInt("MIN_CONTENT_LENGTH", cfg.MinContentLength, func(v int) error {
		if v < 0 {
			return fmt.Errorf("must be non-negative")
		}
		return nil
	})
	cfg.MinContentLength = minLenResult.Value.(int)
	warn("MinContentLength", minLenResult)

	maxLenResult := pkgconfig.LoadEnvInt("MAX_CONTENT_LENGTH", cfg.MaxContentLength, func(v int) error {
		if v <= cfg.MinContentLength {
			return fmt.Errorf("must be greater than MIN_CONTENT_LENGTH")
		}
		return nil
	})
	cfg.MaxContentLength = maxLenResult.Value.(int)
	warn("MaxContentLength", maxLenResult)

	connectTimeoutResult := pkgconfig.LoadEnvDuration("STORE_CONNECT_TIMEOUT", cfg.StoreConnectTimeout, pkgconfig.ValidatePositiveDuration)
	cfg.StoreConnectTimeout = connectTimeoutResult.Value.(time.Duration)
	warn("StoreConnectTimeout", connectTimeoutResult)

	cfg.Sources = loadSources(logger)

	return cfg
}

// loadSources resolves every configured <NEWS_API>_ENDPOINT/_SUBSCRIPTION_KEY/_COUNTRIES
// triple. A source whose endpoint or key is unset is skipped entirely —
// there is no sensible default for a news-API credential.
func loadSources(logger *slog.Logger) []SourceConfig {
	var sources []SourceConfig
	for _, prefix := range sourcePrefixes {
		endpoint := pkgconfig.LoadEnvString(prefix+"_ENDPOINT", "")
		key := pkgconfig.LoadEnvString(prefix+"_SUBSCRIPTION_KEY", "")
		if endpoint == "" || key == "" {
			logger.Warn("news source not configured, skipping", slog.String("source", prefix))
			continue
		}
		countries := pkgconfig.LoadEnvString(prefix+"_COUNTRIES", "")
		sources = append(sources, SourceConfig{
			Name:            strings.ToLower(prefix),
			Endpoint:        endpoint,
			SubscriptionKey: key,
			Markets:         splitAndTrim(countries),
		})
	}
	return sources
}

func splitAndTrim(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
