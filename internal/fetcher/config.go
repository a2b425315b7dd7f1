package fetcher

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	pkgconfig "github.com/the-globe-v2/news-scraper/internal/pkg/config"
)

var (
	errNonPositiveDuration = errors.New("duration must be positive")
	errExceedsCeiling      = errors.New("duration exceeds the 10s fetch ceiling")
)

// defaultUserAgents mirrors spec's USER_AGENTS pool: a handful of common
// desktop browser strings the basic-request stage rotates through uniformly
// at random, so a single blocked UA doesn't sink every fetch.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

const defaultPostmanUserAgent = "PostmanRuntime/7.36.0"

// Config holds the tunables for WebContentFetcher. Only a handful of these
// are exposed as env overrides (see LoadConfigFromEnv); the rest hold the
// hard ceilings the specification fixes (such as the 10s per-GET timeout)
// that must not be configured away. The 5s MSN dwell is not held here: it is
// the dynamicContentWait constant of the msn package.
type Config struct {
	// UserAgents is the pool the basic-request stage picks from uniformly
	// at random.
	UserAgents []string

	// PostmanUserAgent replaces User-Agent entirely for the postman-request
	// stage.
	PostmanUserAgent string

	// RequestTimeout bounds a single basic/postman HTTP GET. The spec fixes
	// this ceiling at 10s; CONTENT_FETCH_TIMEOUT may only tune within it.
	RequestTimeout time.Duration

	// BrowserTimeout bounds a single headless-browser navigation.
	BrowserTimeout time.Duration

	// MaxBodySize caps the bytes read from any response body.
	MaxBodySize int64

	// MaxRedirects caps the redirect chain basic/postman requests follow.
	MaxRedirects int

	// DenyPrivateIPs gates SSRF protection via entity.ValidateURL.
	DenyPrivateIPs bool

	// BrowserRecycleInterval bounds how long a headless-browser process is
	// kept warm before Manager tears it down and relaunches (ambient
	// resource-hygiene concern, not part of the fetch contract itself).
	BrowserRecycleInterval time.Duration

	// RunIDHeader, when set, is the header name the run's correlation id
	// (see internal/runid) is echoed under on basic/postman requests. A
	// diagnostic aid only; unset by default.
	RunIDHeader string
}

// DefaultConfig returns the specification's fixed fallback-chain timings.
func DefaultConfig() Config {
	return Config{
		UserAgents:             defaultUserAgents,
		PostmanUserAgent:       defaultPostmanUserAgent,
		RequestTimeout:         10 * time.Second,
		BrowserTimeout:         10 * time.Second,
		MaxBodySize:            10 * 1024 * 1024,
		MaxRedirects:           5,
		DenyPrivateIPs:         true,
		BrowserRecycleInterval: 30 * time.Minute,
	}
}

// LoadConfigFromEnv loads WebContentFetcher tunables from the environment,
// falling back to defaults (with a logged warning) on any malformed value.
// Unlike store/news-source credentials, nothing here is fatal: a bad
// CONTENT_FETCH_TIMEOUT degrades the fetcher's timing, it does not stop the
// process from starting.
func LoadConfigFromEnv(logger *slog.Logger) Config {
	cfg := DefaultConfig()

	timeoutResult := pkgconfig.LoadEnvDuration("CONTENT_FETCH_TIMEOUT", cfg.RequestTimeout, func(d time.Duration) error {
		return validatePositiveAtMost(d, cfg.RequestTimeout)
	})
	cfg.RequestTimeout = timeoutResult.Value.(time.Duration)

	recycleResult := pkgconfig.LoadEnvDuration("BROWSER_RECYCLE_INTERVAL", cfg.BrowserRecycleInterval, nil)
	cfg.BrowserRecycleInterval = recycleResult.Value.(time.Duration)

	userAgentsResult := pkgconfig.LoadEnvWithFallback("USER_AGENTS", "", nil)
	if ua := userAgentsResult.Value.(string); ua != "" {
		var pool []string
		for _, part := range strings.Split(ua, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				pool = append(pool, trimmed)
			}
		}
		if len(pool) > 0 {
			cfg.UserAgents = pool
		}
	}

	postmanResult := pkgconfig.LoadEnvString("POSTMAN_USER_AGENT", cfg.PostmanUserAgent)
	cfg.PostmanUserAgent = postmanResult

	cfg.RunIDHeader = pkgconfig.LoadEnvString("PIPELINE_RUN_ID_HEADER", cfg.RunIDHeader)

	for _, w := range append(timeoutResult.Warnings, recycleResult.Warnings...) {
		if logger != nil {
			logger.Warn("fetcher configuration fallback", slog.String("detail", w))
		}
	}

	return cfg
}

func validatePositiveAtMost(d, ceiling time.Duration) error {
	if d <= 0 {
		return errNonPositiveDuration
	}
	if d > ceiling {
		return errExceedsCeiling
	}
	return nil
}
