// Package fetcher implements WebContentFetcher: the multi-strategy fallback
// chain that turns a discovered article URL into raw HTML, trying a
// per-domain custom fetcher first, then a plain HTTP GET, then the same GET
// under a different User-Agent, then a headless browser.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
	"github.com/the-globe-v2/news-scraper/internal/resilience/circuitbreaker"
	"github.com/the-globe-v2/news-scraper/internal/runid"
	"github.com/the-globe-v2/news-scraper/internal/telemetry"

	"golang.org/x/net/html/charset"
)

// methodAllFailed is the telemetry method key recorded when every stage in
// the chain has been exhausted without a 200.
const methodAllFailed = "all_methods_failed"

// Fetcher is the shape every fallback stage (custom and generic) satisfies.
// It never returns a transport error directly: transient failures surface as
// a non-200 status, matching the spec's "errors inside a stage are logged at
// warning but never propagated" rule.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (body string, status int)
}

// WebContentFetcher implements the spec's fallback chain: per-domain custom
// fetcher -> basic GET -> alt-UA GET -> headless browser.
type WebContentFetcher struct {
	cfg            Config
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	customFetchers map[string]Fetcher
	browser        Fetcher
	telemetry      *telemetry.Telemetry
	logger         *slog.Logger
	rng            *rand.Rand
}

// New builds a WebContentFetcher. browser may be nil, in which case the
// playwright_request stage is skipped and treated as a 500 (no headless
// browser available) — used in tests that don't want to launch a real
// browser process.
func New(cfg Config, customFetchers map[string]Fetcher, browser Fetcher, tel *telemetry.Telemetry, logger *slog.Logger) *WebContentFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if customFetchers == nil {
		customFetchers = map[string]Fetcher{}
	}

	client := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}

	wcf := &WebContentFetcher{
		cfg:            cfg,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		customFetchers: customFetchers,
		browser:        browser,
		telemetry:      tel,
		logger:         logger,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("too many redirects: %d", len(via))
		}
		if err := wcf.validateURL(req.URL.String()); err != nil {
			return fmt.Errorf("redirect target validation failed: %w", err)
		}
		return nil
	}

	return wcf
}

// validateURL applies SSRF protection when cfg.DenyPrivateIPs is set
// (entity.ValidateURL, which resolves DNS and rejects private ranges), and a
// lighter scheme/host-only check otherwise — used by integration tests that
// run against loopback httptest servers.
func (f *WebContentFetcher) validateURL(rawURL string) error {
	if f.cfg.DenyPrivateIPs {
		return entity.ValidateURL(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("url must have a host")
	}
	return nil
}

// Fetch runs the fallback chain for rawURL and returns the first HTML body
// obtained on a 200, or an empty string once every stage has failed.
func (f *WebContentFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	// Stage 1: per-domain custom fetcher, authoritative for its host.
	if custom, ok := f.customFetchers[host]; ok {
		body, status := custom.Fetch(ctx, rawURL)
		f.record(fmt.Sprintf("custom_%s_request", host), status)
		if status == http.StatusOK {
			return body, nil
		}
		// Spec: a non-200 from the custom fetcher skips the remaining
		// strategies entirely — the custom fetcher is authoritative.
		return "", nil
	}

	// Stage 2: basic GET with a randomly chosen User-Agent.
	body, status := f.doGet(ctx, rawURL, f.randomUserAgent())
	f.record("basic_request", status)
	if status == http.StatusOK {
		return body, nil
	}
	lastStatus := status

	// Stage 3: same GET under the Postman User-Agent.
	body, status = f.doGet(ctx, rawURL, f.cfg.PostmanUserAgent)
	f.record("postman_request", status)
	if status == http.StatusOK {
		return body, nil
	}
	lastStatus = status

	// Stage 4: headless browser render.
	if f.browser != nil {
		body, status = f.browser.Fetch(ctx, rawURL)
		f.record("playwright_request", status)
		if status == http.StatusOK {
			return body, nil
		}
		lastStatus = status
	} else {
		lastStatus = http.StatusInternalServerError
		f.record("playwright_request", lastStatus)
	}

	f.record(methodAllFailed, lastStatus)
	return "", nil
}

// doGet performs a single GET through the circuit breaker, translating every
// transport-level failure into a status code rather than an error, per the
// spec's "errors inside a stage are logged at warning but never propagated"
// rule.
func (f *WebContentFetcher) doGet(ctx context.Context, rawURL, userAgent string) (string, int) {
	if err := f.validateURL(rawURL); err != nil {
		f.logger.Warn("fetch stage rejected url", slog.String("url", rawURL), slog.Any("error", err))
		return "", http.StatusInternalServerError
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.get(ctx, rawURL, userAgent)
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return "", se.status
		}
		f.logger.Warn("fetch stage failed", slog.String("url", rawURL), slog.Any("error", err))
		return "", http.StatusInternalServerError
	}
	return result.(string), http.StatusOK
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

func (f *WebContentFetcher) get(ctx context.Context, rawURL, userAgent string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	if f.cfg.RunIDHeader != "" {
		if id := runid.FromContext(ctx); id != "" {
			req.Header.Set(f.cfg.RunIDHeader, id)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{status: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBodySize+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return "", err
	}
	if int64(len(raw)) > f.cfg.MaxBodySize {
		return "", &statusError{status: http.StatusInternalServerError}
	}

	return decodeBody(raw, resp.Header.Get("Content-Type"))
}

// decodeBody decodes raw to UTF-8 using the charset named by contentType, a
// BOM, or a <meta> declaration in the first 1024 bytes; when none is found,
// utf-8 or windows-1252 is assumed. No body is rejected for its encoding: an
// empty body decodes to "", and only a read failure yields status 500.
func decodeBody(raw []byte, contentType string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", &statusError{status: http.StatusInternalServerError}
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", &statusError{status: http.StatusInternalServerError}
	}
	return string(decoded), nil
}

func (f *WebContentFetcher) randomUserAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return defaultUserAgents[0]
	}
	return f.cfg.UserAgents[f.rng.Intn(len(f.cfg.UserAgents))]
}

func (f *WebContentFetcher) record(method string, status int) {
	if f.telemetry != nil {
		f.telemetry.RecordRequest(method, status)
	}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
