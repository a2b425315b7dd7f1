package browser

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HeadlessFetcher implements the playwright_request stage of
// WebContentFetcher's fallback chain: launch/acquire a headless tab,
// navigate with a hard timeout, and return the rendered DOM.
type HeadlessFetcher struct {
	mgr     *Manager
	timeout time.Duration
	logger  *slog.Logger
}

// NewHeadlessFetcher builds a HeadlessFetcher bound to mgr. timeout is the
// per-navigation ceiling; the spec fixes it at 10 seconds.
func NewHeadlessFetcher(mgr *Manager, timeout time.Duration, logger *slog.Logger) *HeadlessFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadlessFetcher{mgr: mgr, timeout: timeout, logger: logger}
}

// Fetch navigates to rawURL and returns the rendered document's outer HTML.
// Per the spec's general failure rule, every error here is logged and
// translated into a 500 rather than propagated; the 408-on-timeout carve-out
// is reserved for the msn.com custom fetcher, not this generic stage.
func (f *HeadlessFetcher) Fetch(ctx context.Context, rawURL string) (string, int) {
	navCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, closeFn, err := OpenTab(navCtx, f.mgr, rawURL)
	if err != nil {
		f.logger.Warn("headless fetch failed", slog.String("url", rawURL), slog.Any("error", err))
		return "", http.StatusInternalServerError
	}
	defer closeFn()

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		f.logger.Warn("headless fetch wait-load failed", slog.String("url", rawURL), slog.Any("error", err))
	}

	result, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		f.logger.Warn("headless fetch dom extraction failed", slog.String("url", rawURL), slog.Any("error", err))
		return "", http.StatusInternalServerError
	}

	return result.Value.Str(), http.StatusOK
}
