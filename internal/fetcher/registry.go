package fetcher

import (
	"log/slog"

	"github.com/the-globe-v2/news-scraper/internal/fetcher/browser"
	"github.com/the-globe-v2/news-scraper/internal/fetcher/msn"
)

// NewCustomFetcherRegistry builds the host -> Fetcher map WebContentFetcher
// consults before falling back to the generic chain. Mirrors the teacher's
// ScraperFactory.CreateScrapers shape: one constructor call per registered
// custom fetcher, centralized so adding a new per-domain override is a
// one-line addition here rather than a change to WebContentFetcher itself.
func NewCustomFetcherRegistry(mgr *browser.Manager, logger *slog.Logger) map[string]Fetcher {
	msnFetcher := msn.New(mgr, logger)
	return map[string]Fetcher{
		"www.msn.com": msnFetcher,
		"msn.com":     msnFetcher,
	}
}
