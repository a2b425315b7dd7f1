// Package newssource defines the abstract news-search API contract
// (Source) and a Bing-news-like reference implementation (BingSource) that
// produce the DiscoveryItems the pipeline builds Articles from.
package newssource

import (
	"context"
	"fmt"

	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
)

// Source is the per-country trending-article discovery contract. Concrete
// implementations are stateless except for their own configuration (spec
// §9: "Abstract base class hierarchy" re-expressed as an interface).
type Source interface {
	// Trending returns the discovery items for a single market tag
	// ("<lang>-<COUNTRY>", e.g. "en-GB"). All returned items are tagged
	// with origin_country = COUNTRY, language = lang.
	Trending(ctx context.Context, market string) ([]entity.DiscoveryItem, error)

	// AvailableMarkets returns the set of markets this source iterates.
	AvailableMarkets() []string

	// Name identifies the source for telemetry and logging (source_api).
	Name() string
}

// NewsSourceError is the generic error a Source implementation's HTTP call
// can fail with: any 4xx/5xx other than 429.
type NewsSourceError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *NewsSourceError) Error() string {
	return fmt.Sprintf("%s: news source error (HTTP %d): %s", e.Source, e.StatusCode, e.Message)
}

// RateLimitError is the distinguished subtype of NewsSourceError for HTTP
// 429 responses — the only error class the retry policy acts on.
type RateLimitError struct {
	NewsSourceError
}

func (e *RateLimitError) Unwrap() error {
	return &e.NewsSourceError
}
