// Package articlebuilder composes a validated, normalized Article from a
// DiscoveryItem and the HTML WebContentFetcher retrieves for it.
package articlebuilder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/the-globe-v2/news-scraper/internal/contentvalidator"
	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
	"github.com/the-globe-v2/news-scraper/internal/telemetry"
)

// Fetcher is the subset of WebContentFetcher's contract Builder depends on.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Extractor is the subset of the ArticleExtractor contract Builder depends on.
type Extractor interface {
	Extract(rawHTML, pageURL string) (entity.ExtractedContent, error)
}

// Builder implements the ArticleBuilder oracle: fetch, extract, sanitize,
// validate, compose — the five steps of spec §4.5.
type Builder struct {
	fetcher   Fetcher
	extractor Extractor
	validator *contentvalidator.Validator
	telemetry *telemetry.Telemetry
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Builder.
func New(fetcher Fetcher, extractor Extractor, validator *contentvalidator.Validator, tel *telemetry.Telemetry, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		fetcher:   fetcher,
		extractor: extractor,
		validator: validator,
		telemetry: tel,
		logger:    logger,
		now:       time.Now,
	}
}

// Build runs the five-step algorithm against item, returning (nil, reason, nil)
// for any expected failure (empty fetch, extraction error, failed validation) —
// those are recorded as build failures, not propagated as errors, and reason
// is the failure_reason spec §6's optional failed_articles collection
// records. A non-nil error is reserved for a malformed item.URL the builder
// cannot even attempt.
func (b *Builder) Build(ctx context.Context, item entity.DiscoveryItem) (*entity.Article, string, error) {
	host, err := providerHost(item.URL)
	if err != nil {
		return nil, "", fmt.Errorf("articlebuilder: invalid item url %q: %w", item.URL, err)
	}

	// Step 1: fetch raw HTML.
	rawHTML, fetchErr := b.fetcher.Fetch(ctx, item.URL)
	if fetchErr != nil || rawHTML == "" {
		reason := "no content fetched"
		b.logger.Warn("build failed: "+reason, slog.String("url", item.URL), slog.Any("error", fetchErr))
		b.recordFailure(host)
		return nil, reason, nil
	}

	// Step 2: extract content.
	extracted, extractErr := b.extractor.Extract(rawHTML, item.URL)
	if extractErr != nil {
		reason := fmt.Sprintf("extraction error: %v", extractErr)
		b.logger.Warn("build failed: extraction error", slog.String("url", item.URL), slog.Any("error", extractErr))
		b.recordFailure(host)
		return nil, reason, nil
	}

	// Step 3: sanitize.
	sanitized := b.validator.Sanitize(extracted.CleanedText)

	// Step 4: validate.
	ok, issues := b.validator.Validate(sanitized)
	if !ok {
		reason := fmt.Sprintf("content validation failed: %v", issues)
		b.logger.Warn("build failed: content validation", slog.String("url", item.URL), slog.Any("issues", issues))
		b.recordFailure(host)
		return nil, reason, nil
	}
	extracted.CleanedText = sanitized

	// Step 5: compose.
	article := compose(item, extracted, b.now())
	if err := entity.ValidateArticle(&article); err != nil {
		reason := fmt.Sprintf("composed article invalid: %v", err)
		b.logger.Warn("build failed: composed article invalid", slog.String("url", item.URL), slog.Any("error", err))
		b.recordFailure(host)
		return nil, reason, nil
	}

	b.recordSuccess(host)
	return &article, "", nil
}

// compose applies the field-derivation table from spec §4.5: DiscoveryItem
// is authoritative for metadata, ExtractedContent for body and authors, and
// language/image_url fall back to the extracted value only when the
// DiscoveryItem left them empty.
func compose(item entity.DiscoveryItem, extracted entity.ExtractedContent, now time.Time) entity.Article {
	language := item.Language
	if language == "" {
		language = extracted.MetaLang
	}

	imageURL := item.ImageURL
	if imageURL == "" {
		imageURL = extracted.TopImage
	}

	var keywords []string
	if strings.TrimSpace(extracted.MetaKeywords) != "" {
		keywords = strings.Fields(extracted.MetaKeywords)
	}

	return entity.Article{
		Title:         item.Title,
		URL:           item.URL,
		Description:   item.Description,
		DatePublished: item.DatePublished,
		Provider:      item.Provider,
		Content:       extracted.CleanedText,
		OriginCountry: item.OriginCountry,
		SourceAPI:     item.SourceAPI,
		SchemaVersion: entity.SchemaVersion,
		DateScraped:   now,
		PostProcessed: false,
		Language:      language,
		Keywords:      keywords,
		Authors:       extracted.Authors,
		ImageURL:      imageURL,
	}
}

func (b *Builder) recordFailure(host string) {
	if b.telemetry != nil {
		b.telemetry.RecordBuild(host, false)
	}
}

func (b *Builder) recordSuccess(host string) {
	if b.telemetry != nil {
		b.telemetry.RecordBuild(host, true)
	}
}

// providerHost extracts the hostname a build failure/success is attributed
// to in telemetry — the URL's host, not the provider display name, so
// per-domain scraping health is visible independent of what a source calls
// itself.
func providerHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url has no host")
	}
	return u.Hostname(), nil
}
