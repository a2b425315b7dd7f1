package newssource

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
	"github.com/the-globe-v2/news-scraper/internal/resilience/circuitbreaker"
	"github.com/the-globe-v2/news-scraper/internal/resilience/retry"

	"golang.org/x/time/rate"
)

const bingSourceName = "bing"

// BingConfig configures a BingSource instance.
type BingConfig struct {
	// Endpoint is the Bing News Search API base, e.g.
	// "https://api.bing.microsoft.com".
	Endpoint string

	// SubscriptionKey is sent as Ocp-Apim-Subscription-Key.
	SubscriptionKey string

	// Markets is the list of "<lang>-<COUNTRY>" tags this source iterates.
	Markets []string
}

// bingResponse mirrors the subset of the Bing News Search API response this
// source consumes.
type bingResponse struct {
	Value []bingArticle `json:"value"`
}

type bingArticle struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Description   string `json:"description"`
	DatePublished string `json:"datePublished"`
	Provider      []struct {
		Name string `json:"name"`
	} `json:"provider"`
	Image struct {
		Thumbnail struct {
			ContentURL string `json:"contentUrl"`
		} `json:"thumbnail"`
	} `json:"image"`
}

// BingSource is the spec's reference NewsSource implementation.
type BingSource struct {
	cfg            BingConfig
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	logger         *slog.Logger
	retryConfig    retry.Config
}

// NewBingSource builds a BingSource. The post-success rate limiter is
// configured at one request per second (spec: "sleep 1 second before
// returning"), expressed as golang.org/x/time/rate instead of a bare sleep
// so tests can assert against the same limiter.
func NewBingSource(cfg BingConfig, logger *slog.Logger) *BingSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BingSource{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		circuitBreaker: circuitbreaker.New(circuitbreaker.NewsSourceConfig(bingSourceName)),
		limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		logger:         logger,
		retryConfig:    retry.NewsSourceConfig(),
	}
}

// Name implements Source.
func (s *BingSource) Name() string { return bingSourceName }

// AvailableMarkets implements Source.
func (s *BingSource) AvailableMarkets() []string {
	return s.cfg.Markets
}

// Trending implements Source. Retries are scoped to RateLimitError only
// (spec: "other errors are not retried"), via retry.WithBackoffIf with a
// predicate that checks specifically for that type.
func (s *BingSource) Trending(ctx context.Context, market string) ([]entity.DiscoveryItem, error) {
	lang, country, err := splitMarket(market)
	if err != nil {
		return nil, err
	}

	var items []entity.DiscoveryItem
	err = retry.WithBackoffIf(ctx, s.retryConfig, func() error {
		result, fetchErr := s.fetchOnce(ctx, market, lang, country)
		if fetchErr != nil {
			return fetchErr
		}
		items = result
		return nil
	}, isRateLimitError)

	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *BingSource) fetchOnce(ctx context.Context, market, lang, country string) ([]entity.DiscoveryItem, error) {
	result, err := s.circuitBreaker.Execute(func() (interface{}, error) {
		return s.doRequest(ctx, market, lang, country)
	})
	if err != nil {
		return nil, err
	}

	// Client-side rate shaping: wait out the 1-request-per-second budget
	// before returning, so the next trending() call is naturally paced.
	_ = s.limiter.Wait(ctx)

	return result.([]entity.DiscoveryItem), nil
}

func (s *BingSource) doRequest(ctx context.Context, market, lang, country string) ([]entity.DiscoveryItem, error) {
	reqURL := fmt.Sprintf("%s/v7.0/news?mkt=%s&sortBy=Relevance&safeSearch=Off", s.cfg.Endpoint, market)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &NewsSourceError{Source: bingSourceName, StatusCode: 0, Message: err.Error()}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.SubscriptionKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NewsSourceError{Source: bingSourceName, StatusCode: 0, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{NewsSourceError{Source: bingSourceName, StatusCode: resp.StatusCode, Message: "rate limited"}}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &NewsSourceError{Source: bingSourceName, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NewsSourceError{Source: bingSourceName, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	var parsed bingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &NewsSourceError{Source: bingSourceName, StatusCode: resp.StatusCode, Message: "decode: " + err.Error()}
	}

	items := make([]entity.DiscoveryItem, 0, len(parsed.Value))
	for _, a := range parsed.Value {
		item, ok := toDiscoveryItem(a, lang, country, bingSourceName)
		if !ok {
			s.logger.Debug("skipping discovery item missing required fields", slog.String("market", market))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// toDiscoveryItem maps a single Bing API result into a DiscoveryItem,
// skipping anything missing a required field rather than erroring the whole
// batch.
func toDiscoveryItem(a bingArticle, lang, country, sourceAPI string) (entity.DiscoveryItem, bool) {
	if a.Name == "" || a.URL == "" || a.Description == "" {
		return entity.DiscoveryItem{}, false
	}

	published, err := time.Parse(time.RFC3339, a.DatePublished)
	if err != nil {
		return entity.DiscoveryItem{}, false
	}

	provider := ""
	if len(a.Provider) > 0 {
		provider = a.Provider[0].Name
	}
	if provider == "" {
		return entity.DiscoveryItem{}, false
	}

	item := entity.DiscoveryItem{
		Title:         a.Name,
		URL:           a.URL,
		Description:   a.Description,
		DatePublished: published,
		Provider:      provider,
		OriginCountry: country,
		Language:      lang,
		SourceAPI:     sourceAPI,
	}
	if a.Image.Thumbnail.ContentURL != "" {
		item.ImageURL = a.Image.Thumbnail.ContentURL
	}
	return item, true
}

func splitMarket(market string) (lang, country string, err error) {
	parts := strings.SplitN(market, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid market tag %q: expected <lang>-<COUNTRY>", market)
	}
	return strings.ToLower(parts[0]), strings.ToUpper(parts[1]), nil
}

func isRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
