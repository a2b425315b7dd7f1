package newssource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-globe-v2/news-scraper/internal/resilience/retry"
	"golang.org/x/time/rate"
)

func fastRetrySource(cfg BingConfig) *BingSource {
	src := NewBingSource(cfg, nil)
	src.retryConfig = retry.Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
	src.limiter = rate.NewLimiter(rate.Inf, 1)
	return src
}

const sampleBingBody = `{
  "value": [
    {
      "name": "Headline One",
      "url": "https://example.com/a",
      "description": "desc",
      "datePublished": "2026-07-01T10:00:00Z",
      "provider": [{"name": "Example News"}],
      "image": {"thumbnail": {"contentUrl": "https://example.com/img.png"}}
    },
    {
      "name": "",
      "url": "https://example.com/b",
      "description": "missing title",
      "datePublished": "2026-07-01T10:00:00Z",
      "provider": [{"name": "Example News"}]
    }
  ]
}`

func TestTrending_HappyPathSkipsInvalidItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sampleBingBody))
	}))
	defer srv.Close()

	src := fastRetrySource(BingConfig{Endpoint: srv.URL, SubscriptionKey: "test-key", Markets: []string{"en-GB"}})

	items, err := src.Trending(context.Background(), "en-GB")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Headline One", items[0].Title)
	assert.Equal(t, "GB", items[0].OriginCountry)
	assert.Equal(t, "en", items[0].Language)
	assert.Equal(t, "bing", items[0].SourceAPI)
}

func TestTrending_RateLimitRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := fastRetrySource(BingConfig{Endpoint: srv.URL, SubscriptionKey: "k", Markets: []string{"en-US"}})

	_, err := src.Trending(context.Background(), "en-US")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTrending_NonRateLimitErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := fastRetrySource(BingConfig{Endpoint: srv.URL, SubscriptionKey: "k", Markets: []string{"en-US"}})

	_, err := src.Trending(context.Background(), "en-US")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

const bingBodyMissingDescription = `{
  "value": [
    {
      "name": "Headline Without Description",
      "url": "https://example.com/c",
      "description": "",
      "datePublished": "2026-07-01T10:00:00Z",
      "provider": [{"name": "Example News"}]
    }
  ]
}`

func TestTrending_SkipsItemMissingDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(bingBodyMissingDescription))
	}))
	defer srv.Close()

	src := fastRetrySource(BingConfig{Endpoint: srv.URL, SubscriptionKey: "test-key", Markets: []string{"en-GB"}})

	items, err := src.Trending(context.Background(), "en-GB")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSplitMarket(t *testing.T) {
	lang, country, err := splitMarket("en-GB")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)
	assert.Equal(t, "GB", country)

	_, _, err = splitMarket("invalid")
	assert.Error(t, err)
}

func TestAvailableMarkets(t *testing.T) {
	src := NewBingSource(BingConfig{Markets: []string{"en-GB", "en-US"}}, nil)
	assert.Equal(t, []string{"en-GB", "en-US"}, src.AvailableMarkets())
}
