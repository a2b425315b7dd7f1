package newssource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-globe-v2/news-scraper/internal/config"
)

func TestNewSources_BuildsConfiguredBingSource(t *testing.T) {
	sources := NewSources([]config.SourceConfig{
		{Name: "bing", Endpoint: "https://api.bing.microsoft.com", SubscriptionKey: "key", Markets: []string{"en-GB"}},
	}, nil)

	require.Len(t, sources, 1)
	assert.Equal(t, "bing", sources[0].Name())
	assert.Equal(t, []string{"en-GB"}, sources[0].AvailableMarkets())
}

func TestNewSources_SkipsUnrecognizedSource(t *testing.T) {
	sources := NewSources([]config.SourceConfig{
		{Name: "unknown-api", Endpoint: "https://example.com", SubscriptionKey: "key"},
	}, nil)

	assert.Empty(t, sources)
}

func TestNewSources_EmptyInputReturnsEmpty(t *testing.T) {
	sources := NewSources(nil, nil)
	assert.Empty(t, sources)
}
