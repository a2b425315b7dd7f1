package newssource

import (
	"log/slog"

	"github.com/the-globe-v2/news-scraper/internal/config"
)

// NewSources builds every configured Source from cfg.Sources. Spec §9
// ("Factory for polymorphic sources") replaces a runtime class registry with
// a typed switch indexed at startup — today that switch has one case
// (Bing); adding a second news API means adding one case here, not touching
// the pipeline or cmd/harvester.
func NewSources(sources []config.SourceConfig, logger *slog.Logger) []Source {
	if logger == nil {
		logger = slog.Default()
	}

	var out []Source
	for _, sc := range sources {
		switch sc.Name {
		case "bing":
			out = append(out, NewBingSource(BingConfig{
				Endpoint:        sc.Endpoint,
				SubscriptionKey: sc.SubscriptionKey,
				Markets:         sc.Markets,
			}, logger))
		default:
			logger.Warn("unrecognized news source, skipping", slog.String("source", sc.Name))
		}
	}
	return out
}
