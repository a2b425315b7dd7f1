// Package entity defines the core domain types of the news-harvest pipeline:
// the discovery item produced by a NewsSource, the content extracted from raw
// HTML, and the persisted Article they are merged into.
package entity

import "time"

// SchemaVersion is a bare constant carried on every Article this pipeline
// emits. Its migration/validation semantics are not defined at this layer.
const SchemaVersion = "1"

// DiscoveryItem is produced by a NewsSource for a single market and is
// immutable for the lifetime of one country batch.
type DiscoveryItem struct {
	Title         string
	URL           string
	Description   string
	DatePublished time.Time
	Provider      string
	OriginCountry string // ISO 3166-1 alpha-2, e.g. "GB"
	Language      string // ISO 639-1, optional, e.g. "en"
	ImageURL      string // optional
	SourceAPI     string
}

// ExtractedContent is produced by an ArticleExtractor from raw HTML and lives
// only for the duration of a single build.
type ExtractedContent struct {
	CleanedText  string
	MetaLang     string
	MetaKeywords string
	Authors      []string
	TopImage     string
}

// Article is the persisted record. It merges a DiscoveryItem (authoritative
// for metadata) with ExtractedContent (authoritative for body, authors, and
// language/image when the DiscoveryItem lacks them).
type Article struct {
	Title         string
	URL           string
	Description   string
	DatePublished time.Time
	Provider      string
	Content       string
	OriginCountry string
	SourceAPI     string
	SchemaVersion string
	DateScraped   time.Time
	PostProcessed bool

	Language         string
	Keywords         []string
	Category         string
	Authors          []string
	RelatedCountries []string
	ImageURL         string
}
