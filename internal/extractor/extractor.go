// Package extractor implements the ArticleExtractor oracle: given raw HTML,
// produce an entity.ExtractedContent. The primary extractor is Mozilla's
// Readability algorithm; when it yields no text a goquery-based stripper
// fallback runs instead.
package extractor

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/the-globe-v2/news-scraper/internal/domain/entity"
)

// Extractor is the ArticleExtractor oracle.
type Extractor struct {
	logger *slog.Logger
}

// New constructs an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// Extract produces ExtractedContent from raw HTML fetched from pageURL. It
// never returns an error for a malformed-but-parseable document: an empty
// CleanedText from the primary extractor triggers the fallback stripper,
// and a still-empty result is returned as-is (the caller's validator
// rejects it on length).
func (e *Extractor) Extract(rawHTML string, pageURL string) (entity.ExtractedContent, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return entity.ExtractedContent{}, err
	}

	article, rErr := readability.FromReader(strings.NewReader(rawHTML), parsed)
	content := entity.ExtractedContent{}

	if rErr == nil {
		content.CleanedText = strings.TrimSpace(article.TextContent)
		if content.CleanedText == "" {
			content.CleanedText = strings.TrimSpace(article.Content)
		}
		content.TopImage = article.Image
	} else {
		e.logger.Warn("readability extraction failed, will attempt stripper fallback",
			slog.String("url", pageURL), slog.Any("error", rErr))
	}

	if content.CleanedText == "" {
		stripped, stripErr := stripperFallback(rawHTML)
		if stripErr != nil {
			e.logger.Warn("stripper fallback failed", slog.String("url", pageURL), slog.Any("error", stripErr))
		} else {
			content.CleanedText = stripped
		}
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if docErr == nil {
		content.Authors = extractAuthors(doc)
		if content.TopImage == "" {
			content.TopImage = metaContent(doc, "og:image")
		}
		if content.MetaKeywords == "" {
			content.MetaKeywords = metaContent(doc, "keywords")
		}
		lang := metaLanguage(doc)
		content.MetaLang = normalizeLanguage(lang)
		if content.MetaLang == "" && content.CleanedText != "" {
			content.MetaLang = DetectLanguage(content.CleanedText)
		}
	}

	return content, nil
}

// stripperFallback parses HTML, removes comments/script/style subtrees,
// extracts visible text, and collapses whitespace runs — the spec §4.3
// fallback when the primary extractor yields empty cleaned_text.
func stripperFallback(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	doc.Find("script,style").Remove()
	removeComments(doc.Selection)

	text := doc.Text()
	text = whitespaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

// removeComments walks the underlying *html.Node tree removing comment
// nodes — goquery does not expose comment nodes through its selector API,
// so this operates directly on .Nodes, as goquery's own documentation
// recommends for operations outside CSS selection.
func removeComments(sel *goquery.Selection) {
	for _, n := range sel.Nodes {
		var walk func(node *html.Node)
		walk = func(node *html.Node) {
			child := node.FirstChild
			for child != nil {
				next := child.NextSibling
				if child.Type == html.CommentNode {
					node.RemoveChild(child)
				} else {
					walk(child)
				}
				child = next
			}
		}
		walk(n)
	}
}

func extractAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`meta[name="author"], meta[property="article:author"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && v != "" {
			authors = append(authors, v)
		}
	})
	return authors
}

func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[name="` + name + `"], meta[property="` + name + `"]`).First()
	v, _ := sel.Attr("content")
	return v
}

func metaLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		return lang
	}
	return metaContent(doc, "language")
}

var langCodeRe = regexp.MustCompile(`^[a-zA-Z]{2}`)

// normalizeLanguage reduces an HTML lang attribute (which may carry a
// region subtag, e.g. "en-US") to its ISO 639-1 primary subtag, validating
// the shape. Invalid codes become "" per spec §4.3.
func normalizeLanguage(lang string) string {
	m := langCodeRe.FindString(lang)
	if m == "" {
		return ""
	}
	code := strings.ToLower(m)
	if !entity.IsValidISO639_1(code) || !IsAssignedISO639_1(code) {
		return ""
	}
	return code
}
