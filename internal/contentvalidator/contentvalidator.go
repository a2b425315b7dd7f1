// Package contentvalidator enforces content-safety and size policy on
// extracted article body text: validate reports policy violations, sanitize
// strips what it can before validation runs.
package contentvalidator

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BlockedPattern is one entry in the blocked-pattern set. The set is a
// constructor parameter rather than a package constant because spec §9
// flags the pattern list as heuristic and implementer-tunable — in
// particular the quoted-substring patterns risk stripping legitimate
// article content.
type BlockedPattern struct {
	Regex       *regexp.Regexp
	Description string
}

// DefaultBlockedPatterns returns the five patterns named in the
// specification, compiled with case-insensitive, dot-matches-newline flags.
func DefaultBlockedPatterns() []BlockedPattern {
	return []BlockedPattern{
		{regexp.MustCompile(`(?is)<script.*?>.*?</script>`), "script tag"},
		{regexp.MustCompile(`(?is)<iframe.*?>.*?</iframe>`), "iframe tag"},
		{regexp.MustCompile(`(?is)(?:^|[^\\])'.*?(?:^|[^\\])'`), "unescaped single-quoted substring"},
		{regexp.MustCompile(`(?is)(?:^|[^\\])".*?(?:^|[^\\])"`), "unescaped double-quoted substring"},
		{regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`), "document-store operator prefix"},
	}
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)
var crlfRe = regexp.MustCompile(`\r\n|\r`)
var multiNewlineRe = regexp.MustCompile(`\n{2,}`)

// zero-width / invisible control characters stripped in sanitize step 6:
// U+200B-U+200F (zero-width space/joiners, directional marks), U+202A-U+202E
// (directional embedding/override), U+2060-U+2064 (word joiner and invisible
// operators), U+FEFF (BOM / zero-width no-break space), and the C0/C1
// control ranges other than tab and newline (newlines are already
// normalized by step 3).
var invisibleCharsRe = regexp.MustCompile(
	"[\\x{200B}-\\x{200F}\\x{202A}-\\x{202E}\\x{2060}-\\x{2064}\\x{FEFF}\\x00-\\x08\\x0b\\x0c\\x0e-\\x1f\\x7f\\x{80}-\\x{9F}]",
)

// Validator enforces MIN_CONTENT_LENGTH/MAX_CONTENT_LENGTH and the blocked
// pattern set.
type Validator struct {
	minLength int
	maxLength int
	patterns  []BlockedPattern
}

// New constructs a Validator. Pass nil for patterns to use DefaultBlockedPatterns.
func New(minLength, maxLength int, patterns []BlockedPattern) *Validator {
	if patterns == nil {
		patterns = DefaultBlockedPatterns()
	}
	return &Validator{minLength: minLength, maxLength: maxLength, patterns: patterns}
}

// Validate reports whether s satisfies the length and pattern policy. The
// issues slice, when non-empty, lists the length violation first (if any)
// followed by one entry per matched blocked pattern, in pattern order.
func (v *Validator) Validate(s string) (ok bool, issues []string) {
	length := len([]rune(s))
	switch {
	case v.maxLength > 0 && length > v.maxLength:
		issues = append(issues, fmt.Sprintf("Content exceeds maximum length of %d characters", v.maxLength))
	case length < v.minLength:
		issues = append(issues, fmt.Sprintf("Content does not meet minimum length of %d characters", v.minLength))
	}

	for _, p := range v.patterns {
		if p.Regex.MatchString(s) {
			issues = append(issues, fmt.Sprintf("matched blocked pattern: %s", p.Description))
		}
	}

	return len(issues) == 0, issues
}

// Sanitize applies the six-step cleanup described in the specification, in
// order. Sanitize is deliberately permissive: its output may end up shorter
// than minLength — validation is a separate, later step.
func (v *Validator) Sanitize(s string) string {
	// 1. delete every blocked-pattern match.
	for _, p := range v.patterns {
		s = p.Regex.ReplaceAllString(s, "")
	}

	// 2. strip any remaining HTML tags.
	s = htmlTagRe.ReplaceAllString(s, "")

	// 3. normalize newlines and collapse blank-line runs.
	s = crlfRe.ReplaceAllString(s, "\n")
	s = multiNewlineRe.ReplaceAllString(s, "\n")

	// 4. HTML-escape, including quotes.
	s = html.EscapeString(s)

	// 5. Unicode-normalize to NFKC.
	s = norm.NFKC.String(s)

	// 6. strip zero-width / invisible control characters.
	s = invisibleCharsRe.ReplaceAllString(s, "")

	return s
}

// StripHTMLTags is exposed separately for callers (e.g. the extractor's
// fallback stripper) that only need step 2 without the rest of the pipeline.
func StripHTMLTags(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}
