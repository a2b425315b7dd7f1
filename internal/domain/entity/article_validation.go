package entity

import (
	"fmt"
	"regexp"
)

var (
	urlSchemeRe   = regexp.MustCompile(`^https?://`)
	countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)
	languageRe    = regexp.MustCompile(`^[a-z]{2}$`)
)

// ValidateArticle checks the structural invariants every emitted Article must
// satisfy, independent of content-length policy (which is the
// ContentValidator's job). It does not check content length because that
// threshold is configuration, not a domain invariant.
func ValidateArticle(a *Article) error {
	if a.Title == "" {
		return fmt.Errorf("%w: title", ErrMissingRequiredField)
	}
	if !urlSchemeRe.MatchString(a.URL) {
		return &ValidationError{Field: "url", Message: "must match ^https?://"}
	}
	if a.Description == "" {
		return fmt.Errorf("%w: description", ErrMissingRequiredField)
	}
	if a.DatePublished.IsZero() {
		return fmt.Errorf("%w: date_published", ErrMissingRequiredField)
	}
	if a.Provider == "" {
		return fmt.Errorf("%w: provider", ErrMissingRequiredField)
	}
	if !countryCodeRe.MatchString(a.OriginCountry) {
		return &ValidationError{Field: "origin_country", Message: "must match ^[A-Z]{2}$"}
	}
	if a.SourceAPI == "" {
		return fmt.Errorf("%w: source_api", ErrMissingRequiredField)
	}
	if a.Language != "" && !languageRe.MatchString(a.Language) {
		return &ValidationError{Field: "language", Message: "must match ^[a-z]{2}$"}
	}
	if a.ImageURL != "" && !urlSchemeRe.MatchString(a.ImageURL) {
		return &ValidationError{Field: "image_url", Message: "must match ^https?://"}
	}
	return nil
}

// IsValidISO639_1 reports whether lang is a well-formed two-letter lowercase
// ISO 639-1 code shape. It does not check membership in the registry of
// assigned codes — that cross-check lives in the extractor package, which
// also consults a language-detection library.
func IsValidISO639_1(lang string) bool {
	return languageRe.MatchString(lang)
}

// IsValidCountryCode reports whether the given string has the ^[A-Z]{2}$ shape.
func IsValidCountryCode(country string) bool {
	return countryCodeRe.MatchString(country)
}
