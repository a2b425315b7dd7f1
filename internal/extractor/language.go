package extractor

import (
	"sync"

	"github.com/abadojack/whatlanggo"
)

var (
	knownCodesOnce sync.Once
	knownCodes     map[string]bool
)

// knownISO639_1Codes builds the set of ISO 639-1 codes whatlanggo's language
// registry knows about, lazily and once, from its Langs table.
func knownISO639_1Codes() map[string]bool {
	knownCodesOnce.Do(func() {
		knownCodes = make(map[string]bool, len(whatlanggo.Langs))
		for _, info := range whatlanggo.Langs {
			if info.Iso6391 != "" {
				knownCodes[info.Iso6391] = true
			}
		}
	})
	return knownCodes
}

// IsAssignedISO639_1 reports whether code is both shaped like an ISO 639-1
// code and recognized by whatlanggo's language registry. This is a stricter
// check than entity.IsValidISO639_1, which only validates the ^[a-z]{2}$
// shape.
func IsAssignedISO639_1(code string) bool {
	return knownISO639_1Codes()[code]
}

// DetectLanguage runs whatlanggo's language detection over text and returns
// its ISO 639-1 code, or "" if detection is unreliable (short or mixed
// text). Used when an extracted document carries no lang metadata at all.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if info.Confidence < 0.5 {
		return ""
	}
	lang, ok := whatlanggo.Langs[info.Lang]
	if !ok {
		return ""
	}
	return lang.Iso6391
}
