// Package moderation gates outgoing chat text against a banned-term list.
// Matching is diacritic- and case-insensitive with word-boundary semantics,
// so "đm" is caught inside "dm bạn" but "class" never trips on "cl".
package moderation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of a moderation check. It is derived per call and
// never persisted.
type Result struct {
	Hit         bool
	MatchedTerm string
}

// defaultTerms is the built-in banned-term list. Terms are stored in their
// display form; normalization happens at filter construction.
var defaultTerms = []string{
	"đm",
	"đmm",
	"đcm",
	"đệt",
	"địt",
	"đụ",
	"đĩ",
	"lồn",
	"cặc",
	"buồi",
	"vcl",
	"vkl",
	"clgt",
	"óc chó",
	"con chó",
	"mẹ mày",
	"bố mày",
}

// bannedTerm pairs a term's display form with its precompiled boundary regex
type bannedTerm struct {
	display string
	pattern *regexp.Regexp
}

// Filter checks outgoing text against the banned-term list.
// It is immutable after construction and safe for concurrent use.
type Filter struct {
	terms      []bannedTerm
	normalizer transform.Transformer
}

// NewFilter creates a filter over the built-in list plus any extra terms
func NewFilter(extraTerms ...string) *Filter {
	f := &Filter{}

	all := make([]string, 0, len(defaultTerms)+len(extraTerms))
	all = append(all, defaultTerms...)
	all = append(all, extraTerms...)

	seen := make(map[string]bool, len(all))
	for _, term := range all {
		normalized := f.normalize(term)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		f.terms = append(f.terms, bannedTerm{
			display: term,
			pattern: boundaryPattern(normalized),
		})
	}

	return f
}

// Check reports whether text contains a banned term as a whole word.
// Empty or whitespace-only input never hits.
func (f *Filter) Check(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	normalized := f.normalize(text)
	for _, term := range f.terms {
		if term.pattern.MatchString(normalized) {
			return Result{Hit: true, MatchedTerm: term.display}
		}
	}
	return Result{}
}

// normalize decomposes the text, strips combining diacritics, folds case,
// and maps Vietnamese letter variants to base Latin forms
func (f *Filter) normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		// Fall back to the raw text; matching degrades but never fails hard
		stripped = text
	}

	stripped = strings.ToLower(stripped)

	// đ/Đ are standalone letters, not combining marks, so NFD leaves them alone
	stripped = strings.NewReplacer("đ", "d", "Đ", "d").Replace(stripped)

	return strings.TrimSpace(stripped)
}

// boundaryPattern compiles a whole-word regex for a normalized term:
// the term must be delimited by start/end of input or non-alphanumerics
func boundaryPattern(normalizedTerm string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(normalizedTerm) + `([^a-z0-9]|$)`)
}
