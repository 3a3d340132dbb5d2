package store

import (
	"strings"
	"unicode"
)

// TextAnalyzerName is the registered name of the natural-text analyzer used
// by every searchable field: unicode word tokenization, lowercasing, and
// English stop-word removal.
const TextAnalyzerName = "pkms_text"

// maxQueryBytes bounds the sanitized query to keep index lookups cheap.
const maxQueryBytes = 512

// SanitizeQuery strips characters that carry syntax in the underlying query
// engines and collapses whitespace. The result is safe to feed to match and
// prefix queries as plain text.
func SanitizeQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range q {
		switch {
		case unicode.IsControl(r):
			b.WriteByte(' ')
		case strings.ContainsRune(`"'*()[]{}^~:\/+-|&!`, r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	if len(s) > maxQueryBytes {
		s = s[:maxQueryBytes]
		if i := strings.LastIndexByte(s, ' '); i > 0 {
			s = s[:i]
		}
	}
	return s
}

// Tokenize splits text into lowercase word tokens on any non-letter,
// non-digit boundary. Used for token-set similarity, which needs the same
// word segmentation the index analyzer applies.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// JoinTags canonicalizes a tag set into the space-joined form stored on the
// document projection and indexed as the tags field.
func JoinTags(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(strings.ToLower(n)), "-")
		if n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, " ")
}

func splitTags(text string) []string {
	return strings.Fields(text)
}

// Preview derives the stored result snippet from full body text: whitespace
// collapsed, truncated to max runes on a word boundary where possible.
func Preview(body string, max int) string {
	s := strings.Join(strings.Fields(body), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	s = string(runes[:max])
	if i := strings.LastIndexByte(s, ' '); i > max/2 {
		s = s[:i]
	}
	return s + "…"
}
