// Package textanalysis holds the text heuristics shared by avoidance-context
// building and local question summarisation: tokenizing, stop-word
// filtering, frequency ranking and content fingerprinting.
package textanalysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxKeywords caps the number of concept keywords kept for a question.
	MaxKeywords = 5

	// MaxSummaryLength is the longest summary stored on a question record.
	MaxSummaryLength = 30

	summaryWords      = 5
	minTokenLength    = 3
	keywordSeparator  = ","
	truncationMarker  = "..."
	contentHashMarker = "-"
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "this": {}, "for": {}, "with": {}, "what": {}, "which": {},
	"are": {}, "was": {}, "were": {}, "from": {}, "into": {}, "its": {}, "has": {}, "have": {},
	"does": {}, "how": {}, "why": {}, "when": {}, "who": {}, "following": {}, "most": {}, "not": {},
	"you": {}, "your": {}, "can": {}, "one": {}, "all": {}, "any": {}, "than": {}, "then": {},
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '?', '!', ';', ':', '(', ')', '{', '}', '[', ']', '<', '>', '"', '\'':
		return true
	}
	return false
}

// Tokenize lowercases text and splits it into words of at least three
// characters. Punctuation acts as a separator.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, isSeparator)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLength {
			continue
		}
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// IsStopWord reports whether token carries no topical meaning.
func IsStopWord(token string) bool {
	_, ok := stopWords[strings.ToLower(token)]
	return ok
}

// TopKeywords returns up to k keywords from text ranked by frequency. Ties
// keep the order in which the words first appear.
func TopKeywords(text string, k int) []string {
	if k <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range Tokenize(text) {
		if IsStopWord(tok) {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > k {
		order = order[:k]
	}
	return order
}

// AbstractHash renders the top keywords of text as a comma-joined string.
func AbstractHash(text string) string {
	return strings.Join(TopKeywords(text, MaxKeywords), keywordSeparator)
}

// SplitKeywords parses a comma-joined abstract hash back into trimmed,
// non-empty keywords.
func SplitKeywords(abstractHash string) []string {
	parts := strings.Split(abstractHash, keywordSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LooksLikeContentHash reports whether an abstract hash value is really an
// opaque identifier rather than a keyword list.
func LooksLikeContentHash(abstractHash string) bool {
	return strings.Contains(abstractHash, contentHashMarker)
}

// Summarize builds a short gist from the first words of text.
func Summarize(text string) string {
	words := strings.Fields(text)
	if len(words) > summaryWords {
		words = words[:summaryWords]
	}
	return Truncate(strings.Join(words, " "), MaxSummaryLength)
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + truncationMarker
}

// Fingerprint is the content hash identifying a question: the hex SHA-256
// of its text followed by the JSON encoding of its options.
func Fingerprint(text string, options []string) string {
	if options == nil {
		options = []string{}
	}
	encoded, _ := json.Marshal(options)
	sum := sha256.Sum256(append([]byte(text), encoded...))
	return hex.EncodeToString(sum[:])
}
