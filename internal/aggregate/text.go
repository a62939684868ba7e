package aggregate

import "strings"

// stopwords is a small, fixed English stopword list used for title
// tokenization before Jaccard similarity and BM25 scoring. Not
// exhaustive — biomedical titles are short enough that a compact list
// suffices and keeps tokenization deterministic.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"and": {}, "or": {}, "to": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"as": {}, "at": {}, "from": {}, "into": {}, "via": {}, "vs": {}, "versus": {},
}

// tokenize lowercases s, splits on non-letter/non-digit runs, and drops
// stopwords, used for both title-similarity (dedup) and BM25 (ranking).
func tokenize(s string) []string {
	lower := strings.ToLower(s)
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		w := cur.String()
		cur.Reset()
		if _, stop := stopwords[w]; stop {
			return
		}
		out = append(out, w)
	}
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// jaccard computes token-set Jaccard similarity between two titles.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Tokenize exposes the package's title tokenizer for callers outside
// internal/aggregate that need the same tokenization for a one-off
// similarity computation (internal/enrich's similarity-score step).
func Tokenize(s string) []string { return tokenize(s) }

// Jaccard exposes the package's Jaccard similarity for the same reason.
func Jaccard(a, b []string) float64 { return jaccard(a, b) }

func toSet(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}
