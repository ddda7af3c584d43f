package reconcile

import (
	"regexp"
	"strings"
)

// trigramThreshold is the similarity at or above which two normalized names
// are considered the same real-world entity.
const trigramThreshold = 0.40

// minNameLength excludes very short normalized names from matching entirely;
// two and three character names collide far too often to be signal.
const minNameLength = 3

var (
	legalSuffixRe = regexp.MustCompile(`(?i)[\s,]+(inc\.|corp\.|ltd\.|co\.|llc\.?|company\.?)$`)
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// NormalizeName canonicalizes an organization name for matching: lowercase,
// strip one trailing legal-entity suffix, strip punctuation, collapse
// whitespace.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = legalSuffixRe.ReplaceAllString(n, "")
	n = punctuationRe.ReplaceAllString(n, "")
	n = whitespaceRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NamesMatch reports whether two organization names likely refer to the same
// entity: normalized equality, one a prefix or suffix of the other, or
// trigram similarity at or above the threshold. Names shorter than three
// characters after normalization never match.
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)

	if len(na) < minNameLength || len(nb) < minNameLength {
		return false
	}

	if na == nb {
		return true
	}
	if strings.HasPrefix(na, nb) || strings.HasPrefix(nb, na) {
		return true
	}
	if strings.HasSuffix(na, nb) || strings.HasSuffix(nb, na) {
		return true
	}

	return TrigramSimilarity(na, nb) >= trigramThreshold
}

// TrigramSimilarity computes pg_trgm-style similarity between two strings:
// each word is padded with two leading and one trailing space before trigram
// extraction, and the result is shared trigrams over total distinct trigrams.
func TrigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}

	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		padded := "  " + word + " "
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			set[string(runes[i:i+3])] = struct{}{}
		}
	}
	return set
}
