// Package analyzer turns chunk and query text into lexical index terms.
package analyzer

import (
	"strings"
	"unicode"
)

// Options configure an Analyzer.
type Options struct {
	Stemming  bool
	MinLength int // shortest alphabetic term kept; default 2
}

// Analyzer lowercases, splits, filters stopwords and optionally stems.
// It is stateless and safe for concurrent use.
type Analyzer struct {
	stemming bool
	minLen   int
}

func New(opts Options) *Analyzer {
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	return &Analyzer{stemming: opts.Stemming, minLen: opts.MinLength}
}

// Terms returns the index terms of text in order of appearance.
// Numbers are kept whatever their length.
func (a *Analyzer) Terms(text string) []string {
	words := splitWords(text)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if isNumber(w) {
			terms = append(terms, w)
			continue
		}
		if len([]rune(w)) < a.minLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if a.stemming && isASCII(w) {
			w = Stem(w)
		}
		terms = append(terms, w)
	}
	return terms
}

// splitWords lowercases text and cuts it at anything that is not a letter
// or digit. A trailing possessive ('s) is dropped and inner apostrophes
// are removed, so "don't" becomes "dont".
func splitWords(text string) []string {
	var (
		words   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		w := current.String()
		current.Reset()
		w = strings.TrimSuffix(w, "'s")
		w = strings.ReplaceAll(w, "'", "")
		if w != "" {
			words = append(words, w)
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(unicode.ToLower(r))
		case isApostrophe(r) && current.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			current.WriteByte('\'')
		default:
			flush()
		}
	}
	flush()
	return words
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return w != ""
}

func isASCII(w string) bool {
	for i := 0; i < len(w); i++ {
		if w[i] >= 0x80 {
			return false
		}
	}
	return true
}

var stopwords = toSet(
	"a", "about", "after", "all", "also", "an", "and", "any", "are", "as",
	"at", "be", "been", "before", "being", "both", "but", "by", "can",
	"could", "did", "do", "does", "during", "each", "every", "few", "for",
	"from", "had", "has", "have", "he", "her", "his", "how", "if", "in",
	"into", "is", "it", "its", "may", "might", "more", "most", "must", "no",
	"not", "of", "on", "or", "other", "our", "shall", "she", "should", "so",
	"some", "such", "than", "that", "the", "their", "them", "then", "there",
	"these", "they", "this", "those", "to", "too", "very", "was", "we",
	"were", "what", "when", "where", "which", "while", "who", "whom", "why",
	"will", "with", "would", "you", "your",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
