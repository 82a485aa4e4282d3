package analyzer

import (
	"sort"
	"strings"
)

// Stem reduces a lowercase ASCII word with the Porter (1980) algorithm.
// Words shorter than three letters are returned unchanged.
func Stem(word string) string {
	if len(word) < 3 {
		return word
	}
	w := step1a(word)
	w = step1b(w)
	w = step1c(w)
	w = replaceLongest(w, step2Rules, 0)
	w = replaceLongest(w, step3Rules, 0)
	w = step4(w)
	w = step5a(w)
	return step5b(w)
}

type suffixRule struct {
	suffix      string
	replacement string
}

var step2Rules = longestFirst([]suffixRule{
	{"ational", "ate"}, {"tional", "tion"}, {"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"entli", "ent"},
	{"eli", "e"}, {"ousli", "ous"}, {"ization", "ize"}, {"ation", "ate"},
	{"ator", "ate"}, {"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"},
	{"ousness", "ous"}, {"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
})

var step3Rules = longestFirst([]suffixRule{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ful", ""}, {"ness", ""},
})

var step4Rules = longestFirst([]suffixRule{
	{"al", ""}, {"ance", ""}, {"ence", ""}, {"er", ""}, {"ic", ""},
	{"able", ""}, {"ible", ""}, {"ant", ""}, {"ement", ""}, {"ment", ""},
	{"ent", ""}, {"ion", ""}, {"ou", ""}, {"ism", ""}, {"ate", ""},
	{"iti", ""}, {"ous", ""}, {"ive", ""}, {"ize", ""},
})

func longestFirst(rules []suffixRule) []suffixRule {
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].suffix) > len(rules[j].suffix)
	})
	return rules
}

// matchLongest returns the rule with the longest suffix ending w.
func matchLongest(w string, rules []suffixRule) (suffixRule, string, bool) {
	for _, r := range rules {
		if strings.HasSuffix(w, r.suffix) {
			return r, w[:len(w)-len(r.suffix)], true
		}
	}
	return suffixRule{}, "", false
}

// replaceLongest rewrites the longest matching suffix when the remaining
// stem has measure above minMeasure. Shorter suffixes are never tried.
func replaceLongest(w string, rules []suffixRule, minMeasure int) string {
	r, stem, ok := matchLongest(w, rules)
	if !ok || measure(stem) <= minMeasure {
		return w
	}
	return stem + r.replacement
}

func consonant(w string, i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		return i == 0 || !consonant(w, i-1)
	}
	return true
}

// measure counts the vowel-consonant sequences of w, the m in [C](VC)^m[V].
func measure(w string) int {
	m := 0
	inVowel := false
	for i := 0; i < len(w); i++ {
		if consonant(w, i) {
			if inVowel {
				m++
			}
			inVowel = false
		} else {
			inVowel = true
		}
	}
	return m
}

func containsVowel(w string) bool {
	for i := 0; i < len(w); i++ {
		if !consonant(w, i) {
			return true
		}
	}
	return false
}

func doubleConsonant(w string) bool {
	n := len(w)
	return n >= 2 && w[n-1] == w[n-2] && consonant(w, n-1)
}

// cvc reports a consonant-vowel-consonant ending whose last letter is not
// w, x or y.
func cvc(w string) bool {
	n := len(w)
	if n < 3 || !consonant(w, n-3) || consonant(w, n-2) || !consonant(w, n-1) {
		return false
	}
	return !strings.ContainsRune("wxy", rune(w[n-1]))
}

func step1a(w string) string {
	switch {
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "ies"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func step1b(w string) string {
	if strings.HasSuffix(w, "eed") {
		if measure(w[:len(w)-3]) > 0 {
			return w[:len(w)-1]
		}
		return w
	}

	var stem string
	switch {
	case strings.HasSuffix(w, "ed"):
		stem = w[:len(w)-2]
	case strings.HasSuffix(w, "ing"):
		stem = w[:len(w)-3]
	default:
		return w
	}
	if !containsVowel(stem) {
		return w
	}

	switch {
	case strings.HasSuffix(stem, "at"), strings.HasSuffix(stem, "bl"), strings.HasSuffix(stem, "iz"):
		return stem + "e"
	case doubleConsonant(stem) && !strings.ContainsRune("lsz", rune(stem[len(stem)-1])):
		return stem[:len(stem)-1]
	case measure(stem) == 1 && cvc(stem):
		return stem + "e"
	}
	return stem
}

func step1c(w string) string {
	if strings.HasSuffix(w, "y") && containsVowel(w[:len(w)-1]) {
		return w[:len(w)-1] + "i"
	}
	return w
}

func step4(w string) string {
	r, stem, ok := matchLongest(w, step4Rules)
	if !ok || measure(stem) <= 1 {
		return w
	}
	if r.suffix == "ion" && !strings.HasSuffix(stem, "s") && !strings.HasSuffix(stem, "t") {
		return w
	}
	return stem
}

func step5a(w string) string {
	if !strings.HasSuffix(w, "e") {
		return w
	}
	stem := w[:len(w)-1]
	if m := measure(stem); m > 1 || (m == 1 && !cvc(stem)) {
		return stem
	}
	return w
}

func step5b(w string) string {
	if measure(w) > 1 && doubleConsonant(w) && strings.HasSuffix(w, "l") {
		return w[:len(w)-1]
	}
	return w
}
