// Package lang guesses whether a question is written in Malagasy, French or
// English from keyword counts.
package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/suPer8Hu/ask-widget/internal/logx"
)

// Language is the wire value sent to the backend in the "langue" field.
type Language string

const (
	Malagasy Language = "malgache"
	French   Language = "français"
	English  Language = "anglais"
)

// Default is returned when nothing in the text points to a language.
const Default = French

func (l Language) String() string { return string(l) }

// ParseLanguage maps a wire value (case-insensitive, with or without accents)
// to a Language.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "malgache", "malagasy":
		return Malagasy, true
	case "français", "francais", "french":
		return French, true
	case "anglais", "english":
		return English, true
	}
	return "", false
}

// Score holds the per-language counts computed for a text.
type Score struct {
	Malagasy   int
	French     int
	English    int
	Apostrophe int
}

var (
	malagasyWords = normalize(malagasyKeywords)
	frenchWords   = normalize(frenchKeywords)
	englishWords  = normalize(englishKeywords)
	patternWords  = normalize(malagasyPatternWords)

	alreadyCounted = func() map[string]bool {
		set := make(map[string]bool, len(patternAlreadyCounted))
		for _, k := range patternAlreadyCounted {
			set[k] = true
		}
		return set
	}()
)

// normalize lower-cases keywords and drops duplicates.
func normalize(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(k)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// countWord counts non-overlapping occurrences of word in text that are not
// glued to a letter, digit or underscore on either side. Both are expected
// lower-cased.
func countWord(text, word string) int {
	if word == "" {
		return 0
	}
	n := 0
	for i := 0; i+len(word) <= len(text); {
		j := strings.Index(text[i:], word)
		if j < 0 {
			break
		}
		at := i + j
		end := at + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:at])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (at == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			n++
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[at:])
		i = at + size
	}
	return n
}

func sum(words []string, text string) int {
	n := 0
	for _, w := range words {
		n += countWord(text, w)
	}
	return n
}

// countEmbeddedApostrophes counts apostrophes with a letter on both sides,
// as in "an'ny" or "amin'ny".
func countEmbeddedApostrophes(text string) int {
	runes := []rune(text)
	n := 0
	for i := 1; i < len(runes)-1; i++ {
		if runes[i] != '\'' && runes[i] != '’' {
			continue
		}
		if unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]) {
			n++
		}
	}
	return n
}

// Scores computes the keyword counts used by Classify. The Malagasy score
// includes embedded apostrophes and pattern matches not already counted.
func Scores(text string) Score {
	clean := strings.ToLower(strings.TrimSpace(text))
	// typographic apostrophes are matched as plain ones by the keyword pass
	clean = strings.ReplaceAll(clean, "’", "'")

	s := Score{
		Malagasy: sum(malagasyWords, clean),
		French:   sum(frenchWords, clean),
		English:  sum(englishWords, clean),
	}

	s.Apostrophe = countEmbeddedApostrophes(clean)
	s.Malagasy += s.Apostrophe

	for _, w := range patternWords {
		if !alreadyCounted[w] {
			s.Malagasy += countWord(clean, w)
		}
	}
	return s
}

// Classify returns the most likely language of text. Ties between French and
// English, and texts with no signal at all, resolve to French.
func Classify(text string) Language {
	s := Scores(text)
	logx.Debugf("[lang] %q malagasy=%d french=%d english=%d apostrophes=%d",
		text, s.Malagasy, s.French, s.English, s.Apostrophe)
	return s.Decide()
}

// Decide applies the decision rule to precomputed scores.
func (s Score) Decide() Language {
	switch {
	case s.Malagasy > s.French && s.Malagasy > s.English:
		return Malagasy
	case s.French > s.English:
		return French
	case s.English > 0:
		return English
	case s.Apostrophe > 0:
		return Malagasy
	default:
		return Default
	}
}
