package router

import (
	"strings"
	"unicode"
)

// SplitSentences cuts text after '.', '!' or '?' when followed by whitespace or the end
// of the text. Pieces are trimmed and empty pieces dropped. Abbreviations are not
// special-cased.
func SplitSentences(text string) []string {
	var sentences []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			add(string(runes[start : i+1]))
			start = i + 1
		}
	}
	add(string(runes[start:]))
	return sentences
}
