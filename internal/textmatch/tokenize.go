package textmatch

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// token is one word of a text. Start and End are rune offsets into the text
// the token was cut from.
type token struct {
	text       string
	start, end int
}

// isWordRune reports whether r belongs to a word: letters, numbers, combining
// marks and the underscore.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

// tokenize splits s into maximal runs of word runes.
func tokenize(s string) []token {
	var (
		tokens    []token
		inWord    bool
		byteStart int
		runeStart int
		runeIdx   int
	)
	for i, r := range s {
		if isWordRune(r) {
			if !inWord {
				inWord = true
				byteStart, runeStart = i, runeIdx
			}
		} else if inWord {
			inWord = false
			tokens = append(tokens, token{text: s[byteStart:i], start: runeStart, end: runeIdx})
		}
		runeIdx++
	}
	if inWord {
		tokens = append(tokens, token{text: s[byteStart:], start: runeStart, end: runeIdx})
	}
	return tokens
}

// foldCase lowercases s with Unicode rules. A Caser keeps state between calls,
// so each call gets its own.
func foldCase(s string) string {
	return cases.Lower(language.Und).String(s)
}

// firstRune and lastRune return utf8.RuneError for empty input.
func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
