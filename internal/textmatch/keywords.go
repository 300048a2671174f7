package textmatch

import "unicode/utf8"

// minKeywordRunes is the shortest word (in runes) that can be a keyword.
const minKeywordRunes = 3

// stopWords are Russian pronouns, prepositions, conjunctions and particles
// that carry no meaning on their own. They are matched against the
// case-folded surface form, before lemmatization.
var stopWords = map[string]struct{}{
	"я": {}, "мне": {}, "меня": {}, "ты": {}, "тебе": {}, "тебя": {}, "он": {}, "его": {}, "ей": {}, "она": {},
	"мы": {}, "нам": {}, "нас": {}, "вы": {}, "вам": {}, "вас": {}, "они": {}, "им": {}, "их": {},
	"в": {}, "на": {}, "за": {}, "под": {}, "над": {}, "от": {}, "до": {}, "из": {}, "к": {}, "по": {}, "со": {}, "у": {},
	"и": {}, "а": {}, "но": {}, "да": {}, "или": {}, "ли": {}, "же": {}, "бы": {}, "вот": {}, "всё": {}, "все": {},
	"не": {}, "ни": {}, "как": {}, "так": {}, "то": {}, "это": {}, "что": {}, "чтоб": {}, "чтобы": {}, "для": {},
	"о": {}, "об": {}, "про": {}, "с": {}, "из-за": {}, "перед": {}, "при": {}, "через": {}, "сквозь": {},
	"между": {}, "среди": {}, "вокруг": {},
}

// IsStopWord reports whether the case-folded word is in the stop-word set.
func IsStopWord(word string) bool {
	_, ok := stopWords[foldCase(word)]
	return ok
}

// keywordCandidate reports whether a case-folded word survives the keyword
// filter.
func keywordCandidate(folded string) bool {
	if utf8.RuneCountInString(folded) < minKeywordRunes {
		return false
	}
	_, stop := stopWords[folded]
	return !stop
}

// intersect returns the keys present in both sets.
func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(a) > len(b) {
		a, b = b, a
	}
	out := make(map[string]struct{}, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}
