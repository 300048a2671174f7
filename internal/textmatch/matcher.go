// Package textmatch decides whether a dictionary phrase occurs in a piece of
// transcribed speech and where.
//
// Matching runs in three tiers, and the first tier that finds anything wins:
//
//  1. Exact: a case-insensitive literal search that respects word
//     boundaries. Whitespace inside the phrase matches any whitespace run.
//
//  2. Normalized: both phrase and text are reduced to lemmas with a
//     [Normalizer] and the lemma sequence of the phrase is searched in the
//     lemma sequence of the text. Positions are mapped back onto the words of
//     the original text, so "сделать дело" highlights "сделали дело".
//
//  3. Semantic: for phrases of three or more words, the keyword sets of
//     phrase and text must overlap by at least the keyword-overlap ratio and
//     the normalized phrase must fuzzily occur in the normalized text
//     (see [PartialRatio]). The individual keywords are highlighted.
//
// Every span reported by a [Matcher] is a half-open range of rune offsets
// into the original text.
package textmatch

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/MrWong99/callmark/pkg/types"
)

const (
	defaultFuzzyThreshold   = 0.85
	defaultKeywordOverlap   = 0.70
	defaultSemanticMinWords = 3
)

// Span is a half-open range of rune offsets into an original text.
type Span struct {
	Start int
	End   int
}

// Outcome is the result of matching one phrase against one text.
type Outcome struct {
	Found bool
	Kind  types.MatchKind
	Spans []Span
}

var noMatch = Outcome{Kind: types.MatchNone}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithFuzzyThreshold sets the minimum [Scorer] result for a semantic match.
// Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithKeywordOverlap sets the minimum share of the phrase's keywords that
// must also be keywords of the text for a semantic match. Default: 0.70.
func WithKeywordOverlap(ratio float64) Option {
	return func(m *Matcher) {
		m.keywordOverlap = ratio
	}
}

// WithSemanticMinWords sets how many whitespace-separated words a phrase
// needs before the semantic tier is attempted. Default: 3.
func WithSemanticMinWords(n int) Option {
	return func(m *Matcher) {
		m.semanticMinWords = n
	}
}

// WithScorer replaces the fuzzy similarity used by the semantic tier.
// Default: [PartialRatio].
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// Matcher runs the three matching tiers. Compiled exact-match patterns are
// cached per phrase. All methods are safe for concurrent use.
type Matcher struct {
	norm             *Normalizer
	fuzzyThreshold   float64
	keywordOverlap   float64
	semanticMinWords int
	scorer           Scorer

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New returns a [Matcher] that normalizes with norm. A nil norm gets a
// [Normalizer] over the identity lemmatizer.
func New(norm *Normalizer, opts ...Option) *Matcher {
	if norm == nil {
		norm = NewNormalizer(nil)
	}
	m := &Matcher{
		norm:             norm,
		fuzzyThreshold:   defaultFuzzyThreshold,
		keywordOverlap:   defaultKeywordOverlap,
		semanticMinWords: defaultSemanticMinWords,
		scorer:           PartialRatio,
		patterns:         make(map[string]*regexp.Regexp),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Normalizer returns the normalizer the matcher uses.
func (m *Matcher) Normalizer() *Normalizer { return m.norm }

// ClearCache drops the compiled pattern cache.
func (m *Matcher) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.patterns)
}

// Phrase is a dictionary phrase with everything the tiers need precomputed.
// The zero value never matches.
type Phrase struct {
	// Raw is the phrase as written in the dictionary.
	Raw string

	pattern    *regexp.Regexp
	leftWord   bool
	rightWord  bool
	normalized string
	keywords   map[string]struct{}
	words      int
}

// Text is an utterance text with everything the tiers need precomputed.
type Text struct {
	// Raw is the original text.
	Raw string

	tokens     []token
	lemmas     []string
	normalized string
	keywords   map[string]struct{}

	// consistent is true when re-tokenizing the normalized text yields one
	// word per original token, so word indices can be mapped back.
	consistent bool
}

// PreparePhrase precomputes the matching state of phrase.
func (m *Matcher) PreparePhrase(phrase string) Phrase {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return Phrase{Raw: phrase}
	}
	return Phrase{
		Raw:        phrase,
		pattern:    m.pattern(trimmed),
		leftWord:   isWordRune(firstRune(trimmed)),
		rightWord:  isWordRune(lastRune(trimmed)),
		normalized: m.norm.NormalizePhrase(phrase),
		keywords:   m.norm.Keywords(phrase),
		words:      len(strings.Fields(phrase)),
	}
}

// PrepareText precomputes the matching state of text. One prepared text can
// be matched against any number of phrases.
func (m *Matcher) PrepareText(text string) *Text {
	tokens := tokenize(text)
	lemmas := m.norm.lemmas(tokens)
	normalized := strings.Join(lemmas, " ")
	return &Text{
		Raw:        text,
		tokens:     tokens,
		lemmas:     lemmas,
		normalized: normalized,
		keywords:   m.norm.Keywords(text),
		consistent: len(tokenize(normalized)) == len(tokens) &&
			len(strings.Fields(normalized)) == len(tokens),
	}
}

// Match reports whether phrase occurs in text and where.
func (m *Matcher) Match(phrase, text string) Outcome {
	return m.MatchPrepared(m.PreparePhrase(phrase), m.PrepareText(text))
}

// MatchPrepared is [Matcher.Match] over prepared inputs.
func (m *Matcher) MatchPrepared(p Phrase, t *Text) Outcome {
	if p.pattern == nil || t == nil || strings.TrimSpace(t.Raw) == "" {
		return noMatch
	}
	if spans := findExact(p.pattern, p.leftWord, p.rightWord, t.Raw); len(spans) > 0 {
		return Outcome{Found: true, Kind: types.MatchExact, Spans: spans}
	}
	if spans := matchNormalized(p, t); len(spans) > 0 {
		return Outcome{Found: true, Kind: types.MatchNormalized, Spans: spans}
	}
	if spans := m.matchSemantic(p, t); len(spans) > 0 {
		return Outcome{Found: true, Kind: types.MatchSemantic, Spans: spans}
	}
	return noMatch
}

// pattern returns the cached case-insensitive pattern for a trimmed phrase.
func (m *Matcher) pattern(trimmed string) *regexp.Regexp {
	m.mu.Lock()
	re, ok := m.patterns[trimmed]
	m.mu.Unlock()
	if ok {
		return re
	}

	fields := strings.Fields(trimmed)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	re = regexp.MustCompile(`(?i)` + strings.Join(fields, `\s+`))

	m.mu.Lock()
	m.patterns[trimmed] = re
	m.mu.Unlock()
	return re
}

// findExact returns every non-overlapping occurrence of re in text that does
// not extend a larger word. leftWord and rightWord tell whether the phrase
// starts and ends with a word rune; only those edges are boundary checked.
func findExact(re *regexp.Regexp, leftWord, rightWord bool, text string) []Span {
	var (
		spans    []Span
		pos      int // byte offset of the search window
		runePos  int // rune offset of pos
		consumed int // byte offset up to which runePos was counted
	)
	runeAt := func(b int) int {
		runePos += utf8.RuneCountInString(text[consumed:b])
		consumed = b
		return runePos
	}

	for pos < len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		if (leftWord && start > 0 && isWordRune(lastRune(text[:start]))) ||
			(rightWord && end < len(text) && isWordRune(firstRune(text[end:]))) {
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + size
			continue
		}
		s := runeAt(start)
		e := runeAt(end)
		spans = append(spans, Span{Start: s, End: e})
		pos = end
	}
	return spans
}

// matchNormalized finds p's normalized form as a substring of t's normalized
// form and maps each hit onto the original words enclosing it. A hit that
// starts or ends inside a word covers that whole word.
func matchNormalized(p Phrase, t *Text) []Span {
	if p.normalized == "" || t.normalized == "" || !t.consistent {
		return nil
	}

	var spans []Span
	norm := t.normalized
	for from := 0; from < len(norm); {
		i := strings.Index(norm[from:], p.normalized)
		if i < 0 {
			break
		}
		start, end := from+i, from+i+len(p.normalized)
		from = end

		first := len(strings.Fields(norm[:start]))
		if start > 0 && norm[start-1] != ' ' {
			first-- // hit starts inside a word
		}
		last := len(strings.Fields(norm[:end]))
		if first < 0 || first >= last || last > len(t.tokens) {
			continue
		}
		s := Span{Start: t.tokens[first].start, End: t.tokens[last-1].end}
		if n := len(spans); n > 0 && spans[n-1] == s {
			continue
		}
		spans = append(spans, s)
	}
	return spans
}

// matchSemantic applies the keyword-overlap and fuzzy-similarity tests and
// returns the spans of the shared keywords in the original text.
func (m *Matcher) matchSemantic(p Phrase, t *Text) []Span {
	if p.words < m.semanticMinWords || len(p.keywords) == 0 || len(t.keywords) == 0 {
		return nil
	}
	common := intersect(p.keywords, t.keywords)
	if len(common) == 0 {
		return nil
	}
	if float64(len(common))/float64(len(p.keywords)) < m.keywordOverlap {
		return nil
	}
	if m.scorer(p.normalized, t.normalized) < m.fuzzyThreshold {
		return nil
	}

	var spans []Span
	if t.consistent {
		for i, tok := range t.tokens {
			if _, ok := common[t.lemmas[i]]; ok && keywordCandidate(foldCase(tok.text)) {
				spans = append(spans, Span{Start: tok.start, End: tok.end})
			}
		}
		return spans
	}

	// Word indices can't be trusted; look for the keywords literally.
	for kw := range common {
		re := m.pattern(kw)
		spans = append(spans, findExact(re, true, true, t.Raw)...)
	}
	slices.SortFunc(spans, func(a, b Span) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(a.End, b.End))
	})
	return slices.Compact(spans)
}
