package textmatch

import (
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/MrWong99/callmark/pkg/morph"
)

// NormalizerOption is a functional option for configuring a [Normalizer].
type NormalizerOption func(*Normalizer)

// WithCacheLimit bounds each of the normalizer's caches. When a cache grows
// past n entries it is cleared entirely. n <= 0 means unbounded (the default).
func WithCacheLimit(n int) NormalizerOption {
	return func(nz *Normalizer) {
		nz.limit = n
	}
}

// Normalizer maps words and phrases to lemma form and extracts keyword sets,
// memoizing every result.
//
// A Normalizer never fails: when the lemmatizer returns an error, an empty
// lemma, or panics, the case-folded word is used instead.
//
// All methods are safe for concurrent use.
type Normalizer struct {
	lemmatizer morph.Lemmatizer
	limit      int

	mu       sync.Mutex
	words    map[string]string
	phrases  map[string]string
	keywords map[string]map[string]struct{}
}

// NewNormalizer returns a [Normalizer] backed by l. A nil l uses
// [morph.Identity].
func NewNormalizer(l morph.Lemmatizer, opts ...NormalizerOption) *Normalizer {
	if l == nil {
		l = morph.Identity
	}
	n := &Normalizer{
		lemmatizer: l,
		words:      make(map[string]string),
		phrases:    make(map[string]string),
		keywords:   make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// NormalizeWord returns the lemma of word. The cache is keyed by the
// case-folded form, so "Дело" and "дело" share an entry.
func (n *Normalizer) NormalizeWord(word string) string {
	folded := foldCase(word)
	if folded == "" {
		return ""
	}

	n.mu.Lock()
	lemma, ok := n.words[folded]
	n.mu.Unlock()
	if ok {
		return lemma
	}

	lemma = n.lemma(folded)

	n.mu.Lock()
	store(n.words, folded, lemma, n.limit)
	n.mu.Unlock()
	return lemma
}

// lemma asks the lemmatizer for the base form of folded and degrades to
// folded on any failure.
func (n *Normalizer) lemma(folded string) (lemma string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("textmatch: lemmatizer panicked", "word", folded, "panic", r)
			lemma = folded
		}
	}()

	l, err := n.lemmatizer.Lemma(folded)
	if err != nil {
		slog.Debug("textmatch: lemmatizer failed", "word", folded, "err", err)
		return folded
	}
	l = foldCase(strings.TrimSpace(l))
	if l == "" {
		return folded
	}
	return l
}

// NormalizePhrase tokenizes text into words, lemmatizes each one and joins
// the lemmas with single spaces. Punctuation is dropped.
func (n *Normalizer) NormalizePhrase(text string) string {
	n.mu.Lock()
	norm, ok := n.phrases[text]
	n.mu.Unlock()
	if ok {
		return norm
	}

	norm = strings.Join(n.lemmas(tokenize(text)), " ")

	n.mu.Lock()
	store(n.phrases, text, norm, n.limit)
	n.mu.Unlock()
	return norm
}

// lemmas normalizes every token in order.
func (n *Normalizer) lemmas(tokens []token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = n.NormalizeWord(t.text)
	}
	return out
}

// Keywords returns the lemmas of the meaningful words of text: words of at
// least three characters that are not stop words. The returned set belongs
// to the caller.
func (n *Normalizer) Keywords(text string) map[string]struct{} {
	n.mu.Lock()
	kw, ok := n.keywords[text]
	n.mu.Unlock()
	if ok {
		return maps.Clone(kw)
	}

	kw = make(map[string]struct{})
	for _, t := range tokenize(text) {
		if !keywordCandidate(foldCase(t.text)) {
			continue
		}
		kw[n.NormalizeWord(t.text)] = struct{}{}
	}

	n.mu.Lock()
	store(n.keywords, text, kw, n.limit)
	n.mu.Unlock()
	return maps.Clone(kw)
}

// ClearCache drops all memoized words, phrases and keyword sets.
func (n *Normalizer) ClearCache() {
	n.mu.Lock()
	defer n.mu.Unlock()
	clear(n.words)
	clear(n.phrases)
	clear(n.keywords)
}

// CacheSize returns the total number of memoized entries.
func (n *Normalizer) CacheSize() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.words) + len(n.phrases) + len(n.keywords)
}

// store inserts k into m and clears m when it grows past limit. Callers hold
// the lock guarding m.
func store[V any](m map[string]V, k string, v V, limit int) {
	m[k] = v
	if limit > 0 && len(m) > limit {
		clear(m)
	}
}
