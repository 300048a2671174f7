// Package snowball implements morph.Lemmatizer with the Snowball stemming
// algorithms.
//
// Stems are not true lemmas ("сделали" -> "сдела", "сделать" -> "сдела"), but
// they collapse inflected forms onto a shared key, which is all the matching
// engine needs from normalization. Useful when no morphology dictionary is
// available.
package snowball

import (
	"fmt"

	"github.com/kljensen/snowball"

	"github.com/MrWong99/callmark/pkg/morph"
)

const defaultLanguage = "russian"

var _ morph.Lemmatizer = (*Stemmer)(nil)

// Option is a functional option for configuring a [Stemmer].
type Option func(*Stemmer)

// WithLanguage selects the Snowball language (e.g. "russian", "english").
// Default: "russian".
func WithLanguage(lang string) Option {
	return func(s *Stemmer) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithStopWordStemming also stems the language's stop words. Off by default,
// so stop words pass through unchanged.
func WithStopWordStemming() Option {
	return func(s *Stemmer) {
		s.stemStopWords = true
	}
}

// Stemmer is a Snowball-backed [morph.Lemmatizer]. It holds no mutable state
// and is safe for concurrent use.
type Stemmer struct {
	language      string
	stemStopWords bool
}

// New returns a [Stemmer]. It validates the language by stemming a probe
// word so that misconfiguration surfaces at startup.
func New(opts ...Option) (*Stemmer, error) {
	s := &Stemmer{language: defaultLanguage}
	for _, o := range opts {
		o(s)
	}
	if _, err := snowball.Stem("probe", s.language, s.stemStopWords); err != nil {
		return nil, fmt.Errorf("snowball: language %q: %w", s.language, err)
	}
	return s, nil
}

// Lemma implements [morph.Lemmatizer].
func (s *Stemmer) Lemma(word string) (string, error) {
	stem, err := snowball.Stem(word, s.language, s.stemStopWords)
	if err != nil {
		return "", fmt.Errorf("snowball: stem %q: %w", word, err)
	}
	if stem == "" {
		return "", fmt.Errorf("snowball: stem %q: %w", word, morph.ErrUnknownWord)
	}
	return stem, nil
}
