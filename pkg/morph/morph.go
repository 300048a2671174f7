// Package morph defines the Lemmatizer interface for morphological
// normalization backends.
//
// A lemmatizer maps a single word form to its dictionary base form (lemma),
// e.g. "сделали" -> "сделать". The phrase-matching engine treats it as an
// injected capability: it may fail for any individual word, and callers must
// degrade to a case-folded identity transform rather than propagate the error.
//
// Implementations must be safe for concurrent use.
package morph

import (
	"errors"
	"strings"
)

// ErrUnknownWord is returned by lemmatizers that cannot produce a lemma for a
// word (out-of-vocabulary, unsupported script, etc.).
var ErrUnknownWord = errors.New("morph: unknown word")

// Lemmatizer is the abstraction over any morphological normalization backend.
type Lemmatizer interface {
	// Lemma returns the base form of word. The input is already case-folded
	// by the caller. Implementations return a non-nil error when no lemma can
	// be determined; an empty lemma with a nil error is treated the same way.
	Lemma(word string) (string, error)
}

// LemmatizerFunc adapts an ordinary function to the [Lemmatizer] interface.
type LemmatizerFunc func(word string) (string, error)

// Lemma calls f(word).
func (f LemmatizerFunc) Lemma(word string) (string, error) {
	return f(word)
}

// Identity is a [Lemmatizer] that returns the lowercased word unchanged. It
// is used when no morphology backend is configured.
var Identity Lemmatizer = LemmatizerFunc(func(word string) (string, error) {
	return strings.ToLower(word), nil
})
