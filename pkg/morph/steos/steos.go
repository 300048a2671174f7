// Package steos implements morph.Lemmatizer on top of the SteosMorphy Russian
// morphological analyzer.
//
// SteosMorphy memory-maps a compiled DAWG dictionary. Dictionary words are
// resolved exactly; out-of-vocabulary words fall back to the analyzer's
// suffix-based predictor. The first parse is taken as the lemma, mirroring
// the "most probable parse" convention of other morphology libraries.
package steos

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/steosofficial/steosmorphy/analyzer"

	"github.com/MrWong99/callmark/pkg/morph"
)

var _ morph.Lemmatizer = (*Lemmatizer)(nil)

// loadMu serialises dictionary loading because the dictionary path is passed
// to SteosMorphy through a process environment variable.
var loadMu sync.Mutex

// Option is a functional option for configuring a [Lemmatizer].
type Option func(*options)

type options struct {
	dictPath  string
	noPredict bool
}

// WithDictPath points the analyzer at a compiled morph.dawg file instead of
// the copy shipped next to the SteosMorphy package.
func WithDictPath(path string) Option {
	return func(o *options) {
		o.dictPath = path
	}
}

// WithoutPrediction disables the suffix predictor: words missing from the
// dictionary return [morph.ErrUnknownWord].
func WithoutPrediction() Option {
	return func(o *options) {
		o.noPredict = true
	}
}

// Lemmatizer resolves Russian word forms to their lemmas. It is read-only
// after construction and safe for concurrent use.
type Lemmatizer struct {
	ma        *analyzer.MorphAnalyzer
	noPredict bool
}

// New loads the SteosMorphy dictionary and returns a ready [Lemmatizer].
func New(opts ...Option) (*Lemmatizer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loadMu.Lock()
	defer loadMu.Unlock()

	if o.dictPath != "" {
		if _, err := os.Stat(o.dictPath); err != nil {
			return nil, fmt.Errorf("steos: dictionary %q: %w", o.dictPath, err)
		}
		prev, had := os.LookupEnv(analyzer.EnvDictPath)
		if err := os.Setenv(analyzer.EnvDictPath, o.dictPath); err != nil {
			return nil, fmt.Errorf("steos: set %s: %w", analyzer.EnvDictPath, err)
		}
		defer func() {
			if had {
				_ = os.Setenv(analyzer.EnvDictPath, prev)
			} else {
				_ = os.Unsetenv(analyzer.EnvDictPath)
			}
		}()
	}

	ma, err := analyzer.LoadMorphAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("steos: load analyzer: %w", err)
	}
	return &Lemmatizer{ma: ma, noPredict: o.noPredict}, nil
}

// Lemma implements [morph.Lemmatizer].
func (l *Lemmatizer) Lemma(word string) (string, error) {
	if word == "" {
		return "", morph.ErrUnknownWord
	}
	parses := l.ma.Parse(word)
	if len(parses) == 0 && !l.noPredict {
		parses = l.ma.ParsePredicted(word)
	}
	for _, p := range parses {
		if p != nil && p.Lemma != "" {
			return strings.ToLower(p.Lemma), nil
		}
	}
	return "", fmt.Errorf("steos: %q: %w", word, morph.ErrUnknownWord)
}
