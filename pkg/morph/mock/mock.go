// Package mock provides a test double for the morph.Lemmatizer interface.
//
// Use Lemmatizer to return pre-canned lemmas without loading a morphology
// dictionary and to verify which words were looked up.
//
// Example:
//
//	l := &mock.Lemmatizer{
//	    Lemmas: map[string]string{"сделали": "сделать", "дел": "дело"},
//	}
//	lemma, _ := l.Lemma("сделали") // "сделать"
package mock

import (
	"sync"

	"github.com/MrWong99/callmark/pkg/morph"
)

var _ morph.Lemmatizer = (*Lemmatizer)(nil)

// Lemmatizer is a mock implementation of morph.Lemmatizer.
type Lemmatizer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Lemmas maps a word to the lemma returned for it. Words not present are
	// returned unchanged.
	Lemmas map[string]string

	// Errors maps a word to the error returned for it. Takes precedence over
	// Lemmas.
	Errors map[string]error

	// Err, if non-nil, is returned for every word not covered by Errors.
	Err error

	// PanicOn lists words for which Lemma panics. Used to exercise recovery
	// in callers.
	PanicOn map[string]bool

	// --- Call records ---

	// Calls records every word passed to Lemma in order.
	Calls []string
}

// Lemma records the call and returns the configured lemma or error.
func (l *Lemmatizer) Lemma(word string) (string, error) {
	l.mu.Lock()
	l.Calls = append(l.Calls, word)
	l.mu.Unlock()

	if l.PanicOn[word] {
		panic("mock: lemmatizer panic for " + word)
	}
	if err, ok := l.Errors[word]; ok {
		return "", err
	}
	if l.Err != nil {
		return "", l.Err
	}
	if lemma, ok := l.Lemmas[word]; ok {
		return lemma, nil
	}
	return word, nil
}

// CallCount returns how many times Lemma was called with word.
func (l *Lemmatizer) CallCount(word string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.Calls {
		if c == word {
			n++
		}
	}
	return n
}

// Reset clears the call records.
func (l *Lemmatizer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = nil
}
