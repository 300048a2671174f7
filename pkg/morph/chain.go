package morph

import "fmt"

// Chain returns a [Lemmatizer] that asks each of ls in order and returns the
// first non-empty lemma, e.g. a dictionary lemmatizer followed by a stemmer
// for out-of-vocabulary words. A single lemmatizer is returned unchanged.
func Chain(ls ...Lemmatizer) Lemmatizer {
	if len(ls) == 1 {
		return ls[0]
	}
	return chain(ls)
}

type chain []Lemmatizer

func (c chain) Lemma(word string) (string, error) {
	lastErr := ErrUnknownWord
	for _, l := range c {
		lemma, err := l.Lemma(word)
		if err == nil && lemma != "" {
			return lemma, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return "", fmt.Errorf("morph: no lemmatizer in chain knows %q: %w", word, lastErr)
}
