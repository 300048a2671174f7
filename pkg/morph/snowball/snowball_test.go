package snowball_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/callmark/pkg/morph/snowball"
)

func TestStemmer_CollapsesInflections(t *testing.T) {
	t.Parallel()

	s, err := snowball.New()
	require.NoError(t, err)

	a, err := s.Lemma("дела")
	require.NoError(t, err)
	b, err := s.Lemma("дело")
	require.NoError(t, err)
	assert.Equal(t, a, b, "inflected forms of one noun should share a stem")
}

func TestStemmer_English(t *testing.T) {
	t.Parallel()

	s, err := snowball.New(snowball.WithLanguage("english"))
	require.NoError(t, err)

	stem, err := s.Lemma("running")
	require.NoError(t, err)
	assert.Equal(t, "run", stem)
}

func TestNew_UnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := snowball.New(snowball.WithLanguage("klingon"))
	assert.Error(t, err)
}
