package config_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/callmark/internal/config"
	"github.com/MrWong99/callmark/pkg/morph"
	"github.com/MrWong99/callmark/pkg/morph/mock"
)

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.Create(config.MorphologyConfig{Name: "steos"})
	require.ErrorIs(t, err, config.ErrLemmatizerNotRegistered)
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	want := &mock.Lemmatizer{Lemmas: map[string]string{"дела": "дело"}}
	var got config.MorphologyConfig
	reg.Register("mock", func(cfg config.MorphologyConfig) (morph.Lemmatizer, error) {
		got = cfg
		return want, nil
	})

	l, err := reg.Create(config.MorphologyConfig{
		Name:    "mock",
		Options: map[string]any{"language": "russian"},
	})
	require.NoError(t, err)
	assert.Same(t, want, l)
	assert.Equal(t, "russian", config.OptString(got.Options, "language"))
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	reg := config.NewRegistry()
	reg.Register("broken", func(config.MorphologyConfig) (morph.Lemmatizer, error) {
		return nil, boom
	})

	_, err := reg.Create(config.MorphologyConfig{Name: "broken"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"broken"`)
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	factory := func(config.MorphologyConfig) (morph.Lemmatizer, error) { return morph.Identity, nil }
	reg.Register("snowball", factory)
	reg.Register("none", factory)
	reg.Register("snowball", factory)

	assert.Equal(t, []string{"none", "snowball"}, reg.Names())
}

func TestOptHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"s": "x", "b": true, "n": 3}
	assert.Equal(t, "x", config.OptString(opts, "s"))
	assert.Empty(t, config.OptString(opts, "n"))
	assert.Empty(t, config.OptString(nil, "s"))
	assert.True(t, config.OptBool(opts, "b"))
	assert.False(t, config.OptBool(opts, "s"))
}

func TestRegistry_Fallback(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.Register("dict", func(config.MorphologyConfig) (morph.Lemmatizer, error) {
		return &mock.Lemmatizer{
			Lemmas: map[string]string{"сделали": "сделать"},
			Errors: map[string]error{"дела": morph.ErrUnknownWord},
		}, nil
	})
	reg.Register("stem", func(config.MorphologyConfig) (morph.Lemmatizer, error) {
		return &mock.Lemmatizer{Lemmas: map[string]string{"дела": "дел"}}, nil
	})

	l, err := reg.Create(config.MorphologyConfig{
		Name:     "dict",
		Fallback: &config.MorphologyConfig{Name: "stem"},
	})
	require.NoError(t, err)

	lemma, err := l.Lemma("сделали")
	require.NoError(t, err)
	assert.Equal(t, "сделать", lemma)

	lemma, err = l.Lemma("дела")
	require.NoError(t, err)
	assert.Equal(t, "дел", lemma)

	_, err = reg.Create(config.MorphologyConfig{Name: "dict", Fallback: &config.MorphologyConfig{Name: "nope"}})
	assert.ErrorIs(t, err, config.ErrLemmatizerNotRegistered)
}
