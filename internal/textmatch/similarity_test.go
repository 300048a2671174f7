package textmatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrWong99/callmark/internal/textmatch"
)

func TestRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, textmatch.Ratio("", ""), 1e-9)
	assert.InDelta(t, 1.0, textmatch.Ratio("дело", "дело"), 1e-9)
	assert.InDelta(t, 0.75, textmatch.Ratio("abcd", "abce"), 1e-9)
	assert.InDelta(t, 0.0, textmatch.Ratio("abc", "xyz"), 1e-9)
}

func TestPartialRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "substring", a: "abc", b: "xxabcxx", want: 1},
		{name: "symmetric", a: "xxabcxx", b: "abc", want: 1},
		{name: "empty", a: "", b: "abc", want: 0},
		{name: "cyrillic substring", a: "как дела", b: "привет как дела сегодня", want: 1},
		{name: "one substitution", a: "abcd", b: "zzabcezz", want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, textmatch.PartialRatio(tt.a, tt.b), 1e-9)
		})
	}
}
