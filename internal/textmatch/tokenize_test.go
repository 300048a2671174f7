package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []token
	}{
		{name: "empty", in: "", want: nil},
		{name: "punctuation only", in: " ,.!? ", want: nil},
		{
			name: "cyrillic with punctuation",
			in:   "Привет, как дела?",
			want: []token{
				{text: "Привет", start: 0, end: 6},
				{text: "как", start: 8, end: 11},
				{text: "дела", start: 12, end: 16},
			},
		},
		{
			name: "digits and underscore",
			in:   "код_1 42",
			want: []token{
				{text: "код_1", start: 0, end: 5},
				{text: "42", start: 6, end: 8},
			},
		},
		{
			name: "hyphen splits",
			in:   "из-за",
			want: []token{
				{text: "из", start: 0, end: 2},
				{text: "за", start: 3, end: 5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}

func TestFoldCase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "привет мир", foldCase("ПРИВЕТ Мир"))
	assert.Equal(t, "", foldCase(""))
}
