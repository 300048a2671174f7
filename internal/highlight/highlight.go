// Package highlight merges overlapping match spans and renders them as
// inline markup over the original text.
//
// Spans are half-open rune offsets into the original text. Rendering escapes
// '&' and '<' in the copied text, so every tag in the output is markup written
// by [Render] and [Strip] always recovers the original text.
package highlight

import (
	"cmp"
	"html"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/MrWong99/callmark/pkg/types"
)

const (
	// MergedName is the dictionary name given to a span built from several
	// overlapping spans.
	MergedName = "multiple"

	// MergedColor is the display colour of merged spans.
	MergedColor = "#ff9900"

	// FallbackColor is rendered for spans without a colour.
	FallbackColor = "#cccccc"

	closeTag = "</mark>"
)

var (
	textEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;")
	textUnescaper = strings.NewReplacer("&lt;", "<", "&amp;", "&")
)

// openTag matches exactly the opening markup written by [Render].
var openTag = regexp.MustCompile(`<mark style="background-color:[^"]*" class="match [^"]*" data-dict-name="[^"]*" data-dict="-?[0-9]+">`)

// Merge deduplicates spans by position (the first span seen at a position
// wins), orders them by start and folds every run of overlapping or touching
// spans into one span of kind [types.MatchMerged]. The input is not modified.
func Merge(spans []types.MatchSpan) []types.MatchSpan {
	if len(spans) == 0 {
		return nil
	}

	type pos struct{ start, end int }
	seen := make(map[pos]struct{}, len(spans))
	unique := make([]types.MatchSpan, 0, len(spans))
	for _, s := range spans {
		k := pos{s.Start, s.End}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, s)
	}
	slices.SortStableFunc(unique, func(a, b types.MatchSpan) int {
		return cmp.Compare(a.Start, b.Start)
	})

	merged := make([]types.MatchSpan, 0, len(unique))
	cur := unique[0]
	for _, next := range unique[1:] {
		if next.Start > cur.End {
			merged = append(merged, cur)
			cur = next
			continue
		}
		cur = types.MatchSpan{
			Phrase:          cur.Phrase + "|" + next.Phrase,
			Start:           min(cur.Start, next.Start),
			End:             max(cur.End, next.End),
			DictionaryID:    0,
			DictionaryName:  MergedName,
			DictionaryColor: MergedColor,
			Kind:            types.MatchMerged,
		}
	}
	return append(merged, cur)
}

// Render wraps each span of merged in a <mark> element. merged must be sorted
// and non-overlapping, as returned by [Merge]. Spans reaching outside the
// text are clamped, and empty spans are skipped.
func Render(text string, merged []types.MatchSpan) string {
	if len(merged) == 0 {
		return textEscaper.Replace(text)
	}

	runes := []rune(text)
	n := len(runes)
	var b strings.Builder
	b.Grow(len(text) + len(merged)*128)

	last := 0
	for _, s := range merged {
		start := min(max(s.Start, last), n)
		end := min(max(s.End, start), n)
		if end == start {
			continue
		}
		textEscaper.WriteString(&b, string(runes[last:start]))
		writeOpenTag(&b, s)
		textEscaper.WriteString(&b, string(runes[start:end]))
		b.WriteString(closeTag)
		last = end
	}
	textEscaper.WriteString(&b, string(runes[last:]))
	return b.String()
}

func writeOpenTag(b *strings.Builder, s types.MatchSpan) {
	color := s.DictionaryColor
	if color == "" {
		color = FallbackColor
	}
	b.WriteString(`<mark style="background-color:`)
	b.WriteString(html.EscapeString(color))
	b.WriteString(`" class="match `)
	b.WriteString(html.EscapeString(string(s.Kind)))
	b.WriteString(`" data-dict-name="`)
	b.WriteString(html.EscapeString(s.DictionaryName))
	b.WriteString(`" data-dict="`)
	b.WriteString(strconv.FormatInt(s.DictionaryID, 10))
	b.WriteString(`">`)
}

// MergeAndRender merges spans and renders them over text.
func MergeAndRender(text string, spans []types.MatchSpan) ([]types.MatchSpan, string) {
	merged := Merge(spans)
	return merged, Render(text, merged)
}

// Strip removes the markup written by [Render] and unescapes the text,
// recovering the original.
func Strip(rendered string) string {
	var b strings.Builder
	b.Grow(len(rendered))
	s := rendered
	for {
		loc := openTag.FindStringIndex(s)
		if loc == nil {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:loc[0]])
		rest := s[loc[1]:]
		end := strings.Index(rest, closeTag)
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:end])
		s = rest[end+len(closeTag):]
	}
	return textUnescaper.Replace(b.String())
}
