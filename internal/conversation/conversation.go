// Package conversation assembles speaker-attributed utterances from
// per-channel transcript segments and annotates whole conversations with
// phrase matches.
package conversation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/MrWong99/callmark/internal/highlight"
	"github.com/MrWong99/callmark/pkg/types"
)

// DefaultMaxPause is the longest gap, in seconds, between two utterances of
// the same speaker that [MergeAdjacent] still joins.
const DefaultMaxPause = 1.0

// Segment is one timed piece of a single channel's transcript.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Conversation is an ordered list of utterances with its total duration.
type Conversation struct {
	ID         string            `json:"id"`
	Utterances []types.Utterance `json:"utterances"`
	Duration   float64           `json:"duration"`
}

// Key identifies an utterance within a conversation as "speaker_start", e.g.
// "client_12.5". The start time is written in its shortest exact form.
func Key(u types.Utterance) string {
	return string(u.Speaker) + "_" + strconv.FormatFloat(u.StartTime, 'f', -1, 64)
}

// Combine turns the client and operator channel segments into utterances
// ordered by start time. Utterances that start together keep client first.
func Combine(client, operator []Segment) []types.Utterance {
	out := make([]types.Utterance, 0, len(client)+len(operator))
	for _, s := range client {
		out = append(out, fromSegment(types.SpeakerClient, s))
	}
	for _, s := range operator {
		out = append(out, fromSegment(types.SpeakerOperator, s))
	}
	slices.SortStableFunc(out, func(a, b types.Utterance) int {
		return cmp.Compare(a.StartTime, b.StartTime)
	})
	return out
}

func fromSegment(speaker types.Speaker, s Segment) types.Utterance {
	return types.Utterance{Speaker: speaker, Text: s.Text, StartTime: s.Start, EndTime: s.End}
}

// MergeAdjacent joins consecutive utterances of the same speaker when the
// pause between them is at most maxPause seconds. Joined texts are separated
// by one space. The input is not modified.
func MergeAdjacent(utterances []types.Utterance, maxPause float64) []types.Utterance {
	if len(utterances) == 0 {
		return nil
	}
	merged := []types.Utterance{utterances[0]}
	for _, cur := range utterances[1:] {
		last := &merged[len(merged)-1]
		if cur.Speaker == last.Speaker && cur.StartTime-last.EndTime <= maxPause {
			last.Text = last.Text + " " + cur.Text
			last.EndTime = cur.EndTime
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Duration returns the latest end time among utterances, or 0.
func Duration(utterances []types.Utterance) float64 {
	var d float64
	for _, u := range utterances {
		d = max(d, u.EndTime)
	}
	return d
}

// Assemble combines both channels, merges adjacent utterances and computes
// the duration.
func Assemble(id string, client, operator []Segment, maxPause float64) Conversation {
	utterances := MergeAdjacent(Combine(client, operator), maxPause)
	return Conversation{ID: id, Utterances: utterances, Duration: Duration(utterances)}
}

// FormatTime renders seconds as H:MM:SS, rounded to the nearest second
// (halves to even).
func FormatTime(seconds float64) string {
	total := int64(math.RoundToEven(seconds))
	sign := ""
	if total < 0 {
		sign, total = "-", -total
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, total/3600, total/60%60, total%60)
}

// BatchAnalyzer analyses many utterances at once, keyed by [Key].
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, utterances []types.Utterance, dicts []types.Dictionary) (map[string]types.AnalysisResult, error)
}

// Entry is one utterance of an annotated conversation.
type Entry struct {
	types.Utterance
	TextWithHighlights string             `json:"text_with_highlights"`
	MatchedPhrases     map[int64][]string `json:"matched_phrases"`
	Highlights         []types.MatchSpan  `json:"highlights"`
}

// ErrDuplicateKey is returned by [Annotate] when two utterances share a [Key].
var ErrDuplicateKey = errors.New("conversation: duplicate utterance key")

// Annotate analyses every utterance and returns them in their original order
// together with their matches. Keys must be unique.
func Annotate(ctx context.Context, a BatchAnalyzer, utterances []types.Utterance, dicts []types.Dictionary) ([]Entry, error) {
	keys := make(map[string]struct{}, len(utterances))
	for _, u := range utterances {
		k := Key(u)
		if _, dup := keys[k]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateKey, k)
		}
		keys[k] = struct{}{}
	}

	results, err := a.AnalyzeBatch(ctx, utterances, dicts)
	if err != nil {
		return nil, fmt.Errorf("conversation: annotate: %w", err)
	}
	entries := make([]Entry, 0, len(utterances))
	for _, u := range utterances {
		r, ok := results[Key(u)]
		if !ok {
			r = types.AnalysisResult{TextWithHighlights: highlight.Render(u.Text, nil)}
		}
		entries = append(entries, Entry{
			Utterance:          u,
			TextWithHighlights: r.TextWithHighlights,
			MatchedPhrases:     r.MatchedPhrases,
			Highlights:         r.Highlights,
		})
	}
	return entries, nil
}
