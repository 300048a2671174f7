// Package types defines the shared value types used across all callmark packages.
//
// These types form the lingua franca between the transcript producers, the
// phrase-matching engine, the conversation layer, and the job processor. They
// are plain values: nothing in this package mutates them after construction.
package types

import "slices"

// Speaker identifies which side of a call produced an utterance.
type Speaker string

const (
	SpeakerClient   Speaker = "client"
	SpeakerOperator Speaker = "operator"
)

// IsValid reports whether s is a recognised speaker role.
func (s Speaker) IsValid() bool {
	return s == SpeakerClient || s == SpeakerOperator
}

// Scope restricts a [Dictionary] to the utterances of one speaker role.
type Scope string

const (
	ScopeClient   Scope = "client"
	ScopeOperator Scope = "operator"
	ScopeBoth     Scope = "both"
)

// IsValid reports whether s is a recognised scope. The empty scope is valid
// and behaves like [ScopeBoth].
func (s Scope) IsValid() bool {
	switch s {
	case "", ScopeClient, ScopeOperator, ScopeBoth:
		return true
	}
	return false
}

// Allows reports whether a dictionary with this scope applies to speaker.
func (s Scope) Allows(speaker Speaker) bool {
	switch s {
	case ScopeClient:
		return speaker == SpeakerClient
	case ScopeOperator:
		return speaker == SpeakerOperator
	}
	return true
}

// Utterance is one speaker-attributed, time-bounded transcript segment.
type Utterance struct {
	// Speaker is the role that produced the utterance.
	Speaker Speaker `json:"speaker" yaml:"speaker"`

	// Text is the original, unmodified transcript slice.
	Text string `json:"text" yaml:"text"`

	// StartTime is the utterance start in seconds from the recording start.
	StartTime float64 `json:"start_time" yaml:"start_time"`

	// EndTime is the utterance end in seconds. Always >= StartTime.
	EndTime float64 `json:"end_time" yaml:"end_time"`
}

// DefaultColor is the display colour used for dictionaries that don't set one.
const DefaultColor = "#CCCCCC"

// Dictionary is a named, coloured collection of trigger phrases scoped to a
// speaker role.
type Dictionary struct {
	// ID uniquely identifies the dictionary.
	ID int64 `json:"id" yaml:"id"`

	// Name is the human-readable dictionary name shown in highlights.
	Name string `json:"name" yaml:"name"`

	// AppliesTo restricts the dictionary to one speaker role. Empty means both.
	AppliesTo Scope `json:"applies_to" yaml:"applies_to"`

	// Phrases is the ordered list of trigger phrases. Duplicates are allowed.
	Phrases []string `json:"phrases" yaml:"phrases"`

	// Color is a display hint. It is opaque to matching.
	Color string `json:"color" yaml:"color"`

	// Description is free text for operators maintaining the dictionary.
	Description string `json:"description,omitempty" yaml:"description"`
}

// MatchKind records which matching tier produced a span.
type MatchKind string

const (
	MatchNone       MatchKind = "none"
	MatchExact      MatchKind = "exact"
	MatchNormalized MatchKind = "normalized"
	MatchSemantic   MatchKind = "semantic"
	MatchMerged     MatchKind = "merged"
)

// MatchSpan is a character range in an utterance's original text where a
// dictionary phrase was found, together with its provenance.
//
// Start and End are half-open offsets counted in characters (Unicode code
// points) of the original text, never of the normalized text.
type MatchSpan struct {
	Phrase          string    `json:"phrase"`
	Start           int       `json:"start_pos"`
	End             int       `json:"end_pos"`
	DictionaryID    int64     `json:"dictionary_id"`
	DictionaryName  string    `json:"dictionary_name"`
	DictionaryColor string    `json:"dictionary_color"`
	Kind            MatchKind `json:"match_type"`
}

// AnalysisResult is the outcome of analysing one utterance.
type AnalysisResult struct {
	// MatchedPhrases lists, per dictionary ID, the phrases found in the text.
	MatchedPhrases map[int64][]string `json:"matched_phrases"`

	// Highlights holds one span per matched position, before merging.
	Highlights []MatchSpan `json:"highlights"`

	// Merged holds the deduplicated, merged spans used for rendering.
	Merged []MatchSpan `json:"merged"`

	// TextWithHighlights is the original text with every merged span wrapped
	// in markup. Equal to the original text when nothing matched.
	TextWithHighlights string `json:"text_with_highlights"`
}

// Clone returns a deep copy of r so that cached results can be handed out
// without sharing slices or maps.
func (r AnalysisResult) Clone() AnalysisResult {
	out := AnalysisResult{
		Highlights:         slices.Clone(r.Highlights),
		Merged:             slices.Clone(r.Merged),
		TextWithHighlights: r.TextWithHighlights,
	}
	if r.MatchedPhrases != nil {
		out.MatchedPhrases = make(map[int64][]string, len(r.MatchedPhrases))
		for id, phrases := range r.MatchedPhrases {
			out.MatchedPhrases[id] = slices.Clone(phrases)
		}
	}
	return out
}
