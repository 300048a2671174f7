package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MrWong99/callmark/pkg/types"
)

// File is the on-disk form of a conversation. It carries either ready-made
// utterances or the raw client and operator channel segments, never both.
type File struct {
	ID         string            `json:"id"`
	Utterances []types.Utterance `json:"utterances,omitempty"`
	Client     []Segment         `json:"client,omitempty"`
	Operator   []Segment         `json:"operator,omitempty"`
}

// Decode reads a conversation file from r. Unknown fields are rejected.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("conversation: decode: %w", err)
	}
	return f, nil
}

// Load reads and decodes the conversation file at path.
func Load(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("conversation: open %q: %w", path, err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Conversation validates f and builds the conversation it describes.
// Channel segments are combined and merged with maxPause; utterances are
// taken as given.
func (f File) Conversation(maxPause float64) (Conversation, error) {
	if err := f.Validate(); err != nil {
		return Conversation{}, err
	}
	if len(f.Utterances) > 0 {
		return Conversation{ID: f.ID, Utterances: f.Utterances, Duration: Duration(f.Utterances)}, nil
	}
	return Assemble(f.ID, f.Client, f.Operator, maxPause), nil
}

// Validate reports every problem in f at once. Utterance keys (see [Key])
// must be unique, so two utterances of one speaker may not share a start
// time.
func (f File) Validate() error {
	var errs []error
	if len(f.Utterances) > 0 && len(f.Client)+len(f.Operator) > 0 {
		errs = append(errs, errors.New("conversation: both utterances and channel segments given"))
	}
	seen := make(map[string]int, len(f.Utterances))
	for i, u := range f.Utterances {
		if !u.Speaker.IsValid() {
			errs = append(errs, fmt.Errorf("conversation: utterances[%d]: unknown speaker %q", i, u.Speaker))
		}
		if u.EndTime < u.StartTime {
			errs = append(errs, fmt.Errorf("conversation: utterances[%d]: end_time %v before start_time %v", i, u.EndTime, u.StartTime))
		}
		k := Key(u)
		if j, dup := seen[k]; dup {
			errs = append(errs, fmt.Errorf("conversation: utterances[%d]: duplicate key %q (also utterances[%d])", i, k, j))
			continue
		}
		seen[k] = i
	}
	channels := []struct {
		speaker types.Speaker
		segs    []Segment
	}{
		{types.SpeakerClient, f.Client},
		{types.SpeakerOperator, f.Operator},
	}
	for _, ch := range channels {
		starts := make(map[float64]int, len(ch.segs))
		for i, s := range ch.segs {
			if s.End < s.Start {
				errs = append(errs, fmt.Errorf("conversation: %s[%d]: end %v before start %v", ch.speaker, i, s.End, s.Start))
			}
			if j, dup := starts[s.Start]; dup {
				errs = append(errs, fmt.Errorf("conversation: %s[%d]: duplicate start %v (also %s[%d])", ch.speaker, i, s.Start, ch.speaker, j))
				continue
			}
			starts[s.Start] = i
		}
	}
	return errors.Join(errs...)
}
