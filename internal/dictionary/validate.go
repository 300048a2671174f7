package dictionary

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/callmark/pkg/types"
)

// Validate checks dicts and returns every problem found, joined. Duplicate
// phrases within a dictionary are only logged: they match twice but are
// otherwise harmless.
func Validate(dicts []types.Dictionary) error {
	var errs []error
	ids := make(map[int64]int, len(dicts))

	for i, d := range dicts {
		prefix := fmt.Sprintf("dictionaries[%d]", i)
		if d.Name != "" {
			prefix = fmt.Sprintf("dictionaries[%d] (%s)", i, d.Name)
		}

		if d.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s: id must be positive, got %d", prefix, d.ID))
		} else if j, dup := ids[d.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: id %d already used by dictionaries[%d]", prefix, d.ID, j))
		} else {
			ids[d.ID] = i
		}

		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
		}
		if !d.AppliesTo.IsValid() {
			errs = append(errs, fmt.Errorf("%s: applies_to %q must be one of client, operator, both", prefix, d.AppliesTo))
		}
		if len(d.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one phrase is required", prefix))
		}

		seen := make(map[string]struct{}, len(d.Phrases))
		for k, p := range d.Phrases {
			if strings.TrimSpace(p) == "" {
				errs = append(errs, fmt.Errorf("%s: phrases[%d] is blank", prefix, k))
				continue
			}
			key := strings.ToLower(strings.Join(strings.Fields(p), " "))
			if _, dup := seen[key]; dup {
				slog.Warn("dictionary: duplicate phrase", "dictionary", d.Name, "phrase", p)
			}
			seen[key] = struct{}{}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("dictionary: validation failed: %w", errors.Join(errs...))
	}
	return nil
}
