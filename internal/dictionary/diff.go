package dictionary

import (
	"slices"

	"github.com/MrWong99/callmark/pkg/types"
)

// Diff describes what changed between two dictionary sets, by dictionary ID.
// Each list is sorted.
type Diff struct {
	Added   []int64
	Removed []int64
	Changed []int64
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare returns the differences between old and new. A dictionary counts as
// changed when any field differs.
func Compare(old, new []types.Dictionary) Diff {
	oldByID := make(map[int64]types.Dictionary, len(old))
	for _, d := range old {
		oldByID[d.ID] = d
	}
	newByID := make(map[int64]types.Dictionary, len(new))
	for _, d := range new {
		newByID[d.ID] = d
	}

	var diff Diff
	for id, o := range oldByID {
		n, ok := newByID[id]
		switch {
		case !ok:
			diff.Removed = append(diff.Removed, id)
		case !equal(o, n):
			diff.Changed = append(diff.Changed, id)
		}
	}
	for id := range newByID {
		if _, ok := oldByID[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}

	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.Sort(diff.Changed)
	return diff
}

func equal(a, b types.Dictionary) bool {
	return a.Name == b.Name &&
		a.AppliesTo == b.AppliesTo &&
		a.Color == b.Color &&
		a.Description == b.Description &&
		slices.Equal(a.Phrases, b.Phrases)
}
