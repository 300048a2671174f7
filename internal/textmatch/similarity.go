package textmatch

import "github.com/antzucaro/matchr"

// Scorer returns a similarity in [0, 1] between two normalized strings.
type Scorer func(a, b string) float64

// Ratio is the normalized Indel similarity of a and b: twice the length of
// their longest common subsequence divided by their combined length, counted
// in runes. Two empty strings are identical.
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	lcs := matchr.LongestCommonSubsequence(string(a), string(b))
	return 2 * float64(lcs) / float64(total)
}

// PartialRatio scores how well the shorter string fits somewhere inside the
// longer one: the best [Ratio] of the shorter string against every window of
// the longer string with the same length. It returns 0 when either string is
// empty.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		s := ratioRunes(ra, rb[i:i+len(ra)])
		if s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}
