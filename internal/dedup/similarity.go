package dedup

import "strings"

// SimilarityRatio computes the similarity of two strings as the normalized
// size of their matching blocks:
//
//	ratio = 2 * M / (len(a) + len(b))
//
// where M is the total length of the blocks found by recursively taking the
// longest common substring and matching the pieces to its left and right.
// The result is in [0, 1]; 1.0 means the strings are identical, and two empty
// strings are identical. Comparison operates on runes, not bytes.
func SimilarityRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	matched := matchingBlocksSize(ra, rb)
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

// NormalizeTitle prepares a title for fuzzy comparison: lowercase, trimmed,
// inner whitespace collapsed to single spaces.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// matchingBlocksSize returns the total length of all matching blocks between
// a and b. It finds the longest common substring, then recurses into the
// unmatched prefixes and suffixes.
func matchingBlocksSize(a, b []rune) int {
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}

	total := size
	if i > 0 && j > 0 {
		total += matchingBlocksSize(a[:i], b[:j])
	}
	if i+size < len(a) && j+size < len(b) {
		total += matchingBlocksSize(a[i+size:], b[j+size:])
	}
	return total
}

// longestMatch finds the longest common substring of a and b.
// On ties, the leftmost match in a (then in b) wins, keeping the
// decomposition deterministic.
func longestMatch(a, b []rune) (bestI, bestJ, bestSize int) {
	// Positions of each rune in b.
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// j2len[j] is the length of the common substring ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i, r := range a {
		newJ2len := make(map[int]int)
		for _, j := range b2j[r] {
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				bestI = i - k + 1
				bestJ = j - k + 1
				bestSize = k
			}
		}
		j2len = newJ2len
	}

	return bestI, bestJ, bestSize
}
