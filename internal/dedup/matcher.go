// Package dedup detects duplicate documents within a project through exact
// identifier matching and fuzzy title comparison.
package dedup

import (
	"strings"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// MatchReason identifies which rule detected a duplicate.
type MatchReason string

const (
	// MatchReasonDOI means both documents carry the same DOI (case-insensitive).
	MatchReasonDOI MatchReason = "doi"
	// MatchReasonContentHash means both documents have identical file content.
	MatchReasonContentHash MatchReason = "content_hash"
	// MatchReasonTitle means the titles are similar above the configured threshold.
	MatchReasonTitle MatchReason = "title"
)

// Matcher finds the first stored document that duplicates a candidate.
// It is a pure comparison over in-memory documents; retrieval order of the
// stored slice determines which duplicate wins, so callers must pass
// candidates in a deterministic order.
type Matcher struct {
	titleThreshold float64
}

// NewMatcher creates a matcher with the given fuzzy title similarity
// threshold. A document whose title similarity to a stored document is at
// least the threshold is considered a duplicate of it.
func NewMatcher(titleThreshold float64) *Matcher {
	return &Matcher{titleThreshold: titleThreshold}
}

// Match returns the first document in stored that the candidate duplicates,
// together with the rule that matched, or (nil, "") if the candidate is not a
// duplicate. For each stored document the rules are checked in fixed order:
// DOI equality, content hash equality, then fuzzy title similarity.
func (m *Matcher) Match(candidate *domain.Document, stored []*domain.Document) (*domain.Document, MatchReason) {
	if candidate == nil {
		return nil, ""
	}

	candidateTitle := ""
	if candidate.Title != nil {
		candidateTitle = NormalizeTitle(*candidate.Title)
	}

	for _, doc := range stored {
		if doc == nil || doc.ID == candidate.ID {
			continue
		}

		if doiEqual(candidate.DOI, doc.DOI) {
			return doc, MatchReasonDOI
		}
		if hashEqual(candidate.ContentHash, doc.ContentHash) {
			return doc, MatchReasonContentHash
		}
		if m.titleMatch(candidateTitle, doc.Title) {
			return doc, MatchReasonTitle
		}
	}

	return nil, ""
}

// doiEqual reports whether two DOIs are present and equal ignoring case.
func doiEqual(a, b *string) bool {
	if a == nil || b == nil || *a == "" || *b == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}

// hashEqual reports whether two content hashes are present and identical.
func hashEqual(a, b *string) bool {
	if a == nil || b == nil || *a == "" || *b == "" {
		return false
	}
	return *a == *b
}

// titleMatch reports whether the normalized candidate title is similar to the
// stored document's title above the threshold. Missing titles never match.
func (m *Matcher) titleMatch(candidateTitle string, storedTitle *string) bool {
	if candidateTitle == "" || storedTitle == nil {
		return false
	}
	normalized := NormalizeTitle(*storedTitle)
	if normalized == "" {
		return false
	}
	return SimilarityRatio(candidateTitle, normalized) >= m.titleThreshold
}
