package pipeline

import (
	"fmt"
	"strings"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// applyFilters evaluates the conjunctive inclusion filters against a resolved
// document. It returns true when the document passes, or false with the first
// failing rule. A nil filter set or nil rule means no constraint, and a rule
// only applies when the document carries the metadata it tests: an
// unknown-year document is not excluded by a year range it cannot be checked
// against.
func applyFilters(filters *domain.InclusionFilters, doc *domain.Document) (bool, string) {
	if filters == nil {
		return true, ""
	}

	if filters.MinYear != nil && doc.Year != nil && *doc.Year < *filters.MinYear {
		return false, fmt.Sprintf("year below minimum %d", *filters.MinYear)
	}
	if filters.MaxYear != nil && doc.Year != nil && *doc.Year > *filters.MaxYear {
		return false, fmt.Sprintf("year above maximum %d", *filters.MaxYear)
	}

	if len(filters.Venues) > 0 && doc.Venue != nil && *doc.Venue != "" {
		if !venueAllowed(*doc.Venue, filters.Venues) {
			return false, "venue not in allow-list"
		}
	}

	if len(filters.Keywords) > 0 && doc.Abstract != nil && *doc.Abstract != "" {
		if !keywordPresent(*doc.Abstract, filters.Keywords) {
			return false, "no keyword match in abstract"
		}
	}

	return true, ""
}

// venueAllowed reports whether the venue appears in the allow-list,
// ignoring case and surrounding whitespace.
func venueAllowed(venue string, allowed []string) bool {
	venue = strings.TrimSpace(venue)
	for _, a := range allowed {
		if strings.EqualFold(venue, strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// keywordPresent reports whether any keyword occurs in the abstract,
// ignoring case.
func keywordPresent(abstract string, keywords []string) bool {
	abstract = strings.ToLower(abstract)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(abstract, kw) {
			return true
		}
	}
	return false
}
