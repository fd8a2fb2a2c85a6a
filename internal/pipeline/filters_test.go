package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestApplyFilters(t *testing.T) {
	t.Parallel()

	doc := &domain.Document{
		Venue:    strPtr("NeurIPS"),
		Year:     intPtr(2021),
		Abstract: strPtr("We study contrastive representation learning for graphs."),
	}

	tests := []struct {
		name    string
		filters *domain.InclusionFilters
		doc     *domain.Document
		pass    bool
	}{
		{name: "nil filters pass", filters: nil, doc: doc, pass: true},
		{name: "empty filters pass", filters: &domain.InclusionFilters{}, doc: doc, pass: true},
		{
			name:    "year inside range",
			filters: &domain.InclusionFilters{MinYear: intPtr(2018), MaxYear: intPtr(2023)},
			doc:     doc,
			pass:    true,
		},
		{
			name:    "year below minimum",
			filters: &domain.InclusionFilters{MinYear: intPtr(2022)},
			doc:     doc,
			pass:    false,
		},
		{
			name:    "year above maximum",
			filters: &domain.InclusionFilters{MaxYear: intPtr(2020)},
			doc:     doc,
			pass:    false,
		},
		{
			name:    "missing year passes a year filter",
			filters: &domain.InclusionFilters{MinYear: intPtr(2018)},
			doc:     &domain.Document{Venue: doc.Venue, Abstract: doc.Abstract},
			pass:    true,
		},
		{
			name:    "venue allow-list is case-insensitive",
			filters: &domain.InclusionFilters{Venues: []string{"neurips", "ICML"}},
			doc:     doc,
			pass:    true,
		},
		{
			name:    "venue not in allow-list",
			filters: &domain.InclusionFilters{Venues: []string{"ICML"}},
			doc:     doc,
			pass:    false,
		},
		{
			name:    "keyword match in abstract ignores case",
			filters: &domain.InclusionFilters{Keywords: []string{"Contrastive"}},
			doc:     doc,
			pass:    true,
		},
		{
			name:    "no keyword match",
			filters: &domain.InclusionFilters{Keywords: []string{"diffusion"}},
			doc:     doc,
			pass:    false,
		},
		{
			name:    "missing abstract passes a keyword filter",
			filters: &domain.InclusionFilters{Keywords: []string{"graphs"}},
			doc:     &domain.Document{Venue: doc.Venue, Year: doc.Year},
			pass:    true,
		},
		{
			name:    "missing venue passes a venue filter",
			filters: &domain.InclusionFilters{Venues: []string{"ICML"}},
			doc:     &domain.Document{Year: doc.Year, Abstract: doc.Abstract},
			pass:    true,
		},
		{
			name:    "empty venue passes a venue filter",
			filters: &domain.InclusionFilters{Venues: []string{"ICML"}},
			doc:     &domain.Document{Venue: strPtr(""), Year: doc.Year},
			pass:    true,
		},
		{
			name: "filters are conjunctive",
			filters: &domain.InclusionFilters{
				MinYear:  intPtr(2018),
				Venues:   []string{"NeurIPS"},
				Keywords: []string{"diffusion"},
			},
			doc:  doc,
			pass: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pass, reason := applyFilters(tt.filters, tt.doc)
			assert.Equal(t, tt.pass, pass)
			if !tt.pass {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
