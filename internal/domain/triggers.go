package domain

import (
	"github.com/google/uuid"
)

// Trigger topics. Each pipeline stage consumes one topic and publishes exactly
// one trigger for the next stage on success; failures publish nothing.
const (
	TopicEnrichDocument = "enrich-document"
	TopicEmbedUpsert    = "embed-upsert"
	TopicClusterRun     = "cluster-run"
	TopicLabelRun       = "label-run"
	TopicLabelTheme     = "label-theme"
	TopicSummaryMake    = "summary-make"
)

// InclusionFilters are the conjunctive inclusion rules applied during
// enrichment. A nil field means "no constraint".
type InclusionFilters struct {
	// MinYear and MaxYear bound the publication year, inclusive.
	MinYear *int `json:"minYear,omitempty"`
	// MaxYear bounds the publication year from above, inclusive.
	MaxYear *int `json:"maxYear,omitempty"`
	// Venues is a case-insensitive venue allow-list.
	Venues []string `json:"venues,omitempty"`
	// Keywords requires at least one case-insensitive match in the abstract.
	Keywords []string `json:"keywords,omitempty"`
}

// EnrichDocumentTrigger is the payload of enrich-document triggers, published
// by the upstream parsing stage once a document's sections are stored.
type EnrichDocumentTrigger struct {
	DocumentID uuid.UUID         `json:"documentId" validate:"required"`
	FilePath   string            `json:"filePath" validate:"required"`
	Filters    *InclusionFilters `json:"filters,omitempty"`
}

// EmbedUpsertTrigger is the payload of embed-upsert triggers. Exactly one of
// ProjectID or DocumentID should be set; a project-wide trigger re-embeds all
// pending sections of the project and hands off to clustering when done.
type EmbedUpsertTrigger struct {
	ProjectID  *uuid.UUID `json:"projectId,omitempty"`
	DocumentID *uuid.UUID `json:"documentId,omitempty"`
}

// ClusterRunTrigger is the payload of cluster-run triggers.
type ClusterRunTrigger struct {
	ProjectID uuid.UUID `json:"projectId" validate:"required"`
}

// LabelRunTrigger is the payload of label-run and label-theme triggers.
// label-run carries a project ID and labels every theme of the project;
// label-theme carries a theme ID and labels a single theme.
type LabelRunTrigger struct {
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	ThemeID   *uuid.UUID `json:"themeId,omitempty"`
}

// SummaryMakeTrigger is the payload of summary-make triggers, consumed by the
// external summary stage.
type SummaryMakeTrigger struct {
	ThemeID uuid.UUID `json:"themeId" validate:"required"`
}
