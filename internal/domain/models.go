// Package domain provides domain models and business logic for the Theme Discovery Service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the lifecycle states of an ingested document.
// These values must match the database enum document_status.
type DocumentStatus string

const (
	DocumentStatusIngested  DocumentStatus = "ingested"
	DocumentStatusParsed    DocumentStatus = "parsed"
	DocumentStatusEnriched  DocumentStatus = "enriched"
	DocumentStatusDuplicate DocumentStatus = "duplicate"
	DocumentStatusExcluded  DocumentStatus = "excluded"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
// Enriched documents continue through embedding and clustering, but their
// document-level status does not advance further.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusEnriched, DocumentStatusDuplicate, DocumentStatusExcluded, DocumentStatusFailed:
		return true
	default:
		return false
	}
}

// ClusterRunStatus represents the state of a clustering run for a project.
// These values must match the database enum cluster_run_status.
type ClusterRunStatus string

const (
	ClusterRunStatusRunning   ClusterRunStatus = "running"
	ClusterRunStatusCompleted ClusterRunStatus = "completed"
	ClusterRunStatusSkipped   ClusterRunStatus = "skipped"
	ClusterRunStatusFailed    ClusterRunStatus = "failed"
)

// Document represents an ingested scholarly document within a project.
type Document struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	// ContentHash is the MD5 hex digest of the source file bytes. Nil until enrichment.
	ContentHash *string
	// DOI is the resolved digital object identifier, if any.
	DOI      *string
	Title    *string
	Authors  []string
	Venue    *string
	Year     *int
	Abstract *string
	// Metadata holds the full resolved metadata record as free-form JSON.
	Metadata map[string]interface{}
	Status   DocumentStatus
	// OriginalDocumentID links a duplicate document to the document it duplicates.
	OriginalDocumentID *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Section is a contiguous span of extracted text belonging to a document.
type Section struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	// Label is an optional structural label such as "methods" or "results".
	Label *string
	// Position orders sections within the document (page or sequence marker).
	Position int
	Text     string
	// Embedding is nil until the embedding stage completes. It is written at
	// most once per section; re-delivery overwrites with the same value.
	Embedding []float64
	CreatedAt time.Time
}

// Theme is a cluster of document sections representing a coherent research
// sub-topic within a project. Themes are regenerated wholesale per clustering
// run; the Generation field fences concurrent runs so stale writers never mix
// their themes into a newer set.
type Theme struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Generation uuid.UUID
	Label      string
	Provenance ThemeProvenance
	// Summary is an optional structured summary written by the external summary stage.
	Summary   map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ThemeProvenance records how a theme and its label were computed.
type ThemeProvenance struct {
	// Method names the algorithm that produced the theme.
	Method string `json:"method"`
	// Silhouette is the clustering quality score on the standardized data.
	Silhouette float64 `json:"silhouette"`
	// ClusterID is the index of the cluster within its generation.
	ClusterID int `json:"cluster_id"`
	// Size is the number of member sections.
	Size int `json:"size"`
	// AvgDistance is the mean Euclidean distance of members to the centroid.
	AvgDistance float64 `json:"avg_distance"`
	// IsMainTheme marks clusters with at least the main-theme member threshold.
	// Provenance metadata only; themes form no structural hierarchy.
	IsMainTheme bool `json:"is_main_theme"`
	// TopNgrams are the label candidates with their frequencies, most frequent first.
	TopNgrams []NgramCount `json:"top_ngrams,omitempty"`
	// KeyPhrases is the phrase and sentence evidence supporting the label.
	KeyPhrases []KeyPhrase `json:"key_phrases,omitempty"`
	// SectionsAnalyzed is the number of section texts the labeler consumed.
	SectionsAnalyzed int `json:"sections_analyzed,omitempty"`
	// MinNgramLength and MaxNgramLength are the labeler's n-gram window bounds.
	MinNgramLength int `json:"min_ngram_length,omitempty"`
	MaxNgramLength int `json:"max_ngram_length,omitempty"`
}

// NgramCount is an n-gram candidate phrase with its pooled frequency.
type NgramCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// Key phrase evidence types.
const (
	KeyPhraseTypeNgram    = "ngram"
	KeyPhraseTypeSentence = "sentence"
)

// KeyPhrase is a piece of evidence supporting a theme label: either a frequent
// n-gram or a representative sentence containing one.
type KeyPhrase struct {
	Phrase    string `json:"phrase"`
	Frequency int    `json:"frequency"`
	Type      string `json:"type"`
}

// ThemeAssignment is a weighted membership link between a document and a theme.
// Unique per (theme, document); upserted, never duplicated.
type ThemeAssignment struct {
	ThemeID    uuid.UUID
	DocumentID uuid.UUID
	// Weight is the membership strength in (0, 1], floored at 0.1.
	Weight    float64
	CreatedAt time.Time
}

// ClusterRun is the ledger entry for one clustering run of a project. It gives
// project-level visibility into clustering and labeling failures, which would
// otherwise leave a project silently stalled.
type ClusterRun struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Generation uuid.UUID
	Status     ClusterRunStatus
	// K is the chosen cluster count. Zero until the run selects one.
	K int
	// Silhouette is the quality score of the final partition.
	Silhouette float64
	// SectionCount is the number of embedded sections the run operated on.
	SectionCount int
	// Error holds the failure cause for failed runs, or the skip reason.
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewDocument creates a document in the ingested state.
func NewDocument(projectID uuid.UUID) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    DocumentStatusIngested,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
