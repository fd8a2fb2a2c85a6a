package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// SectionRepository handles extracted section text and embedding persistence.
type SectionRepository interface {
	// UpsertBatch inserts or updates sections by id. Text and position are
	// overwritten on conflict; existing embeddings are preserved.
	// Returns nil if the input slice is empty.
	UpsertBatch(ctx context.Context, sections []*domain.Section) error

	// ListByDocument retrieves all sections of a document ordered by position.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Section, error)

	// ListUnembeddedByDocument retrieves sections of a document that have no
	// embedding yet, ordered by position.
	ListUnembeddedByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Section, error)

	// ListUnembeddedByProject retrieves all sections of enriched documents in a
	// project that have no embedding yet, ordered by document creation then
	// section position.
	ListUnembeddedByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Section, error)

	// CountUnembeddedByProject counts sections of enriched documents in a
	// project that still lack an embedding.
	CountUnembeddedByProject(ctx context.Context, projectID uuid.UUID) (int64, error)

	// UpdateEmbedding writes a section's embedding vector. Re-delivery of the
	// same section overwrites the vector, so the write is idempotent.
	// Returns domain.ErrNotFound if the section does not exist.
	UpdateEmbedding(ctx context.Context, sectionID uuid.UUID, embedding []float64) error

	// ListEmbeddedByProject retrieves sections of enriched documents in a
	// project that carry an embedding, up to limit rows. Ordering is
	// deterministic: document creation time, then section position, then id.
	// A limit of zero or less means no limit.
	ListEmbeddedByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.Section, error)
}
