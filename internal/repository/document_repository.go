package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// DocumentRepository handles document lifecycle persistence.
// Documents move through the ingested → parsed → enriched state machine and
// terminate as enriched, duplicate, excluded, or failed.
type DocumentRepository interface {
	// Create inserts a new document in its current state.
	// Returns domain.ErrInvalidInput if the document is nil or has no project.
	Create(ctx context.Context, doc *domain.Document) (*domain.Document, error)

	// GetByID retrieves a document by its UUID.
	// Returns domain.ErrNotFound if no matching document exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// UpdateEnrichment writes the enrichment outputs of a document: content
	// hash, resolved metadata fields, raw metadata record, and the new status.
	// Returns domain.ErrNotFound if the document does not exist.
	UpdateEnrichment(ctx context.Context, doc *domain.Document) error

	// UpdateStatus transitions a document to the given status.
	// Returns domain.ErrNotFound if the document does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus) error

	// MarkDuplicate transitions a document to the duplicate status and links it
	// to the original document it duplicates.
	// Returns domain.ErrNotFound if the document does not exist.
	MarkDuplicate(ctx context.Context, id uuid.UUID, originalID uuid.UUID) error

	// ListDedupCandidates retrieves the enriched documents of a project that a
	// new document must be compared against, excluding the document itself.
	// Ordering is deterministic: earliest created_at first, then id ascending,
	// so the first match is always the same document across retries.
	ListDedupCandidates(ctx context.Context, projectID, excludeID uuid.UUID) ([]*domain.Document, error)
}
