package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// Compile-time interface verification.
var _ DocumentRepository = (*PgDocumentRepository)(nil)

// PgDocumentRepository is a PostgreSQL implementation of DocumentRepository.
type PgDocumentRepository struct {
	db DBTX
}

// NewPgDocumentRepository creates a new PostgreSQL document repository.
func NewPgDocumentRepository(db DBTX) *PgDocumentRepository {
	return &PgDocumentRepository{db: db}
}

const documentColumns = `id, project_id, content_hash, doi, title, authors,
		venue, year, abstract, metadata, status, original_document_id,
		created_at, updated_at`

// Create inserts a new document in its current state.
func (r *PgDocumentRepository) Create(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.NewValidationError("document", "document cannot be nil")
	}
	if doc.ProjectID == uuid.Nil {
		return nil, domain.NewValidationError("project_id", "project ID is required")
	}

	authorsJSON, metadataJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return nil, err
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusIngested
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO documents (
			id, project_id, content_hash, doi, title, authors,
			venue, year, abstract, metadata, status, original_document_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13
		)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		doc.ID,
		doc.ProjectID,
		doc.ContentHash,
		doc.DOI,
		doc.Title,
		authorsJSON,
		doc.Venue,
		doc.Year,
		doc.Abstract,
		metadataJSON,
		doc.Status,
		doc.OriginalDocumentID,
		now,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

// GetByID retrieves a document by its UUID.
func (r *PgDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("document", id.String())
		}
		return nil, fmt.Errorf("failed to get document by ID: %w", err)
	}

	return doc, nil
}

// UpdateEnrichment writes the enrichment outputs of a document.
func (r *PgDocumentRepository) UpdateEnrichment(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.NewValidationError("document", "document cannot be nil")
	}

	authorsJSON, metadataJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents SET
			content_hash = $2,
			doi = $3,
			title = $4,
			authors = $5,
			venue = $6,
			year = $7,
			abstract = $8,
			metadata = $9,
			status = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		doc.ID,
		doc.ContentHash,
		doc.DOI,
		doc.Title,
		authorsJSON,
		doc.Venue,
		doc.Year,
		doc.Abstract,
		metadataJSON,
		doc.Status,
	).Scan(&doc.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("document", doc.ID.String())
		}
		return fmt.Errorf("failed to update document enrichment: %w", err)
	}

	return nil
}

// UpdateStatus transitions a document to the given status.
func (r *PgDocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus) error {
	query := `
		UPDATE documents SET status = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("document", id.String())
	}

	return nil
}

// MarkDuplicate transitions a document to the duplicate status and links the original.
func (r *PgDocumentRepository) MarkDuplicate(ctx context.Context, id uuid.UUID, originalID uuid.UUID) error {
	if id == originalID {
		return domain.NewValidationError("original_document_id", "document cannot duplicate itself")
	}

	query := `
		UPDATE documents SET
			status = $2,
			original_document_id = $3,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, domain.DocumentStatusDuplicate, originalID)
	if err != nil {
		return fmt.Errorf("failed to mark document duplicate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("document", id.String())
	}

	return nil
}

// ListDedupCandidates retrieves enriched documents of a project for duplicate comparison.
func (r *PgDocumentRepository) ListDedupCandidates(ctx context.Context, projectID, excludeID uuid.UUID) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE project_id = $1 AND id != $2 AND status = $3
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, projectID, excludeID, domain.DocumentStatusEnriched)
	if err != nil {
		return nil, fmt.Errorf("failed to list dedup candidates: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// marshalDocumentJSON encodes the jsonb columns of a document.
func marshalDocumentJSON(doc *domain.Document) (authorsJSON, metadataJSON []byte, err error) {
	if doc.Authors != nil {
		authorsJSON, err = json.Marshal(doc.Authors)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal authors: %w", err)
		}
	}
	if doc.Metadata != nil {
		metadataJSON, err = json.Marshal(doc.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}
	return authorsJSON, metadataJSON, nil
}

// scanDocument scans a document row in documentColumns order.
func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var authorsJSON, metadataJSON []byte

	err := row.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.ContentHash,
		&doc.DOI,
		&doc.Title,
		&authorsJSON,
		&doc.Venue,
		&doc.Year,
		&doc.Abstract,
		&metadataJSON,
		&doc.Status,
		&doc.OriginalDocumentID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &doc.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &doc, nil
}
