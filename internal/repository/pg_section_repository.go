package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// Compile-time interface verification.
var _ SectionRepository = (*PgSectionRepository)(nil)

// PgSectionRepository is a PostgreSQL implementation of SectionRepository.
type PgSectionRepository struct {
	db DBTX
}

// NewPgSectionRepository creates a new PostgreSQL section repository.
func NewPgSectionRepository(db DBTX) *PgSectionRepository {
	return &PgSectionRepository{db: db}
}

const sectionColumns = `id, document_id, label, position, text, embedding, created_at`

// UpsertBatch inserts or updates sections by id, preserving existing embeddings.
func (r *PgSectionRepository) UpsertBatch(ctx context.Context, sections []*domain.Section) error {
	if len(sections) == 0 {
		return nil
	}

	query := `
		INSERT INTO sections (id, document_id, label, position, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			position = EXCLUDED.position,
			text = EXCLUDED.text`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, s := range sections {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		batch.Queue(query, s.ID, s.DocumentID, s.Label, s.Position, s.Text, s.CreatedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range sections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert section: %w", err)
		}
	}

	return nil
}

// ListByDocument retrieves all sections of a document ordered by position.
func (r *PgSectionRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Section, error) {
	query := `
		SELECT ` + sectionColumns + `
		FROM sections
		WHERE document_id = $1
		ORDER BY position ASC, id ASC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections by document: %w", err)
	}
	defer rows.Close()

	return collectSections(rows)
}

// ListUnembeddedByDocument retrieves embedding-less sections of a document.
func (r *PgSectionRepository) ListUnembeddedByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Section, error) {
	query := `
		SELECT ` + sectionColumns + `
		FROM sections
		WHERE document_id = $1 AND embedding IS NULL
		ORDER BY position ASC, id ASC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded sections: %w", err)
	}
	defer rows.Close()

	return collectSections(rows)
}

// ListUnembeddedByProject retrieves embedding-less sections of a project's enriched documents.
func (r *PgSectionRepository) ListUnembeddedByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Section, error) {
	query := `
		SELECT s.id, s.document_id, s.label, s.position, s.text, s.embedding, s.created_at
		FROM sections s
		INNER JOIN documents d ON d.id = s.document_id
		WHERE d.project_id = $1 AND d.status = $2 AND s.embedding IS NULL
		ORDER BY d.created_at ASC, s.position ASC, s.id ASC`

	rows, err := r.db.Query(ctx, query, projectID, domain.DocumentStatusEnriched)
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded sections by project: %w", err)
	}
	defer rows.Close()

	return collectSections(rows)
}

// CountUnembeddedByProject counts embedding-less sections of a project's enriched documents.
func (r *PgSectionRepository) CountUnembeddedByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM sections s
		INNER JOIN documents d ON d.id = s.document_id
		WHERE d.project_id = $1 AND d.status = $2 AND s.embedding IS NULL`

	var count int64
	err := r.db.QueryRow(ctx, query, projectID, domain.DocumentStatusEnriched).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unembedded sections: %w", err)
	}

	return count, nil
}

// UpdateEmbedding writes a section's embedding vector.
func (r *PgSectionRepository) UpdateEmbedding(ctx context.Context, sectionID uuid.UUID, embedding []float64) error {
	if len(embedding) == 0 {
		return domain.NewValidationError("embedding", "embedding cannot be empty")
	}

	query := `UPDATE sections SET embedding = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, sectionID, embedding)
	if err != nil {
		return fmt.Errorf("failed to update section embedding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("section", sectionID.String())
	}

	return nil
}

// ListEmbeddedByProject retrieves embedded sections of a project's enriched documents.
func (r *PgSectionRepository) ListEmbeddedByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.Section, error) {
	query := `
		SELECT s.id, s.document_id, s.label, s.position, s.text, s.embedding, s.created_at
		FROM sections s
		INNER JOIN documents d ON d.id = s.document_id
		WHERE d.project_id = $1 AND d.status = $2 AND s.embedding IS NOT NULL
		ORDER BY d.created_at ASC, s.position ASC, s.id ASC`

	args := []interface{}{projectID, domain.DocumentStatusEnriched}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded sections: %w", err)
	}
	defer rows.Close()

	return collectSections(rows)
}

// collectSections scans all rows in sectionColumns order.
func collectSections(rows pgx.Rows) ([]*domain.Section, error) {
	var sections []*domain.Section
	for rows.Next() {
		var s domain.Section
		err := rows.Scan(&s.ID, &s.DocumentID, &s.Label, &s.Position, &s.Text, &s.Embedding, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}

	return sections, nil
}
