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
var _ ThemeRepository = (*PgThemeRepository)(nil)

// PgThemeRepository is a PostgreSQL implementation of ThemeRepository.
type PgThemeRepository struct {
	db DBTX
}

// NewPgThemeRepository creates a new PostgreSQL theme repository.
func NewPgThemeRepository(db DBTX) *PgThemeRepository {
	return &PgThemeRepository{db: db}
}

const themeColumns = `id, project_id, generation, label, provenance, summary, created_at, updated_at`

// InsertThemes inserts the themes of one generation.
func (r *PgThemeRepository) InsertThemes(ctx context.Context, themes []*domain.Theme) error {
	if len(themes) == 0 {
		return nil
	}

	query := `
		INSERT INTO themes (id, project_id, generation, label, provenance, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, theme := range themes {
		if theme.ID == uuid.Nil {
			theme.ID = uuid.New()
		}
		if theme.Generation == uuid.Nil {
			return domain.NewValidationError("generation", "theme generation is required")
		}

		provenanceJSON, err := json.Marshal(theme.Provenance)
		if err != nil {
			return fmt.Errorf("failed to marshal theme provenance: %w", err)
		}
		var summaryJSON []byte
		if theme.Summary != nil {
			summaryJSON, err = json.Marshal(theme.Summary)
			if err != nil {
				return fmt.Errorf("failed to marshal theme summary: %w", err)
			}
		}

		batch.Queue(query, theme.ID, theme.ProjectID, theme.Generation, theme.Label, provenanceJSON, summaryJSON, now)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range themes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert theme: %w", err)
		}
	}

	return nil
}

// UpsertAssignments writes document-to-theme membership links.
func (r *PgThemeRepository) UpsertAssignments(ctx context.Context, assignments []*domain.ThemeAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	query := `
		INSERT INTO theme_assignments (theme_id, document_id, weight, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (theme_id, document_id) DO UPDATE SET
			weight = EXCLUDED.weight`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, a := range assignments {
		batch.Queue(query, a.ThemeID, a.DocumentID, a.Weight, now)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range assignments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert theme assignment: %w", err)
		}
	}

	return nil
}

// DeleteGenerationsExcept removes all themes of a project except the given generation.
func (r *PgThemeRepository) DeleteGenerationsExcept(ctx context.Context, projectID, generation uuid.UUID) (int64, error) {
	query := `DELETE FROM themes WHERE project_id = $1 AND generation != $2`

	result, err := r.db.Exec(ctx, query, projectID, generation)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale theme generations: %w", err)
	}

	return result.RowsAffected(), nil
}

// GetByID retrieves a theme by its UUID.
func (r *PgThemeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Theme, error) {
	query := `
		SELECT ` + themeColumns + `
		FROM themes
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	theme, err := scanTheme(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("theme", id.String())
		}
		return nil, fmt.Errorf("failed to get theme by ID: %w", err)
	}

	return theme, nil
}

// ListByProject retrieves all themes of a project ordered by provenance cluster id.
func (r *PgThemeRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Theme, error) {
	query := `
		SELECT ` + themeColumns + `
		FROM themes
		WHERE project_id = $1
		ORDER BY (provenance->>'cluster_id')::int ASC, id ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes by project: %w", err)
	}
	defer rows.Close()

	var themes []*domain.Theme
	for rows.Next() {
		theme, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate themes: %w", err)
	}

	return themes, nil
}

// UpdateLabel overwrites a theme's label and provenance.
func (r *PgThemeRepository) UpdateLabel(ctx context.Context, themeID uuid.UUID, label string, provenance domain.ThemeProvenance) error {
	if label == "" {
		return domain.NewValidationError("label", "label cannot be empty")
	}

	provenanceJSON, err := json.Marshal(provenance)
	if err != nil {
		return fmt.Errorf("failed to marshal theme provenance: %w", err)
	}

	query := `
		UPDATE themes SET label = $2, provenance = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, themeID, label, provenanceJSON)
	if err != nil {
		return fmt.Errorf("failed to update theme label: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("theme", themeID.String())
	}

	return nil
}

// ListSectionTexts retrieves the section texts backing a theme.
func (r *PgThemeRepository) ListSectionTexts(ctx context.Context, themeID uuid.UUID, limit int) ([]string, error) {
	query := `
		SELECT s.text
		FROM theme_assignments ta
		INNER JOIN documents d ON d.id = ta.document_id
		INNER JOIN sections s ON s.document_id = d.id
		WHERE ta.theme_id = $1
		ORDER BY ta.weight DESC, d.created_at ASC, s.position ASC, s.id ASC`

	args := []interface{}{themeID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list theme section texts: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan section text: %w", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate section texts: %w", err)
	}

	return texts, nil
}

// scanTheme scans a theme row in themeColumns order.
func scanTheme(row pgx.Row) (*domain.Theme, error) {
	var theme domain.Theme
	var provenanceJSON, summaryJSON []byte

	err := row.Scan(
		&theme.ID,
		&theme.ProjectID,
		&theme.Generation,
		&theme.Label,
		&provenanceJSON,
		&summaryJSON,
		&theme.CreatedAt,
		&theme.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(provenanceJSON) > 0 {
		if err := json.Unmarshal(provenanceJSON, &theme.Provenance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal theme provenance: %w", err)
		}
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &theme.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal theme summary: %w", err)
		}
	}

	return &theme, nil
}
