package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// ThemeRepository handles theme and theme assignment persistence.
//
// Theme sets are regenerated wholesale per clustering run and fenced by a
// generation UUID: the run inserts its themes under a fresh generation, then
// deletes every other generation of the project. A stale run that lost the
// per-project advisory lock race never deletes a newer generation's rows.
type ThemeRepository interface {
	// InsertThemes inserts the themes of one generation.
	// Returns nil if the input slice is empty.
	InsertThemes(ctx context.Context, themes []*domain.Theme) error

	// UpsertAssignments writes document-to-theme membership links. Conflicts on
	// (theme_id, document_id) update the weight, so assignment writes are
	// idempotent.
	// Returns nil if the input slice is empty.
	UpsertAssignments(ctx context.Context, assignments []*domain.ThemeAssignment) error

	// DeleteGenerationsExcept removes all themes of a project except those of
	// the given generation. Assignments cascade with their themes.
	// Returns the number of themes deleted.
	DeleteGenerationsExcept(ctx context.Context, projectID, generation uuid.UUID) (int64, error)

	// GetByID retrieves a theme by its UUID.
	// Returns domain.ErrNotFound if no matching theme exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Theme, error)

	// ListByProject retrieves all themes of a project ordered by the cluster id
	// recorded in their provenance.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Theme, error)

	// UpdateLabel overwrites a theme's label and provenance. Labeling always
	// replaces earlier labeling output, never merges with it.
	// Returns domain.ErrNotFound if the theme does not exist.
	UpdateLabel(ctx context.Context, themeID uuid.UUID, label string, provenance domain.ThemeProvenance) error

	// ListSectionTexts retrieves the section texts backing a theme, joined
	// through its document assignments, strongest assignment first, then
	// document creation time and section position. A limit of zero or less
	// means no limit.
	ListSectionTexts(ctx context.Context, themeID uuid.UUID, limit int) ([]string, error)
}

// ClusterRunRepository handles the per-project clustering run ledger.
// The ledger surfaces clustering and labeling failures at project level,
// which document statuses alone would leave invisible.
type ClusterRunRepository interface {
	// Create inserts a new run row, normally in the running state.
	Create(ctx context.Context, run *domain.ClusterRun) error

	// Finish records a run's terminal state, results, and optional error text.
	// Returns domain.ErrNotFound if the run does not exist.
	Finish(ctx context.Context, run *domain.ClusterRun) error

	// GetLatestByProject retrieves the most recently started run of a project.
	// Returns domain.ErrNotFound if the project has no runs.
	GetLatestByProject(ctx context.Context, projectID uuid.UUID) (*domain.ClusterRun, error)
}
