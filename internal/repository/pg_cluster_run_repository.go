package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// Compile-time interface verification.
var _ ClusterRunRepository = (*PgClusterRunRepository)(nil)

// PgClusterRunRepository is a PostgreSQL implementation of ClusterRunRepository.
type PgClusterRunRepository struct {
	db DBTX
}

// NewPgClusterRunRepository creates a new PostgreSQL cluster run repository.
func NewPgClusterRunRepository(db DBTX) *PgClusterRunRepository {
	return &PgClusterRunRepository{db: db}
}

const clusterRunColumns = `id, project_id, generation, status, k, silhouette,
		section_count, error, started_at, finished_at`

// Create inserts a new run row.
func (r *PgClusterRunRepository) Create(ctx context.Context, run *domain.ClusterRun) error {
	if run == nil {
		return domain.NewValidationError("run", "run cannot be nil")
	}
	if run.ProjectID == uuid.Nil {
		return domain.NewValidationError("project_id", "project ID is required")
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = domain.ClusterRunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO cluster_runs (id, project_id, generation, status, k, silhouette, section_count, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		run.ID,
		run.ProjectID,
		run.Generation,
		run.Status,
		run.K,
		run.Silhouette,
		run.SectionCount,
		run.Error,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create cluster run: %w", err)
	}

	return nil
}

// Finish records a run's terminal state and results.
func (r *PgClusterRunRepository) Finish(ctx context.Context, run *domain.ClusterRun) error {
	if run == nil {
		return domain.NewValidationError("run", "run cannot be nil")
	}

	query := `
		UPDATE cluster_runs SET
			status = $2,
			k = $3,
			silhouette = $4,
			section_count = $5,
			error = $6,
			finished_at = NOW()
		WHERE id = $1
		RETURNING finished_at`

	err := r.db.QueryRow(ctx, query,
		run.ID,
		run.Status,
		run.K,
		run.Silhouette,
		run.SectionCount,
		run.Error,
	).Scan(&run.FinishedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("cluster run", run.ID.String())
		}
		return fmt.Errorf("failed to finish cluster run: %w", err)
	}

	return nil
}

// GetLatestByProject retrieves the most recently started run of a project.
func (r *PgClusterRunRepository) GetLatestByProject(ctx context.Context, projectID uuid.UUID) (*domain.ClusterRun, error) {
	query := `
		SELECT ` + clusterRunColumns + `
		FROM cluster_runs
		WHERE project_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT 1`

	var run domain.ClusterRun
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&run.ID,
		&run.ProjectID,
		&run.Generation,
		&run.Status,
		&run.K,
		&run.Silhouette,
		&run.SectionCount,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("cluster run", projectID.String())
		}
		return nil, fmt.Errorf("failed to get latest cluster run: %w", err)
	}

	return &run, nil
}
