// Package cluster groups a project's embedded sections into themes with
// deterministic k-means and replaces the project's theme set atomically.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/database"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/observability"
	"github.com/helixir/theme-discovery-service/internal/repository"
)

// TriggerPublisher publishes a next-stage trigger to the message bus.
type TriggerPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Engine runs the clustering stage for one project at a time.
//
// A run loads the project's embedded sections, searches for a good cluster
// count, fits the final partition on standardized data, and replaces the
// project's themes under a fresh generation UUID. A per-project advisory
// lock serializes concurrent runs; generation fencing guarantees a run that
// lost the race can never delete a newer theme set.
type Engine struct {
	db       *database.DB
	sections repository.SectionRepository
	themes   repository.ThemeRepository
	runs     repository.ClusterRunRepository
	bus      TriggerPublisher
	metrics  *observability.Metrics
	logger   zerolog.Logger
	cfg      config.ClusteringConfig
}

// NewEngine creates a clustering engine.
func NewEngine(
	db *database.DB,
	sections repository.SectionRepository,
	themes repository.ThemeRepository,
	runs repository.ClusterRunRepository,
	bus TriggerPublisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg config.ClusteringConfig,
) *Engine {
	return &Engine{
		db:       db,
		sections: sections,
		themes:   themes,
		runs:     runs,
		bus:      bus,
		metrics:  metrics,
		logger:   logger.With().Str("component", "cluster_engine").Logger(),
		cfg:      cfg,
	}
}

// Run executes one clustering run for the project. Re-delivery of the same
// trigger is safe: the run recomputes from current sections and replaces the
// previous theme set wholesale.
func (e *Engine) Run(ctx context.Context, projectID uuid.UUID) domain.StageResult {
	logger := observability.WithProjectContext(e.logger, projectID.String())
	start := time.Now()

	lockKey := database.ProjectLockKey(projectID)
	acquired, err := e.db.TryAdvisoryLock(ctx, lockKey)
	if err != nil {
		return e.failed(fmt.Errorf("failed to acquire project lock: %w", err))
	}
	if !acquired {
		logger.Info().Msg("clustering already running for project, skipping")
		return e.skipped("clustering already in progress")
	}
	defer func() {
		if err := e.db.ReleaseAdvisoryLock(context.WithoutCancel(ctx), lockKey); err != nil {
			logger.Error().Err(err).Msg("failed to release project lock")
		}
	}()

	sections, err := e.sections.ListEmbeddedByProject(ctx, projectID, e.cfg.MaxSections)
	if err != nil {
		return e.failed(fmt.Errorf("failed to load embedded sections: %w", err))
	}

	n := len(sections)
	generation := uuid.New()
	run := &domain.ClusterRun{
		ProjectID:    projectID,
		Generation:   generation,
		SectionCount: n,
	}

	if n < e.cfg.MinSections {
		reason := fmt.Sprintf("only %d embedded sections, need at least %d", n, e.cfg.MinSections)
		if err := e.recordSkip(ctx, run, reason); err != nil {
			logger.Error().Err(err).Msg("failed to record skipped cluster run")
		}
		logger.Info().Int("sections", n).Msg("not enough embedded sections, skipping clustering")
		return e.skipped(reason)
	}

	if err := e.runs.Create(ctx, run); err != nil {
		return e.failed(fmt.Errorf("failed to record cluster run: %w", err))
	}

	data, err := embeddingMatrix(sections)
	if err != nil {
		e.finishRun(ctx, logger, run, domain.ClusterRunStatusFailed, err.Error())
		return e.failed(err)
	}

	k := e.chooseK(data, n)
	scaled := standardize(data)
	final := runKMeans(scaled, k, e.cfg.Seed)
	score := silhouetteScore(scaled, final.labels, k)

	themes, assignments := e.buildThemes(projectID, generation, sections, scaled, final, score)

	err = e.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		txThemes := repository.NewPgThemeRepository(tx)
		if err := txThemes.InsertThemes(ctx, themes); err != nil {
			return err
		}
		if err := txThemes.UpsertAssignments(ctx, assignments); err != nil {
			return err
		}
		_, err := txThemes.DeleteGenerationsExcept(ctx, projectID, generation)
		return err
	})
	if err != nil {
		e.finishRun(ctx, logger, run, domain.ClusterRunStatusFailed, err.Error())
		return e.failed(fmt.Errorf("failed to persist themes: %w", err))
	}

	run.K = k
	run.Silhouette = score
	e.finishRun(ctx, logger, run, domain.ClusterRunStatusCompleted, "")

	e.metrics.ClusterRuns.WithLabelValues(string(domain.ClusterRunStatusCompleted)).Inc()
	e.metrics.ClusterRunDuration.Observe(time.Since(start).Seconds())
	e.metrics.ClusterK.Observe(float64(k))
	e.metrics.ThemesCreated.Add(float64(len(themes)))

	logger.Info().
		Int("sections", n).
		Int("k", k).
		Float64("silhouette", score).
		Str("generation", generation.String()).
		Dur("duration", time.Since(start)).
		Msg("clustering run completed")

	trigger := domain.LabelRunTrigger{ProjectID: &projectID}
	if err := e.bus.Publish(ctx, domain.TopicLabelRun, trigger); err != nil {
		return e.failed(fmt.Errorf("failed to publish label-run trigger: %w", err))
	}
	e.metrics.TriggersPublished.WithLabelValues(domain.TopicLabelRun).Inc()

	return domain.Completed()
}

// chooseK selects the cluster count. The search range is
// [MinClusters, min(MaxClusters, n/10)], further clamped to n-1. When the
// upper bound falls below the minimum there is nothing to search and the
// minimum is used directly. Candidates are scored by silhouette on the raw
// embeddings; ties keep the smaller k.
func (e *Engine) chooseK(data [][]float64, n int) int {
	upper := n / 10
	if e.cfg.MaxClusters < upper {
		upper = e.cfg.MaxClusters
	}
	if upper > n-1 {
		upper = n - 1
	}
	if upper < e.cfg.MinClusters {
		return e.cfg.MinClusters
	}

	bestK := e.cfg.MinClusters
	bestScore := -1.0
	for k := e.cfg.MinClusters; k <= upper; k++ {
		result := runKMeans(data, k, e.cfg.Seed)
		score := silhouetteScore(data, result.labels, k)
		if score > bestScore {
			bestK = k
			bestScore = score
		}
	}

	return bestK
}

// buildThemes constructs the theme rows and document assignments of one
// generation from the final partition. Only non-empty clusters produce a
// theme: Lloyd iteration can strand a centroid without members, and a
// member-less theme would persist with nothing to label or assign.
//
// Assignment weight is max(WeightFloor, 1 - d/d_max), where d is the
// section's distance to its theme centroid and d_max is the largest distance
// of any section in the project to that same centroid. When several sections
// of a document land in the same theme, the document keeps the maximum
// weight among them.
func (e *Engine) buildThemes(
	projectID, generation uuid.UUID,
	sections []*domain.Section,
	scaled [][]float64,
	final kmeansResult,
	score float64,
) ([]*domain.Theme, []*domain.ThemeAssignment) {
	k := len(final.centroids)

	// Per-cluster member stats and the global max distance to each centroid.
	sizes := make([]int, k)
	sumDist := make([]float64, k)
	maxDist := make([]float64, k)
	dist := make([]float64, len(sections))
	for i := range sections {
		c := final.labels[i]
		d := euclideanDistance(scaled[i], final.centroids[c])
		dist[i] = d
		sizes[c]++
		sumDist[c] += d
		for centroid := 0; centroid < k; centroid++ {
			if dc := euclideanDistance(scaled[i], final.centroids[centroid]); dc > maxDist[centroid] {
				maxDist[centroid] = dc
			}
		}
	}

	themes := make([]*domain.Theme, 0, k)
	themeByCluster := make([]*domain.Theme, k)
	for c := 0; c < k; c++ {
		if sizes[c] == 0 {
			continue
		}
		theme := &domain.Theme{
			ID:         uuid.New(),
			ProjectID:  projectID,
			Generation: generation,
			Label:      fmt.Sprintf("Theme %d", len(themes)+1),
			Provenance: domain.ThemeProvenance{
				Method:      "kmeans",
				Silhouette:  score,
				ClusterID:   c,
				Size:        sizes[c],
				AvgDistance: sumDist[c] / float64(sizes[c]),
				IsMainTheme: sizes[c] >= e.cfg.MainThemeThreshold,
			},
		}
		themeByCluster[c] = theme
		themes = append(themes, theme)
	}

	// Aggregate the strongest section weight per (theme, document).
	weights := make(map[uuid.UUID]map[uuid.UUID]float64, k)
	for i, section := range sections {
		c := final.labels[i]
		weight := 1.0
		if maxDist[c] > 0 {
			weight = 1.0 - dist[i]/maxDist[c]
		}
		if weight < e.cfg.WeightFloor {
			weight = e.cfg.WeightFloor
		}

		themeID := themeByCluster[c].ID
		if weights[themeID] == nil {
			weights[themeID] = make(map[uuid.UUID]float64)
		}
		if weight > weights[themeID][section.DocumentID] {
			weights[themeID][section.DocumentID] = weight
		}
	}

	var assignments []*domain.ThemeAssignment
	for _, theme := range themes {
		for docID, weight := range weights[theme.ID] {
			assignments = append(assignments, &domain.ThemeAssignment{
				ThemeID:    theme.ID,
				DocumentID: docID,
				Weight:     weight,
			})
		}
	}

	return themes, assignments
}

// recordSkip writes a skipped ledger entry for a run that never started.
func (e *Engine) recordSkip(ctx context.Context, run *domain.ClusterRun, reason string) error {
	run.Status = domain.ClusterRunStatusSkipped
	run.Error = &reason
	if err := e.runs.Create(ctx, run); err != nil {
		return err
	}
	return e.runs.Finish(ctx, run)
}

// finishRun records a run's terminal state on the ledger; ledger failures are
// logged but never mask the run outcome.
func (e *Engine) finishRun(ctx context.Context, logger zerolog.Logger, run *domain.ClusterRun, status domain.ClusterRunStatus, errText string) {
	run.Status = status
	if errText != "" {
		run.Error = &errText
	}
	if err := e.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		logger.Error().Err(err).Str("status", string(status)).Msg("failed to record cluster run outcome")
	}
}

func (e *Engine) skipped(reason string) domain.StageResult {
	e.metrics.ClusterRuns.WithLabelValues(string(domain.ClusterRunStatusSkipped)).Inc()
	return domain.Skipped(reason)
}

func (e *Engine) failed(err error) domain.StageResult {
	e.metrics.ClusterRuns.WithLabelValues(string(domain.ClusterRunStatusFailed)).Inc()
	return domain.Failed(err)
}

// embeddingMatrix extracts and validates the embedding rows of sections.
// All rows must share one dimensionality.
func embeddingMatrix(sections []*domain.Section) ([][]float64, error) {
	data := embeddingsOf(sections)
	dims := len(data[0])
	for i, row := range data {
		if len(row) != dims {
			return nil, fmt.Errorf("inconsistent embedding dimensions: section %s has %d, expected %d",
				sections[i].ID, len(row), dims)
		}
	}
	return data, nil
}

func embeddingsOf(sections []*domain.Section) [][]float64 {
	data := make([][]float64, len(sections))
	for i, s := range sections {
		data[i] = s.Embedding
	}
	return data
}
