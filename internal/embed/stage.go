package embed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/observability"
	"github.com/helixir/theme-discovery-service/internal/repository"
)

// TriggerPublisher publishes a next-stage trigger to the message bus.
type TriggerPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Stage embeds pending sections in response to embed-upsert triggers.
//
// A trigger is scoped to a single document or to a whole project. Embedding
// writes are idempotent: re-delivery re-embeds the sections that still lack a
// vector and overwrites nothing else. Only project-scoped triggers hand off to
// clustering, and only once every section of the project is embedded.
type Stage struct {
	sections repository.SectionRepository
	embedder Embedder
	bus      TriggerPublisher
	metrics  *observability.Metrics
	logger   zerolog.Logger
	cfg      config.EmbeddingConfig
}

// NewStage creates an embedding stage.
func NewStage(
	sections repository.SectionRepository,
	embedder Embedder,
	bus TriggerPublisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg config.EmbeddingConfig,
) *Stage {
	return &Stage{
		sections: sections,
		embedder: embedder,
		bus:      bus,
		metrics:  metrics,
		logger:   observability.WithStageContext(logger.With().Str("component", "embed_stage").Logger(), "embed", domain.TopicEmbedUpsert),
		cfg:      cfg,
	}
}

// Handle processes one embed-upsert trigger.
func (s *Stage) Handle(ctx context.Context, trigger domain.EmbedUpsertTrigger) domain.StageResult {
	switch {
	case trigger.ProjectID != nil && trigger.DocumentID != nil:
		return domain.Skipped("trigger sets both project and document scope")
	case trigger.ProjectID != nil:
		return s.handleProject(ctx, *trigger.ProjectID)
	case trigger.DocumentID != nil:
		return s.handleDocument(ctx, *trigger.DocumentID)
	default:
		return domain.Skipped("trigger sets no scope")
	}
}

// handleDocument embeds the pending sections of one document. Document-scoped
// triggers never start clustering; that is the project-scoped trigger's job.
func (s *Stage) handleDocument(ctx context.Context, documentID uuid.UUID) domain.StageResult {
	logger := s.logger.With().Stringer("document_id", documentID).Logger()

	pending, err := s.sections.ListUnembeddedByDocument(ctx, documentID)
	if err != nil {
		return domain.Failed(fmt.Errorf("failed to list pending sections: %w", err))
	}
	if len(pending) == 0 {
		return domain.Skipped("no sections pending embedding")
	}

	embedded, err := s.embedSections(ctx, pending)
	if err != nil {
		return domain.Failed(err)
	}

	logger.Info().Int("sections", embedded).Msg("document sections embedded")
	return domain.Completed()
}

// handleProject embeds every pending section of a project and publishes a
// cluster-run trigger once none remain.
func (s *Stage) handleProject(ctx context.Context, projectID uuid.UUID) domain.StageResult {
	logger := s.logger.With().Stringer("project_id", projectID).Logger()

	pending, err := s.sections.ListUnembeddedByProject(ctx, projectID)
	if err != nil {
		return domain.Failed(fmt.Errorf("failed to list pending sections: %w", err))
	}

	embedded := 0
	if len(pending) > 0 {
		embedded, err = s.embedSections(ctx, pending)
		if err != nil {
			return domain.Failed(err)
		}
	}

	// Re-count instead of trusting the listing: enrichment may have added
	// sections while this handler was embedding.
	remaining, err := s.sections.CountUnembeddedByProject(ctx, projectID)
	if err != nil {
		return domain.Failed(fmt.Errorf("failed to count pending sections: %w", err))
	}
	if remaining > 0 {
		logger.Info().
			Int("sections", embedded).
			Int64("remaining", remaining).
			Msg("project embedding incomplete, clustering deferred")
		return domain.Completed()
	}

	trigger := domain.ClusterRunTrigger{ProjectID: projectID}
	if err := s.bus.Publish(ctx, domain.TopicClusterRun, trigger); err != nil {
		return domain.Failed(fmt.Errorf("failed to publish cluster-run trigger: %w", err))
	}
	s.metrics.TriggersPublished.WithLabelValues(domain.TopicClusterRun).Inc()

	logger.Info().Int("sections", embedded).Msg("project embedded, clustering triggered")
	return domain.Completed()
}

// embedSections embeds sections in batches and persists each vector under its
// section id. Returns the number of embeddings written.
func (s *Stage) embedSections(ctx context.Context, sections []*domain.Section) (int, error) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	written := 0
	for start := 0; start < len(sections); start += batchSize {
		end := start + batchSize
		if end > len(sections) {
			end = len(sections)
		}
		batch := sections[start:end]

		texts := make([]string, len(batch))
		for i, section := range batch {
			texts[i] = truncate(section.Text, s.cfg.MaxChars)
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embedding batch failed: %w", err)
		}

		for i, section := range batch {
			if err := s.sections.UpdateEmbedding(ctx, section.ID, vectors[i]); err != nil {
				return written, fmt.Errorf("failed to store embedding for section %s: %w", section.ID, err)
			}
			written++
			s.metrics.SectionsEmbedded.Inc()
		}
	}

	return written, nil
}

// truncate bounds text to maxChars runes. Zero or negative means no limit.
func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
