package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/theme-discovery-service/internal/bus"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/observability"
)

// ClusterRunner runs one clustering pass for a project.
type ClusterRunner interface {
	Run(ctx context.Context, projectID uuid.UUID) domain.StageResult
}

// ThemeLabeler labels the themes of a project or a single theme.
type ThemeLabeler interface {
	RunProject(ctx context.Context, projectID uuid.UUID) domain.StageResult
	RunTheme(ctx context.Context, themeID uuid.UUID) domain.StageResult
}

// EmbedStage embeds pending sections for an embed-upsert trigger.
type EmbedStage interface {
	Handle(ctx context.Context, trigger domain.EmbedUpsertTrigger) domain.StageResult
}

// Handlers builds the per-topic trigger handlers wiring the coordinator and
// the engines to the bus. Malformed payloads are dropped: counted, logged at
// debug, and reported as a skip so the consumer never treats them as errors.
type Handlers struct {
	coordinator *Coordinator
	embedder    EmbedStage
	clusterer   ClusterRunner
	labeler     ThemeLabeler
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewHandlers creates the topic handler set.
func NewHandlers(
	coordinator *Coordinator,
	embedder EmbedStage,
	clusterer ClusterRunner,
	labeler ThemeLabeler,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		embedder:    embedder,
		clusterer:   clusterer,
		labeler:     labeler,
		metrics:     metrics,
		logger:      logger.With().Str("component", "pipeline_handlers").Logger(),
	}
}

// ByTopic returns the handler for each consumed topic.
func (h *Handlers) ByTopic() map[string]bus.Handler {
	return map[string]bus.Handler{
		domain.TopicEnrichDocument: h.handleEnrichDocument,
		domain.TopicEmbedUpsert:    h.handleEmbedUpsert,
		domain.TopicClusterRun:     h.handleClusterRun,
		domain.TopicLabelRun:       h.handleLabelRun,
		domain.TopicLabelTheme:     h.handleLabelTheme,
	}
}

func (h *Handlers) handleEnrichDocument(ctx context.Context, payload []byte) domain.StageResult {
	var trigger domain.EnrichDocumentTrigger
	if err := bus.Decode(payload, &trigger); err != nil {
		return h.drop(domain.TopicEnrichDocument, err)
	}
	return h.coordinator.EnrichDocument(ctx, trigger)
}

func (h *Handlers) handleEmbedUpsert(ctx context.Context, payload []byte) domain.StageResult {
	var trigger domain.EmbedUpsertTrigger
	if err := bus.Decode(payload, &trigger); err != nil {
		return h.drop(domain.TopicEmbedUpsert, err)
	}
	return h.embedder.Handle(ctx, trigger)
}

func (h *Handlers) handleClusterRun(ctx context.Context, payload []byte) domain.StageResult {
	var trigger domain.ClusterRunTrigger
	if err := bus.Decode(payload, &trigger); err != nil {
		return h.drop(domain.TopicClusterRun, err)
	}
	return h.clusterer.Run(ctx, trigger.ProjectID)
}

func (h *Handlers) handleLabelRun(ctx context.Context, payload []byte) domain.StageResult {
	var trigger domain.LabelRunTrigger
	if err := bus.Decode(payload, &trigger); err != nil {
		return h.drop(domain.TopicLabelRun, err)
	}
	if trigger.ProjectID == nil {
		return h.drop(domain.TopicLabelRun, errMissingProjectID)
	}
	return h.labeler.RunProject(ctx, *trigger.ProjectID)
}

func (h *Handlers) handleLabelTheme(ctx context.Context, payload []byte) domain.StageResult {
	var trigger domain.LabelRunTrigger
	if err := bus.Decode(payload, &trigger); err != nil {
		return h.drop(domain.TopicLabelTheme, err)
	}
	if trigger.ThemeID == nil {
		return h.drop(domain.TopicLabelTheme, errMissingThemeID)
	}
	return h.labeler.RunTheme(ctx, *trigger.ThemeID)
}

// drop records a malformed payload and reports it as a skip. Malformed input
// never surfaces an error to the transport.
func (h *Handlers) drop(topic string, err error) domain.StageResult {
	h.metrics.TriggersDropped.WithLabelValues(topic).Inc()
	h.logger.Debug().Err(err).Str("topic", topic).Msg("dropping malformed trigger payload")
	return domain.Skipped("malformed payload")
}

// Sentinel causes for payloads that decode but miss the field their topic
// requires.
var (
	errMissingProjectID = domain.NewValidationError("projectId", "required for label-run")
	errMissingThemeID   = domain.NewValidationError("themeId", "required for label-theme")
)
