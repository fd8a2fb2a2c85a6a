// Package pipeline owns the document lifecycle state machine. The Coordinator
// consumes enrich-document triggers, advances document status, and routes the
// project-level clustering and labeling triggers to their engines.
package pipeline

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint for dedup, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/helixir/theme-discovery-service/internal/dedup"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/metadata"
	"github.com/helixir/theme-discovery-service/internal/observability"
	"github.com/helixir/theme-discovery-service/internal/repository"
)

// TriggerPublisher publishes a next-stage trigger to the message bus.
type TriggerPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Coordinator runs the enrichment stage: content hashing, metadata resolution,
// inclusion filtering, deduplication, and the resulting status transition.
//
// Enrichment is idempotent through the status check: a re-delivered trigger
// for a document already in a terminal state is a no-op.
type Coordinator struct {
	documents repository.DocumentRepository
	sections  repository.SectionRepository
	resolver  metadata.Resolver
	matcher   *dedup.Matcher
	bus       TriggerPublisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewCoordinator creates a pipeline coordinator.
func NewCoordinator(
	documents repository.DocumentRepository,
	sections repository.SectionRepository,
	resolver metadata.Resolver,
	matcher *dedup.Matcher,
	bus TriggerPublisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		documents: documents,
		sections:  sections,
		resolver:  resolver,
		matcher:   matcher,
		bus:       bus,
		metrics:   metrics,
		logger:    logger.With().Str("component", "pipeline_coordinator").Logger(),
	}
}

// EnrichDocument processes one enrich-document trigger.
func (c *Coordinator) EnrichDocument(ctx context.Context, trigger domain.EnrichDocumentTrigger) domain.StageResult {
	doc, err := c.documents.GetByID(ctx, trigger.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Skipped("document not found")
		}
		return domain.Failed(fmt.Errorf("failed to load document: %w", err))
	}

	logger := observability.WithDocumentContext(c.logger, doc.ID.String(), doc.ProjectID.String())
	if triggerID := observability.TriggerIDFromContext(ctx); triggerID != "" {
		logger = logger.With().Str("trigger_id", triggerID).Logger()
	}

	if doc.Status.IsTerminal() {
		logger.Debug().Str("status", string(doc.Status)).Msg("document already in terminal state, skipping")
		return domain.Skipped("document in terminal state " + string(doc.Status))
	}

	hash, err := hashFile(trigger.FilePath)
	if err != nil {
		return c.failDocument(ctx, logger, doc, fmt.Errorf("failed to hash source file: %w", err))
	}
	doc.ContentHash = &hash

	sections, err := c.sections.ListByDocument(ctx, doc.ID)
	if err != nil {
		return c.failDocument(ctx, logger, doc, fmt.Errorf("failed to load sections: %w", err))
	}

	doi := extractDOI(doc, sections)
	title := ""
	if doc.Title != nil {
		title = *doc.Title
	}

	record, err := c.resolver.Resolve(ctx, doi, title)
	if err != nil {
		// A registry miss is not a processing failure. The document keeps
		// a filename-derived title and moves on; failed is reserved for
		// genuine errors.
		logger.Debug().Err(err).Msg("metadata lookup missed, falling back to filename")
		record = metadata.FromFilename(trigger.FilePath)
	}
	applyRecord(doc, record)

	if ok, reason := applyFilters(trigger.Filters, doc); !ok {
		if err := c.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusExcluded); err != nil {
			return domain.Failed(fmt.Errorf("failed to mark document excluded: %w", err))
		}
		c.metrics.DocumentsExcluded.Inc()
		logger.Info().Str("reason", reason).Msg("document excluded by inclusion filters")
		return domain.Completed()
	}

	candidates, err := c.documents.ListDedupCandidates(ctx, doc.ProjectID, doc.ID)
	if err != nil {
		return c.failDocument(ctx, logger, doc, fmt.Errorf("failed to load dedup candidates: %w", err))
	}
	if original, reason := c.matcher.Match(doc, candidates); original != nil {
		if err := c.documents.MarkDuplicate(ctx, doc.ID, original.ID); err != nil {
			return domain.Failed(fmt.Errorf("failed to mark document duplicate: %w", err))
		}
		c.metrics.DocumentsDuplicate.Inc()
		logger.Info().
			Stringer("original_document_id", original.ID).
			Str("match_reason", string(reason)).
			Msg("document is a duplicate")
		return domain.Completed()
	}

	doc.Status = domain.DocumentStatusEnriched
	if err := c.documents.UpdateEnrichment(ctx, doc); err != nil {
		return domain.Failed(fmt.Errorf("failed to store enrichment: %w", err))
	}
	c.metrics.DocumentsEnriched.Inc()

	next := domain.EmbedUpsertTrigger{DocumentID: &doc.ID}
	if err := c.bus.Publish(ctx, domain.TopicEmbedUpsert, next); err != nil {
		return domain.Failed(fmt.Errorf("failed to publish embed-upsert trigger: %w", err))
	}
	c.metrics.TriggersPublished.WithLabelValues(domain.TopicEmbedUpsert).Inc()

	logger.Info().Str("source", record.Source).Msg("document enriched")
	return domain.Completed()
}

// failDocument records the terminal failed status and returns the failure.
// The status write is best-effort: its own error is logged, not returned, so
// the original cause is what surfaces.
func (c *Coordinator) failDocument(ctx context.Context, logger zerolog.Logger, doc *domain.Document, cause error) domain.StageResult {
	if err := c.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed); err != nil {
		logger.Error().Err(err).Msg("failed to record failed document status")
	}
	c.metrics.DocumentsFailed.Inc()
	logger.Error().Err(cause).Msg("document enrichment failed")
	return domain.Failed(cause)
}

// hashFile returns the MD5 hex digest of the file contents.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}

// extractDOI returns the document's DOI if already known, otherwise the first
// DOI-shaped identifier found in the section texts, in section order.
func extractDOI(doc *domain.Document, sections []*domain.Section) string {
	if doc.DOI != nil && *doc.DOI != "" {
		return *doc.DOI
	}
	for _, section := range sections {
		if doi := metadata.ExtractDOI(section.Text); doi != "" {
			return doi
		}
	}
	return ""
}

// applyRecord copies resolved metadata onto the document. Resolved values win
// over parsed ones; absent values leave the parsed fields untouched.
func applyRecord(doc *domain.Document, record *metadata.Record) {
	if record.DOI != "" {
		doi := record.DOI
		doc.DOI = &doi
	}
	if record.Title != "" {
		title := record.Title
		doc.Title = &title
	}
	if len(record.Authors) > 0 {
		doc.Authors = record.Authors
	}
	if record.Venue != "" {
		venue := record.Venue
		doc.Venue = &venue
	}
	if record.Year != 0 {
		year := record.Year
		doc.Year = &year
	}
	if record.Abstract != "" {
		abstract := record.Abstract
		doc.Abstract = &abstract
	}

	meta := map[string]interface{}{"source": record.Source}
	if record.Raw != nil {
		meta["raw"] = record.Raw
	}
	doc.Metadata = meta
}
