// Package label derives human-readable theme labels and supporting phrase
// evidence from the pooled text of each theme's member sections.
package label

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/observability"
	"github.com/helixir/theme-discovery-service/internal/repository"
)

// Evidence selection constants.
const (
	// phraseEvidenceCount is how many top n-grams become phrase evidence.
	phraseEvidenceCount = 5
	// sentenceNgramCount is how many top n-grams qualify a sentence as evidence.
	sentenceNgramCount = 3
	// sentenceSourceTexts is how many member texts are scanned for sentences.
	sentenceSourceTexts = 3
	// maxEvidence caps the total evidence list per theme.
	maxEvidence = 8
	// minSentenceLength and maxSentenceLength bound evidence sentences.
	minSentenceLength = 20
	maxSentenceLength = 200
)

// TriggerPublisher publishes a next-stage trigger to the message bus.
type TriggerPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Engine labels themes from their member section texts.
//
// Labeling is a pure text computation: the same sections always produce the
// same label, so re-delivery of a labeling trigger is harmless. Labels and
// evidence always overwrite prior labeling output.
type Engine struct {
	themes  repository.ThemeRepository
	bus     TriggerPublisher
	metrics *observability.Metrics
	logger  zerolog.Logger
	cfg     config.LabelingConfig
}

// NewEngine creates a labeling engine.
func NewEngine(
	themes repository.ThemeRepository,
	bus TriggerPublisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg config.LabelingConfig,
) *Engine {
	return &Engine{
		themes:  themes,
		bus:     bus,
		metrics: metrics,
		logger:  logger.With().Str("component", "label_engine").Logger(),
		cfg:     cfg,
	}
}

// RunProject labels every theme of a project. Themes without any section
// text are skipped and keep their placeholder label. The run fails if any
// theme fails; themes labeled before the failure keep their new labels.
func (e *Engine) RunProject(ctx context.Context, projectID uuid.UUID) domain.StageResult {
	logger := observability.WithProjectContext(e.logger, projectID.String())

	themes, err := e.themes.ListByProject(ctx, projectID)
	if err != nil {
		return domain.Failed(fmt.Errorf("failed to list project themes: %w", err))
	}
	if len(themes) == 0 {
		logger.Info().Msg("project has no themes to label")
		return domain.Skipped("no themes")
	}

	labeled := 0
	for _, theme := range themes {
		result := e.labelTheme(ctx, theme)
		if result.Outcome == domain.StageFailed {
			return domain.Failed(fmt.Errorf("failed to label theme %s: %w", theme.ID, result.Err))
		}
		if result.Outcome == domain.StageCompleted {
			labeled++
		}
	}

	logger.Info().
		Int("themes", len(themes)).
		Int("labeled", labeled).
		Msg("labeling run completed")

	return domain.Completed()
}

// RunTheme labels a single theme.
func (e *Engine) RunTheme(ctx context.Context, themeID uuid.UUID) domain.StageResult {
	theme, err := e.themes.GetByID(ctx, themeID)
	if err != nil {
		return domain.Failed(fmt.Errorf("failed to load theme: %w", err))
	}
	return e.labelTheme(ctx, theme)
}

// labelTheme computes and persists one theme's label, evidence, and
// provenance, then hands the theme off to the summary stage.
func (e *Engine) labelTheme(ctx context.Context, theme *domain.Theme) domain.StageResult {
	logger := observability.WithThemeContext(e.logger, theme.ID.String())
	start := time.Now()

	texts, err := e.themes.ListSectionTexts(ctx, theme.ID, e.cfg.MaxTexts)
	if err != nil {
		return e.failed(fmt.Errorf("failed to load theme texts: %w", err))
	}
	if len(texts) == 0 {
		logger.Info().Msg("theme has no section text, keeping placeholder label")
		e.metrics.ThemesLabeled.WithLabelValues(domain.StageSkipped.String()).Inc()
		return domain.Skipped("no section text")
	}

	candidates := countNgrams(texts, e.cfg.MinNgramLength, e.cfg.MaxNgramLength)
	if len(candidates) > e.cfg.TopTerms {
		candidates = candidates[:e.cfg.TopTerms]
	}

	chosen := selectLabel(candidates)
	if chosen == "" {
		logger.Info().Msg("theme text produced no label candidates, keeping placeholder label")
		e.metrics.ThemesLabeled.WithLabelValues(domain.StageSkipped.String()).Inc()
		return domain.Skipped("no label candidates")
	}

	// Overwrite labeling provenance while preserving the clustering fields.
	provenance := theme.Provenance
	provenance.TopNgrams = toNgramCounts(candidates)
	provenance.KeyPhrases = buildEvidence(candidates, texts)
	provenance.SectionsAnalyzed = len(texts)
	provenance.MinNgramLength = e.cfg.MinNgramLength
	provenance.MaxNgramLength = e.cfg.MaxNgramLength

	if err := e.themes.UpdateLabel(ctx, theme.ID, chosen, provenance); err != nil {
		return e.failed(fmt.Errorf("failed to persist theme label: %w", err))
	}

	e.metrics.ThemesLabeled.WithLabelValues(domain.StageCompleted.String()).Inc()
	e.metrics.LabelRunDuration.Observe(time.Since(start).Seconds())

	logger.Info().
		Str("label", chosen).
		Int("texts", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("theme labeled")

	trigger := domain.SummaryMakeTrigger{ThemeID: theme.ID}
	if err := e.bus.Publish(ctx, domain.TopicSummaryMake, trigger); err != nil {
		return e.failed(fmt.Errorf("failed to publish summary-make trigger: %w", err))
	}
	e.metrics.TriggersPublished.WithLabelValues(domain.TopicSummaryMake).Inc()

	return domain.Completed()
}

func (e *Engine) failed(err error) domain.StageResult {
	e.metrics.ThemesLabeled.WithLabelValues(domain.StageFailed.String()).Inc()
	return domain.Failed(err)
}

// buildEvidence assembles the evidence list: the top n-grams as phrase
// evidence, then sentences of suitable length from the first member texts
// that contain one of the leading n-grams, until the list reaches its cap.
func buildEvidence(candidates []ngramCount, texts []string) []domain.KeyPhrase {
	var evidence []domain.KeyPhrase
	for i, c := range candidates {
		if i >= phraseEvidenceCount {
			break
		}
		evidence = append(evidence, domain.KeyPhrase{
			Phrase:    c.phrase,
			Frequency: c.count,
			Type:      domain.KeyPhraseTypeNgram,
		})
	}

	leading := candidates
	if len(leading) > sentenceNgramCount {
		leading = leading[:sentenceNgramCount]
	}

	sources := texts
	if len(sources) > sentenceSourceTexts {
		sources = sources[:sentenceSourceTexts]
	}

	for _, text := range sources {
		for _, sentence := range splitSentences(text) {
			if len(evidence) >= maxEvidence {
				return evidence
			}
			if len(sentence) < minSentenceLength || len(sentence) > maxSentenceLength {
				continue
			}
			lower := strings.ToLower(sentence)
			for _, c := range leading {
				if strings.Contains(lower, c.phrase) {
					evidence = append(evidence, domain.KeyPhrase{
						Phrase:    sentence,
						Frequency: 1,
						Type:      domain.KeyPhraseTypeSentence,
					})
					break
				}
			}
		}
	}

	return evidence
}

func toNgramCounts(candidates []ngramCount) []domain.NgramCount {
	out := make([]domain.NgramCount, len(candidates))
	for i, c := range candidates {
		out[i] = domain.NgramCount{Phrase: c.phrase, Count: c.count}
	}
	return out
}
