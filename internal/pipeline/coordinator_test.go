package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/theme-discovery-service/internal/dedup"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/metadata"
	"github.com/helixir/theme-discovery-service/internal/observability"
)

// fakeDocumentRepo is an in-memory DocumentRepository for coordinator tests.
type fakeDocumentRepo struct {
	docs  map[uuid.UUID]*domain.Document
	order []uuid.UUID
}

func newFakeDocumentRepo(docs ...*domain.Document) *fakeDocumentRepo {
	repo := &fakeDocumentRepo{docs: make(map[uuid.UUID]*domain.Document)}
	for _, doc := range docs {
		repo.docs[doc.ID] = doc
		repo.order = append(repo.order, doc.ID)
	}
	return repo
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	f.docs[doc.ID] = doc
	f.order = append(f.order, doc.ID)
	return doc, nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.NewNotFoundError("document", id.String())
	}
	return doc, nil
}

func (f *fakeDocumentRepo) UpdateEnrichment(_ context.Context, doc *domain.Document) error {
	stored, ok := f.docs[doc.ID]
	if !ok {
		return domain.NewNotFoundError("document", doc.ID.String())
	}
	*stored = *doc
	return nil
}

func (f *fakeDocumentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.DocumentStatus) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.NewNotFoundError("document", id.String())
	}
	doc.Status = status
	return nil
}

func (f *fakeDocumentRepo) MarkDuplicate(_ context.Context, id, originalID uuid.UUID) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.NewNotFoundError("document", id.String())
	}
	doc.Status = domain.DocumentStatusDuplicate
	doc.OriginalDocumentID = &originalID
	return nil
}

func (f *fakeDocumentRepo) ListDedupCandidates(_ context.Context, projectID, excludeID uuid.UUID) ([]*domain.Document, error) {
	var out []*domain.Document
	for _, id := range f.order {
		doc := f.docs[id]
		if doc.ProjectID == projectID && doc.ID != excludeID && doc.Status == domain.DocumentStatusEnriched {
			out = append(out, doc)
		}
	}
	return out, nil
}

// fakeSectionRepo only needs ListByDocument for coordinator tests; the other
// methods satisfy the interface.
type fakeSectionRepo struct {
	sections []*domain.Section
}

func (f *fakeSectionRepo) UpsertBatch(context.Context, []*domain.Section) error { return nil }

func (f *fakeSectionRepo) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*domain.Section, error) {
	var out []*domain.Section
	for _, s := range f.sections {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSectionRepo) ListUnembeddedByDocument(context.Context, uuid.UUID) ([]*domain.Section, error) {
	return nil, nil
}

func (f *fakeSectionRepo) ListUnembeddedByProject(context.Context, uuid.UUID) ([]*domain.Section, error) {
	return nil, nil
}

func (f *fakeSectionRepo) CountUnembeddedByProject(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeSectionRepo) UpdateEmbedding(context.Context, uuid.UUID, []float64) error { return nil }

func (f *fakeSectionRepo) ListEmbeddedByProject(context.Context, uuid.UUID, int) ([]*domain.Section, error) {
	return nil, nil
}

// stubResolver returns a fixed record or error.
type stubResolver struct {
	record *metadata.Record
	err    error
	// lastDOI and lastTitle capture what the coordinator asked for.
	lastDOI   string
	lastTitle string
}

func (s *stubResolver) Resolve(_ context.Context, doi, title string) (*metadata.Record, error) {
	s.lastDOI = doi
	s.lastTitle = title
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

// fakePublisher records published triggers.
type fakePublisher struct {
	topics   []string
	payloads []interface{}
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

var testMetrics = observability.NewMetrics("pipeline_test")

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parsedDocument(projectID uuid.UUID) *domain.Document {
	doc := domain.NewDocument(projectID)
	doc.Status = domain.DocumentStatusParsed
	return doc
}

func testRecord() *metadata.Record {
	return &metadata.Record{
		DOI:      "10.1038/nature14539",
		Title:    "Deep learning",
		Authors:  []string{"Yann LeCun"},
		Venue:    "Nature",
		Year:     2015,
		Abstract: "Deep learning allows computational models to learn representations.",
		Source:   "crossref",
	}
}

func newTestCoordinator(docs *fakeDocumentRepo, sections *fakeSectionRepo, resolver *stubResolver, pub *fakePublisher) *Coordinator {
	return NewCoordinator(docs, sections, resolver, dedup.NewMatcher(0.8), pub, testMetrics, zerolog.Nop())
}

func TestCoordinator_EnrichDocument(t *testing.T) {
	t.Run("enriches and publishes embed-upsert", func(t *testing.T) {
		projectID := uuid.New()
		doc := parsedDocument(projectID)
		docs := newFakeDocumentRepo(doc)
		sections := &fakeSectionRepo{sections: []*domain.Section{
			{ID: uuid.New(), DocumentID: doc.ID, Position: 0, Text: "doi: 10.1038/nature14539"},
		}}
		resolver := &stubResolver{record: testRecord()}
		pub := &fakePublisher{}
		coord := newTestCoordinator(docs, sections, resolver, pub)

		trigger := domain.EnrichDocumentTrigger{
			DocumentID: doc.ID,
			FilePath:   writeTempFile(t, "pdf bytes"),
		}
		result := coord.EnrichDocument(context.Background(), trigger)
		require.Equal(t, domain.StageCompleted, result.Outcome)

		assert.Equal(t, domain.DocumentStatusEnriched, doc.Status)
		assert.Equal(t, "10.1038/nature14539", resolver.lastDOI)
		require.NotNil(t, doc.DOI)
		assert.Equal(t, "10.1038/nature14539", *doc.DOI)
		require.NotNil(t, doc.Title)
		assert.Equal(t, "Deep learning", *doc.Title)
		require.NotNil(t, doc.Year)
		assert.Equal(t, 2015, *doc.Year)
		require.NotNil(t, doc.ContentHash)
		assert.Len(t, *doc.ContentHash, 32)
		assert.Equal(t, "crossref", doc.Metadata["source"])

		require.Equal(t, []string{domain.TopicEmbedUpsert}, pub.topics)
		next, ok := pub.payloads[0].(domain.EmbedUpsertTrigger)
		require.True(t, ok)
		require.NotNil(t, next.DocumentID)
		assert.Equal(t, doc.ID, *next.DocumentID)
	})

	t.Run("same file content hashes identically", func(t *testing.T) {
		projectID := uuid.New()
		first := parsedDocument(projectID)
		second := parsedDocument(projectID)
		docs := newFakeDocumentRepo(first, second)
		resolver := &stubResolver{record: testRecord()}
		pub := &fakePublisher{}
		coord := newTestCoordinator(docs, &fakeSectionRepo{}, resolver, pub)

		path := writeTempFile(t, "identical bytes")
		require.Equal(t, domain.StageCompleted,
			coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{DocumentID: first.ID, FilePath: path}).Outcome)

		// Second document duplicates the first via content hash (matcher would
		// also match DOI here; hash equality is what this test pins down).
		resolver.record = &metadata.Record{Title: "A Different Title Entirely", Source: "openalex"}
		result := coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{DocumentID: second.ID, FilePath: path})
		require.Equal(t, domain.StageCompleted, result.Outcome)

		assert.Equal(t, domain.DocumentStatusDuplicate, second.Status)
		require.NotNil(t, second.OriginalDocumentID)
		assert.Equal(t, first.ID, *second.OriginalDocumentID)
		// Only the first enrichment published a next-stage trigger.
		assert.Equal(t, []string{domain.TopicEmbedUpsert}, pub.topics)
	})

	t.Run("skips documents in terminal states", func(t *testing.T) {
		doc := parsedDocument(uuid.New())
		doc.Status = domain.DocumentStatusExcluded
		docs := newFakeDocumentRepo(doc)
		pub := &fakePublisher{}
		coord := newTestCoordinator(docs, &fakeSectionRepo{}, &stubResolver{record: testRecord()}, pub)

		result := coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{
			DocumentID: doc.ID,
			FilePath:   writeTempFile(t, "x"),
		})
		assert.Equal(t, domain.StageSkipped, result.Outcome)
		assert.Empty(t, pub.topics)
	})

	t.Run("skips unknown documents", func(t *testing.T) {
		coord := newTestCoordinator(newFakeDocumentRepo(), &fakeSectionRepo{}, &stubResolver{record: testRecord()}, &fakePublisher{})

		result := coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{
			DocumentID: uuid.New(),
			FilePath:   writeTempFile(t, "x"),
		})
		assert.Equal(t, domain.StageSkipped, result.Outcome)
	})

	t.Run("falls back to filename metadata when every lookup misses", func(t *testing.T) {
		doc := parsedDocument(uuid.New())
		docs := newFakeDocumentRepo(doc)
		resolver := &stubResolver{err: errors.New("all resolvers failed")}
		pub := &fakePublisher{}
		coord := newTestCoordinator(docs, &fakeSectionRepo{}, resolver, pub)

		result := coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{
			DocumentID: doc.ID,
			FilePath:   writeTempFile(t, "x"),
		})
		require.Equal(t, domain.StageCompleted, result.Outcome)

		// A lookup miss never fails the document: it is enriched with a
		// filename-derived title and continues down the pipeline.
		assert.Equal(t, domain.DocumentStatusEnriched, doc.Status)
		require.NotNil(t, doc.Title)
		assert.Equal(t, "paper", *doc.Title)
		assert.Equal(t, "filename", doc.Metadata["source"])
		assert.Equal(t, []string{domain.TopicEmbedUpsert}, pub.topics)
	})

	t.Run("marks document failed when the source file is missing", func(t *testing.T) {
		doc := parsedDocument(uuid.New())
		docs := newFakeDocumentRepo(doc)
		coord := newTestCoordinator(docs, &fakeSectionRepo{}, &stubResolver{record: testRecord()}, &fakePublisher{})

		result := coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{
			DocumentID: doc.ID,
			FilePath:   filepath.Join(t.TempDir(), "does-not-exist.pdf"),
		})
		assert.Equal(t, domain.StageFailed, result.Outcome)
		assert.Equal(t, domain.DocumentStatusFailed, doc.Status)
	})

	t.Run("excludes documents failing inclusion filters", func(t *testing.T) {
		doc := parsedDocument(uuid.New())
		docs := newFakeDocumentRepo(doc)
		pub := &fakePublisher{}
		coord := newTestCoordinator(docs, &fakeSectionRepo{}, &stubResolver{record: testRecord()}, pub)

		trigger := domain.EnrichDocumentTrigger{
			DocumentID: doc.ID,
			FilePath:   writeTempFile(t, "x"),
			Filters:    &domain.InclusionFilters{MinYear: intPtr(2020)},
		}
		result := coord.EnrichDocument(context.Background(), trigger)
		require.Equal(t, domain.StageCompleted, result.Outcome)
		assert.Equal(t, domain.DocumentStatusExcluded, doc.Status)
		assert.Empty(t, pub.topics)
	})

	t.Run("duplicate matching is scoped to the project", func(t *testing.T) {
		projectID := uuid.New()
		original := parsedDocument(projectID)
		original.Status = domain.DocumentStatusEnriched
		doi := "10.1038/NATURE14539"
		original.DOI = &doi
		otherProject := parsedDocument(uuid.New())
		otherProject.Status = domain.DocumentStatusEnriched
		otherProject.DOI = &doi

		doc := parsedDocument(projectID)
		docs := newFakeDocumentRepo(original, otherProject, doc)
		pub := &fakePublisher{}
		coord := newTestCoordinator(docs, &fakeSectionRepo{}, &stubResolver{record: testRecord()}, pub)

		result := coord.EnrichDocument(context.Background(), domain.EnrichDocumentTrigger{
			DocumentID: doc.ID,
			FilePath:   writeTempFile(t, "y"),
		})
		require.Equal(t, domain.StageCompleted, result.Outcome)
		assert.Equal(t, domain.DocumentStatusDuplicate, doc.Status)
		require.NotNil(t, doc.OriginalDocumentID)
		assert.Equal(t, original.ID, *doc.OriginalDocumentID)
	})
}
