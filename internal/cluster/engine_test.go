package cluster

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/domain"
)

func testEngine() *Engine {
	return &Engine{
		cfg: config.ClusteringConfig{
			MinClusters:        3,
			MaxClusters:        20,
			MinSections:        10,
			Seed:               42,
			MainThemeThreshold: 5,
			WeightFloor:        0.1,
			MaxSections:        20000,
		},
	}
}

func TestEngine_ChooseK(t *testing.T) {
	t.Parallel()

	t.Run("short-circuits to minimum when too few sections to search", func(t *testing.T) {
		t.Parallel()

		// 12 sections: upper bound is 12/10 = 1, below the minimum of 3.
		e := testEngine()
		data := blobs([][]float64{{0, 0}}, 12, 1)
		assert.Equal(t, 3, e.chooseK(data, len(data)))
	})

	t.Run("finds the natural cluster count in separated data", func(t *testing.T) {
		t.Parallel()

		// 60 sections in 3 well-separated blobs: search range is [3, 6].
		e := testEngine()
		data := blobs([][]float64{{0, 0}, {20, 20}, {-20, 20}}, 20, 7)
		assert.Equal(t, 3, e.chooseK(data, len(data)))
	})

	t.Run("caps the search range at the configured maximum", func(t *testing.T) {
		t.Parallel()

		e := testEngine()
		e.cfg.MaxClusters = 4
		data := blobs([][]float64{{0, 0}, {20, 20}, {-20, 20}}, 20, 7)
		k := e.chooseK(data, len(data))
		assert.GreaterOrEqual(t, k, 3)
		assert.LessOrEqual(t, k, 4)
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		e := testEngine()
		data := blobs([][]float64{{0, 0}, {8, 8}, {-8, 8}, {0, 16}}, 15, 21)
		first := e.chooseK(data, len(data))
		second := e.chooseK(data, len(data))
		assert.Equal(t, first, second)
	})
}

func TestEngine_BuildThemes(t *testing.T) {
	t.Parallel()

	docA := uuid.New()
	docB := uuid.New()
	sections := []*domain.Section{
		{ID: uuid.New(), DocumentID: docA, Embedding: []float64{0, 0}},
		{ID: uuid.New(), DocumentID: docA, Embedding: []float64{0, 3}},
		{ID: uuid.New(), DocumentID: docB, Embedding: []float64{5, 5}},
		{ID: uuid.New(), DocumentID: docB, Embedding: []float64{6, 5}},
	}
	scaled := [][]float64{{0, 0}, {0, 3}, {5, 5}, {6, 5}}
	final := kmeansResult{
		labels:    []int{0, 0, 1, 1},
		centroids: [][]float64{{0, 1}, {5.5, 5}},
	}

	e := testEngine()
	e.cfg.MainThemeThreshold = 2
	projectID := uuid.New()
	generation := uuid.New()

	themes, assignments := e.buildThemes(projectID, generation, sections, scaled, final, 0.42)

	require.Len(t, themes, 2)
	require.Len(t, assignments, 2, "one assignment per document per theme")

	t.Run("themes carry generation and provenance", func(t *testing.T) {
		for i, theme := range themes {
			assert.Equal(t, projectID, theme.ProjectID)
			assert.Equal(t, generation, theme.Generation)
			assert.Equal(t, i, theme.Provenance.ClusterID)
			assert.Equal(t, "kmeans", theme.Provenance.Method)
			assert.Equal(t, 2, theme.Provenance.Size)
			assert.True(t, theme.Provenance.IsMainTheme)
			assert.InDelta(t, 0.42, theme.Provenance.Silhouette, 1e-12)
			assert.Greater(t, theme.Provenance.AvgDistance, 0.0)
		}
	})

	t.Run("weights stay within bounds", func(t *testing.T) {
		for _, a := range assignments {
			assert.GreaterOrEqual(t, a.Weight, 0.1)
			assert.LessOrEqual(t, a.Weight, 1.0)
		}
	})

	t.Run("document keeps its strongest section weight", func(t *testing.T) {
		var docAWeight float64
		for _, a := range assignments {
			if a.DocumentID == docA {
				docAWeight = a.Weight
			}
		}
		// docA's sections sit at distances 1 and 2 from centroid (0,1);
		// the farthest point in the project from that centroid is (6,5)
		// at distance sqrt(52). The closer section's weight wins.
		expected := 1.0 - 1.0/euclideanDistance([]float64{6, 5}, []float64{0, 1})
		assert.InDelta(t, expected, docAWeight, 1e-9)
	})
}

func TestEngine_BuildThemes_BelowMainThreshold(t *testing.T) {
	t.Parallel()

	sections := []*domain.Section{
		{ID: uuid.New(), DocumentID: uuid.New(), Embedding: []float64{0, 0}},
		{ID: uuid.New(), DocumentID: uuid.New(), Embedding: []float64{1, 1}},
	}
	scaled := [][]float64{{0, 0}, {1, 1}}
	final := kmeansResult{
		labels:    []int{0, 1},
		centroids: [][]float64{{0, 0}, {1, 1}},
	}

	e := testEngine() // MainThemeThreshold 5
	themes, _ := e.buildThemes(uuid.New(), uuid.New(), sections, scaled, final, 0)

	for _, theme := range themes {
		assert.False(t, theme.Provenance.IsMainTheme)
	}
}

func TestEngine_BuildThemes_SkipsEmptyClusters(t *testing.T) {
	t.Parallel()

	e := testEngine()
	sections := make([]*domain.Section, 10)
	for i := range sections {
		sections[i] = &domain.Section{ID: uuid.New(), DocumentID: uuid.New(), Embedding: []float64{1, 2}}
	}
	data, err := embeddingMatrix(sections)
	require.NoError(t, err)

	// Identical embeddings force the k search short-circuit to 3; the fit
	// then lands every section in one cluster and strands the other two
	// centroids without members.
	k := e.chooseK(data, len(data))
	require.Equal(t, 3, k)
	scaled := standardize(data)
	final := runKMeans(scaled, k, e.cfg.Seed)

	themes, assignments := e.buildThemes(uuid.New(), uuid.New(), sections, scaled, final, 0)

	require.Len(t, themes, 1, "member-less clusters must not become themes")
	assert.Equal(t, 10, themes[0].Provenance.Size)
	require.Len(t, assignments, 10)
	for _, a := range assignments {
		assert.Equal(t, themes[0].ID, a.ThemeID)
	}
}

func TestEmbeddingMatrix(t *testing.T) {
	t.Parallel()

	t.Run("accepts consistent dimensions", func(t *testing.T) {
		t.Parallel()

		sections := []*domain.Section{
			{ID: uuid.New(), Embedding: []float64{1, 2}},
			{ID: uuid.New(), Embedding: []float64{3, 4}},
		}
		data, err := embeddingMatrix(sections)
		require.NoError(t, err)
		assert.Len(t, data, 2)
	})

	t.Run("rejects mixed dimensions", func(t *testing.T) {
		t.Parallel()

		sections := []*domain.Section{
			{ID: uuid.New(), Embedding: []float64{1, 2}},
			{ID: uuid.New(), Embedding: []float64{3}},
		}
		_, err := embeddingMatrix(sections)
		assert.Error(t, err)
	})
}
