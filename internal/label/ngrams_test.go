package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "lowercases and strips punctuation",
			input:    "Graph Neural-Networks (GNNs)!",
			expected: []string{"graph", "neural", "networks", "gnns"},
		},
		{
			name:     "drops stop words",
			input:    "the model and the data",
			expected: []string{"model", "data"},
		},
		{
			name:     "drops short tokens",
			input:    "we use an ML ab model",
			expected: []string{"use", "model"},
		},
		{
			name:     "keeps domain vocabulary",
			input:    "this paper proposes a clustering method",
			expected: []string{"paper", "proposes", "clustering", "method"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

func TestCountNgrams(t *testing.T) {
	t.Parallel()

	t.Run("pools counts across texts", func(t *testing.T) {
		t.Parallel()

		texts := []string{
			"graph neural networks learn representations",
			"graph neural networks generalize",
		}
		candidates := countNgrams(texts, 2, 3)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "graph neural", candidates[0].phrase)
		assert.Equal(t, 2, candidates[0].count)
	})

	t.Run("ties break lexicographically", func(t *testing.T) {
		t.Parallel()

		// Both bigrams occur once; "alpha beta" sorts before "gamma delta".
		candidates := countNgrams([]string{"alpha beta", "gamma delta"}, 2, 2)
		require.Len(t, candidates, 2)
		assert.Equal(t, "alpha beta", candidates[0].phrase)
		assert.Equal(t, "gamma delta", candidates[1].phrase)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		t.Parallel()

		texts := []string{"deep learning models improve transfer learning models daily"}
		first := countNgrams(texts, 2, 4)
		second := countNgrams(texts, 2, 4)
		assert.Equal(t, first, second)
	})

	t.Run("no candidates from too-short text", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, countNgrams([]string{"representations"}, 2, 4))
	})
}

func TestSelectLabel(t *testing.T) {
	t.Parallel()

	t.Run("title-cases the top candidate", func(t *testing.T) {
		t.Parallel()

		label := selectLabel([]ngramCount{
			{phrase: "graph neural networks", count: 9},
			{phrase: "neural networks", count: 7},
		})
		assert.Equal(t, "Graph Neural Networks", label)
	})

	t.Run("prefers a multi-token candidate over a single-token top", func(t *testing.T) {
		t.Parallel()

		label := selectLabel([]ngramCount{
			{phrase: "transformers", count: 12},
			{phrase: "attention mechanisms scale", count: 8},
			{phrase: "attention mechanisms", count: 5},
		})
		assert.Equal(t, "Attention Mechanisms Scale", label)
	})

	t.Run("keeps single token when no multi-token candidate exists", func(t *testing.T) {
		t.Parallel()

		label := selectLabel([]ngramCount{{phrase: "transformers", count: 12}})
		assert.Equal(t, "Transformers", label)
	})

	t.Run("empty candidates yield empty label", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, selectLabel(nil))
	})
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	sentences := splitSentences("First sentence. Second one! Third? trailing fragment")
	require.Len(t, sentences, 4)
	assert.Equal(t, "First sentence", sentences[0])
	assert.Equal(t, "Second one", sentences[1])
	assert.Equal(t, "Third", sentences[2])
	assert.Equal(t, "trailing fragment", sentences[3])
}
