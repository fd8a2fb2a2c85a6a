package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSilhouetteScore(t *testing.T) {
	t.Parallel()

	t.Run("separated clusters score high", func(t *testing.T) {
		t.Parallel()

		data := blobs([][]float64{{0, 0}, {10, 10}}, 10, 5)
		labels := make([]int, 20)
		for i := 10; i < 20; i++ {
			labels[i] = 1
		}

		score := silhouetteScore(data, labels, 2)
		assert.Greater(t, score, 0.5)
		assert.LessOrEqual(t, score, 1.0)
	})

	t.Run("single cluster scores zero", func(t *testing.T) {
		t.Parallel()

		data := blobs([][]float64{{0, 0}}, 10, 5)
		assert.Zero(t, silhouetteScore(data, make([]int, 10), 1))
	})

	t.Run("empty cluster scores zero", func(t *testing.T) {
		t.Parallel()

		data := blobs([][]float64{{0, 0}}, 10, 5)
		// Labels only ever use cluster 0 out of a claimed 3.
		assert.Zero(t, silhouetteScore(data, make([]int, 10), 3))
	})

	t.Run("as many clusters as rows scores zero", func(t *testing.T) {
		t.Parallel()

		data := blobs([][]float64{{0, 0}}, 4, 5)
		assert.Zero(t, silhouetteScore(data, []int{0, 1, 2, 3}, 4))
	})

	t.Run("bad partition scores worse than good partition", func(t *testing.T) {
		t.Parallel()

		data := blobs([][]float64{{0, 0}, {10, 10}}, 10, 5)
		good := make([]int, 20)
		bad := make([]int, 20)
		for i := range good {
			if i >= 10 {
				good[i] = 1
			}
			bad[i] = i % 2 // interleaves the two blobs
		}

		goodScore := silhouetteScore(data, good, 2)
		badScore := silhouetteScore(data, bad, 2)
		assert.Greater(t, goodScore, badScore)
	})

	t.Run("score is bounded", func(t *testing.T) {
		t.Parallel()

		data := blobs([][]float64{{0, 0}, {1, 1}, {2, 2}}, 8, 13)
		result := runKMeans(data, 3, 42)
		score := silhouetteScore(data, result.labels, 3)
		assert.GreaterOrEqual(t, score, -1.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}
