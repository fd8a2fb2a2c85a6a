package cluster

import (
	"math"
	"math/rand"
)

// kmeans tuning constants.
const (
	// kmeansRestarts is the number of independent initializations per fit;
	// the run with the lowest inertia wins.
	kmeansRestarts = 10
	// kmeansMaxIterations bounds Lloyd iterations per initialization.
	kmeansMaxIterations = 300
)

// kmeansResult holds the outcome of one k-means fit.
type kmeansResult struct {
	// labels assigns each input row to a cluster in [0, k).
	labels []int
	// centroids are the final cluster centers.
	centroids [][]float64
	// inertia is the sum of squared distances of rows to their centroid.
	inertia float64
}

// runKMeans partitions data into k clusters with Lloyd's algorithm and
// greedy k-means++ seeding. All randomness flows from the given seed, so the
// same data, k, and seed always produce the same partition.
func runKMeans(data [][]float64, k int, seed int64) kmeansResult {
	rng := rand.New(rand.NewSource(seed))

	best := kmeansResult{inertia: math.Inf(1)}
	for restart := 0; restart < kmeansRestarts; restart++ {
		result := fitOnce(data, k, rng)
		if result.inertia < best.inertia {
			best = result
		}
	}

	return best
}

// fitOnce runs a single k-means++ initialization followed by Lloyd iterations.
func fitOnce(data [][]float64, k int, rng *rand.Rand) kmeansResult {
	n := len(data)
	dims := len(data[0])

	centroids := initCentroids(data, k, rng)
	labels := make([]int, n)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, row := range data {
			nearest := nearestCentroid(row, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Recompute centroids as member means.
		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, dims)
		}
		for i, row := range data {
			c := labels[i]
			counts[c]++
			for d, v := range row {
				next[c][d] += v
			}
		}
		for c := range next {
			if counts[c] == 0 {
				// Repopulate an emptied cluster with the row farthest
				// from its current centroid.
				next[c] = append([]float64(nil), data[farthestRow(data, labels, centroids)]...)
				continue
			}
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
		}
		centroids = next
	}

	inertia := 0.0
	for i, row := range data {
		inertia += squaredDistance(row, centroids[labels[i]])
	}

	return kmeansResult{labels: labels, centroids: centroids, inertia: inertia}
}

// initCentroids selects k starting centers with k-means++ weighting: the
// first center is uniform, each further center is drawn proportionally to
// the squared distance from the nearest center chosen so far.
func initCentroids(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), data[rng.Intn(n)]...))

	distances := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, row := range data {
			d := squaredDistance(row, centroids[0])
			for _, c := range centroids[1:] {
				if dc := squaredDistance(row, c); dc < d {
					d = dc
				}
			}
			distances[i] = d
			total += d
		}

		if total == 0 {
			// All rows coincide with existing centers; duplicate one.
			centroids = append(centroids, append([]float64(nil), data[rng.Intn(n)]...))
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		chosen := n - 1
		for i, d := range distances {
			cumulative += d
			if cumulative >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), data[chosen]...))
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid to row.
// Ties go to the lowest index.
func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := squaredDistance(row, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := squaredDistance(row, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// farthestRow returns the index of the row farthest from its assigned centroid.
func farthestRow(data [][]float64, labels []int, centroids [][]float64) int {
	worst := 0
	worstDist := -1.0
	for i, row := range data {
		if d := squaredDistance(row, centroids[labels[i]]); d > worstDist {
			worst = i
			worstDist = d
		}
	}
	return worst
}

// squaredDistance is the squared Euclidean distance between two vectors.
func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// euclideanDistance is the Euclidean distance between two vectors.
func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}
