package cluster

import "math"

// silhouetteScore computes the mean silhouette coefficient of a partition.
//
// For each row, a is the mean distance to the other members of its own
// cluster and b is the smallest mean distance to any other cluster; the
// row's coefficient is (b - a) / max(a, b). Rows in singleton clusters
// score 0. The result lies in [-1, 1].
//
// Degenerate partitions score 0: fewer than two clusters, any empty
// cluster, or as many clusters as rows. Returning 0 rather than an error
// lets the k search simply rank such partitions below any real structure.
func silhouetteScore(data [][]float64, labels []int, k int) float64 {
	n := len(data)
	if k < 2 || k >= n {
		return 0.0
	}

	counts := make([]int, k)
	for _, label := range labels {
		counts[label]++
	}
	for _, c := range counts {
		if c == 0 {
			return 0.0
		}
	}

	total := 0.0
	meanDist := make([]float64, k)
	for i, row := range data {
		for c := range meanDist {
			meanDist[c] = 0
		}
		for j, other := range data {
			if i == j {
				continue
			}
			meanDist[labels[j]] += euclideanDistance(row, other)
		}

		own := labels[i]
		if counts[own] == 1 {
			continue // singleton rows contribute 0
		}

		a := meanDist[own] / float64(counts[own]-1)
		b := 0.0
		first := true
		for c := 0; c < k; c++ {
			if c == own {
				continue
			}
			d := meanDist[c] / float64(counts[c])
			if first || d < b {
				b = d
				first = false
			}
		}

		if max := maxFloat(a, b); max > 0 {
			total += (b - a) / max
		}
	}

	return total / float64(n)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// standardize returns a copy of data scaled per dimension to zero mean and
// unit variance. Dimensions with zero variance are centered but not scaled.
func standardize(data [][]float64) [][]float64 {
	n := len(data)
	if n == 0 {
		return nil
	}
	dims := len(data[0])

	means := make([]float64, dims)
	for _, row := range data {
		for d, v := range row {
			means[d] += v
		}
	}
	for d := range means {
		means[d] /= float64(n)
	}

	stds := make([]float64, dims)
	for _, row := range data {
		for d, v := range row {
			diff := v - means[d]
			stds[d] += diff * diff
		}
	}
	for d := range stds {
		std := math.Sqrt(stds[d] / float64(n))
		if std == 0 {
			std = 1.0 // constant dimension, center only
		}
		stds[d] = std
	}

	scaled := make([][]float64, n)
	for i, row := range data {
		scaled[i] = make([]float64, dims)
		for d, v := range row {
			scaled[i][d] = (v - means[d]) / stds[d]
		}
	}

	return scaled
}
