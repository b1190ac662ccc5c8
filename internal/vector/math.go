package vector

import "math"

// Centroid returns the element-wise mean of vectors. The dimension is taken
// from the first vector; callers must pass vectors of equal length.
// Returns nil for an empty input.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim; i++ {
			sum[i] += float64(v[i])
		}
	}

	n := float64(len(vectors))
	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out
}

// CosineDistance returns 1 - cos(a, b), matching the pgvector <=> operator.
// Vectors of different length or with zero magnitude are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// SimilarityFromDistance converts a cosine distance to a similarity in [0, 1].
func SimilarityFromDistance(d float64) float64 {
	return Clamp01(1 - d)
}

// Clamp01 clamps x to [0, 1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x > 0 {
		return x
	}
	return 0
}
