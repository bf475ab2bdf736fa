package gallery

import "math"

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched or zero vectors have similarity -1.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	// Clamp to handle floating point errors.
	return max(-1, min(1, dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))))
}
