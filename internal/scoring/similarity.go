package scoring

import (
	"math"
	"strings"
)

// ExactMatch returns 1 when a and b are equal after trimming surrounding
// whitespace, else 0.
func ExactMatch(a, b string) float64 {
	if strings.TrimSpace(a) == strings.TrimSpace(b) {
		return 1
	}
	return 0
}

// CosineSimilarity returns the cosine of the angle between v1 and v2.
// Vectors of different length or zero magnitude score 0.
func CosineSimilarity(v1, v2 []float64) float64 {
	if len(v1) != len(v2) || len(v1) == 0 {
		return 0
	}
	var dot, mag1, mag2 float64
	for i := range v1 {
		dot += v1[i] * v2[i]
		mag1 += v1[i] * v1[i]
		mag2 += v2[i] * v2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(mag1) * math.Sqrt(mag2))
	// rounding can push parallel vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}
