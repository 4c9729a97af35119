// Package vecmath holds the similarity math used to compare embeddings.
package vecmath

import (
	"errors"
	"math"
)

// ErrIncompatibleDimensions is returned when two non-empty vectors differ in length.
var ErrIncompatibleDimensions = errors.New("vectors have incompatible dimensions")

// CosineSimilarity returns dot(a,b)/(|a||b|) in [-1, 1]. An empty or
// all-zero vector on either side yields 0 rather than an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	if len(a) != len(b) {
		return 0, ErrIncompatibleDimensions
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Float error can push identical vectors just past 1.
	return math.Max(-1, math.Min(1, sim)), nil
}

// Percent converts a similarity to a percentage rounded to two decimals.
func Percent(sim float64) float64 {
	return Round(sim*100, 2)
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
