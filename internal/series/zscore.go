package series

import "math"

// minZScoreSamples is the floor below which a z-score is meaningless
// noise; thinner histories yield no score rather than a bad one.
const minZScoreSamples = 10

// ZScore standardizes latest against the given history. Nil entries
// are skipped; fewer than ten remaining points returns nil. Mean and
// standard deviation are population statistics (divide by N). A flat
// history scores exactly 0. The latest value is never part of the
// reference window.
func ZScore(history []*float64, latest float64) *float64 {
	xs := make([]float64, 0, len(history))
	for _, x := range history {
		if x != nil {
			xs = append(xs, *x)
		}
	}
	if len(xs) < minZScoreSamples {
		return nil
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	sd := math.Sqrt(variance)
	if sd == 0 {
		z := 0.0
		return &z
	}
	z := (latest - mean) / sd
	return &z
}
