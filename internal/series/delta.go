package series

import "derivflow/models"

// minDeltaSeries is the shortest OI series worth scoring: 3 warm-up
// entries plus a scored latest plus ten history points behind it.
const minDeltaSeries = 14

// OIDelta3 converts an ascending open-interest series into its 3-day
// percentage-change series. The result is parallel to the input; the
// first three entries are nil, as is any entry whose 3-day-old
// denominator is zero.
func OIDelta3(points []models.OIPoint) []*float64 {
	out := make([]*float64, len(points))
	for i := range points {
		if i < 3 {
			continue
		}
		prev := points[i-3].OI
		if prev == 0 {
			continue
		}
		v := points[i].OI/prev - 1.0
		out[i] = &v
	}
	return out
}

// DeltaZFromSeries computes the open-interest 3-day-delta z-score of
// the last defined delta against all defined deltas before it. Returns
// (nil, 0) when the series is too short to ever clear the z-score
// sample floor or when no delta is defined.
func DeltaZFromSeries(points []models.OIPoint) (*float64, int) {
	if len(points) < minDeltaSeries {
		return nil, 0
	}
	deltas := OIDelta3(points)

	lastIdx := -1
	for i := len(deltas) - 1; i >= 0; i-- {
		if deltas[i] != nil {
			lastIdx = i
			break
		}
	}
	if lastIdx < 0 {
		return nil, 0
	}

	hist := deltas[:lastIdx]
	z := ZScore(hist, *deltas[lastIdx])
	if z == nil {
		return nil, 0
	}
	n := 0
	for _, d := range hist {
		if d != nil {
			n++
		}
	}
	return z, n + 1
}
