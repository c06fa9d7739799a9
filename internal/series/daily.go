// Package series holds the pure daily-series math of the pipeline:
// calendar-day aggregation, 3-day delta transform and z-scoring.
package series

import (
	"sort"

	"derivflow/models"
)

// DailyMean collapses samples into one point per UTC calendar day,
// valued at the arithmetic mean of that day's samples. The result is
// sorted ascending by date.
func DailyMean(samples []models.Sample) []models.DailyPoint {
	type acc struct {
		sum float64
		n   int
	}
	perDay := make(map[string]*acc)
	for _, s := range samples {
		d := models.DateOfMillis(s.TimestampMs)
		a, ok := perDay[d]
		if !ok {
			a = &acc{}
			perDay[d] = a
		}
		a.sum += s.Value
		a.n++
	}
	out := make([]models.DailyPoint, 0, len(perDay))
	for d, a := range perDay {
		out = append(out, models.DailyPoint{Date: d, Value: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// DailyLast collapses samples into one point per UTC calendar day,
// keeping the chronologically latest sample of each day. Sources that
// already emit one point per day pass through unchanged apart from the
// date conversion.
func DailyLast(samples []models.Sample) []models.DailyPoint {
	latest := make(map[string]models.Sample)
	for _, s := range samples {
		d := models.DateOfMillis(s.TimestampMs)
		if prev, ok := latest[d]; !ok || s.TimestampMs >= prev.TimestampMs {
			latest[d] = s
		}
	}
	out := make([]models.DailyPoint, 0, len(latest))
	for d, s := range latest {
		out = append(out, models.DailyPoint{Date: d, Value: s.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Tail returns the trailing n points of an ascending series.
func Tail(points []models.DailyPoint, n int) []models.DailyPoint {
	if n >= len(points) {
		return points
	}
	return points[len(points)-n:]
}

// TailOI is Tail for the persisted open-interest shape.
func TailOI(points []models.OIPoint, n int) []models.OIPoint {
	if n >= len(points) {
		return points
	}
	return points[len(points)-n:]
}
