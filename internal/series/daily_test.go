package series

import (
	"testing"

	"derivflow/models"
)

const dayMs = int64(24 * 60 * 60 * 1000)

func TestDailyMeanCollapsesDay(t *testing.T) {
	day := int64(1735689600000) // 2025-01-01T00:00:00Z
	samples := []models.Sample{
		{TimestampMs: day, Value: 0.01},
		{TimestampMs: day + 8*60*60*1000, Value: 0.03},
		{TimestampMs: day + dayMs, Value: 0.05},
	}
	points := DailyMean(samples)
	if len(points) != 2 {
		t.Fatalf("expected 2 days, got %d", len(points))
	}
	if points[0].Date != "2025-01-01" || points[0].Value != 0.02 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if points[1].Date != "2025-01-02" || points[1].Value != 0.05 {
		t.Fatalf("unexpected second point %+v", points[1])
	}
}

func TestDailyLastKeepsLatest(t *testing.T) {
	day := int64(1735689600000)
	samples := []models.Sample{
		{TimestampMs: day + 1000, Value: 100},
		{TimestampMs: day + 2000, Value: 200},
		{TimestampMs: day, Value: 50},
	}
	points := DailyLast(samples)
	if len(points) != 1 {
		t.Fatalf("expected 1 day, got %d", len(points))
	}
	if points[0].Value != 200 {
		t.Fatalf("expected the latest sample to win, got %v", points[0].Value)
	}
}

func TestDailyMeanSortsAscending(t *testing.T) {
	day := int64(1735689600000)
	samples := []models.Sample{
		{TimestampMs: day + 2*dayMs, Value: 3},
		{TimestampMs: day, Value: 1},
		{TimestampMs: day + dayMs, Value: 2},
	}
	points := DailyMean(samples)
	for i := 1; i < len(points); i++ {
		if points[i-1].Date >= points[i].Date {
			t.Fatalf("dates not ascending: %v", points)
		}
	}
}

func TestTail(t *testing.T) {
	points := []models.DailyPoint{{Date: "a"}, {Date: "b"}, {Date: "c"}}
	if got := Tail(points, 2); len(got) != 2 || got[0].Date != "b" {
		t.Fatalf("unexpected tail %v", got)
	}
	if got := Tail(points, 10); len(got) != 3 {
		t.Fatalf("oversized n should return the whole series, got %v", got)
	}
}
