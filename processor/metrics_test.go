package processor

import (
	"fmt"
	"testing"

	"derivflow/models"
)

func dailyPoints(vals ...float64) []models.DailyPoint {
	out := make([]models.DailyPoint, len(vals))
	for i, v := range vals {
		out[i] = models.DailyPoint{Date: fmt.Sprintf("2025-02-%02d", i+1), Value: v}
	}
	return out
}

func TestFundingOutcomeThinHistory(t *testing.T) {
	out := fundingOutcome(dailyPoints(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	if out.OK() {
		t.Fatalf("10 days must not score, got %+v", out.Result)
	}
	if out.Err != nil {
		t.Fatalf("thin history is degenerate, not an error: %v", out.Err)
	}
}

func TestFundingOutcomeScores(t *testing.T) {
	out := fundingOutcome(dailyPoints(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 20))
	if !out.OK() {
		t.Fatalf("11 days should score, got %+v", out)
	}
	if out.Result.SampleDays != 11 {
		t.Fatalf("sample days should count every day, got %d", out.Result.SampleDays)
	}
	if *out.Result.Z <= 0 {
		t.Fatalf("spiking latest should score positive, got %v", *out.Result.Z)
	}
}

func TestFundingOutcomeFlatHistory(t *testing.T) {
	out := fundingOutcome(dailyPoints(5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 9))
	if !out.OK() {
		t.Fatalf("flat history scores 0.0, got %+v", out)
	}
	if *out.Result.Z != 0.0 {
		t.Fatalf("expected 0.0 for zero spread, got %v", *out.Result.Z)
	}
}

func TestOIOutcomeNeverScoresWithoutZ(t *testing.T) {
	out := oiOutcome(nil)
	if out.OK() || out.Result.SampleDays != 0 {
		t.Fatalf("empty series should be degenerate, got %+v", out)
	}
}

func TestOIOutcomeScores(t *testing.T) {
	series := make([]models.OIPoint, 20)
	for i := range series {
		series[i] = models.OIPoint{Date: fmt.Sprintf("2025-02-%02d", i+1), OI: 100 + float64(i)*5}
	}
	out := oiOutcome(series)
	if !out.OK() {
		t.Fatalf("20-entry series should score, got %+v", out)
	}
	if out.Result.SampleDays == 0 {
		t.Fatal("scored outcome must carry sample days")
	}
}

func TestSourceLabel(t *testing.T) {
	cases := []struct {
		winners map[string]bool
		want    string
	}{
		{map[string]bool{}, ""},
		{map[string]bool{"bybit": true}, "bybit"},
		{map[string]bool{"okx": true, "bybit": true}, "bybit/okx"},
		{map[string]bool{"okx": true, "bybit": true, "snapshot": true}, "bybit/okx + fallback snapshot"},
		{map[string]bool{"snapshot": true}, "fallback snapshot"},
	}
	for _, c := range cases {
		if got := sourceLabel(c.winners); got != c.want {
			t.Fatalf("winners %v: got %q want %q", c.winners, got, c.want)
		}
	}
}
