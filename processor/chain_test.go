package processor

import (
	"context"
	"errors"
	"testing"

	"derivflow/logger"
)

func testEntry() *logger.Entry {
	return logger.GetLogger().WithComponent("test")
}

func fixedAdapter(name string, out Outcome) Adapter {
	return Adapter{Name: name, Run: func(ctx context.Context) Outcome { return out }}
}

func TestRunChainFirstSourceWins(t *testing.T) {
	z := 1.5
	result, source := runChain(context.Background(), testEntry(), "bitcoin", "funding_z", []Adapter{
		fixedAdapter("bybit", success(&z, 90)),
		fixedAdapter("okx", failure(errors.New("should not run"))),
	})
	if source != "bybit" {
		t.Fatalf("expected bybit to win, got %q", source)
	}
	if result.Z == nil || *result.Z != 1.5 || result.SampleDays != 90 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunChainFallsPastFailure(t *testing.T) {
	z := -0.3
	result, source := runChain(context.Background(), testEntry(), "bitcoin", "funding_z", []Adapter{
		fixedAdapter("bybit", failure(errors.New("timeout"))),
		fixedAdapter("okx", success(&z, 45)),
	})
	if source != "okx" {
		t.Fatalf("expected fallback to okx, got %q", source)
	}
	if result.SampleDays != 45 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunChainFallsPastThinHistory(t *testing.T) {
	z := 2.0
	result, source := runChain(context.Background(), testEntry(), "ethereum", "oi_delta_z", []Adapter{
		fixedAdapter("okx", Outcome{}),
		fixedAdapter("bybit", success(&z, 30)),
	})
	if source != "bybit" {
		t.Fatalf("thin history should advance the chain, got %q", source)
	}
	if result.Z == nil || *result.Z != 2.0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunChainAllExhausted(t *testing.T) {
	result, source := runChain(context.Background(), testEntry(), "bitcoin", "funding_z", []Adapter{
		fixedAdapter("bybit", failure(errors.New("down"))),
		fixedAdapter("okx", Outcome{}),
	})
	if source != "" {
		t.Fatalf("expected no winner, got %q", source)
	}
	if result.Z != nil || result.SampleDays != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestOutcomeOK(t *testing.T) {
	z := 1.0
	if !(success(&z, 10)).OK() {
		t.Fatal("scored outcome should be OK")
	}
	if (Outcome{}).OK() {
		t.Fatal("degenerate outcome must not be OK")
	}
	if (failure(errors.New("x"))).OK() {
		t.Fatal("failed outcome must not be OK")
	}
}
