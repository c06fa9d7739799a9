package okx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "derivflow/config"
	"derivflow/models"
)

func testConfig(base string) *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Source.Okx.Enabled = true
	cfg.Source.Okx.Base = base
	cfg.Pipeline.LookbackDays = 90
	cfg.Reader.Timeout = time.Second
	cfg.Reader.Retry.MaxAttempts = 1
	cfg.Reader.Retry.BaseDelay = time.Millisecond
	cfg.Reader.RateLimit.RequestsPerSecond = 1000
	cfg.Reader.RateLimit.BurstSize = 10
	return cfg
}

func TestFundingDailyAggregates(t *testing.T) {
	day := int64(1735689600000) // 2025-01-01
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/public/funding-rate-history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("instId") != "BTC-USDT-SWAP" {
			t.Errorf("unexpected instId %s", r.URL.Query().Get("instId"))
		}
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[
			{"fundingRate":"0.25","fundingTime":"%d"},
			{"fundingRate":"0.75","fundingTime":"%d"},
			{"fundingRate":"0.5","ts":"%d"},
			{"fundingRate":"garbage","fundingTime":"%d"}
		]}`, day, day+8*3600*1000, day+24*3600*1000, day)
	}))
	defer srv.Close()

	r := NewReader(testConfig(srv.URL))
	points, err := r.FundingDaily(context.Background(), "BTC-USDT-SWAP", 90)
	if err != nil {
		t.Fatalf("funding: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 days, got %v", points)
	}
	if points[0].Date != "2025-01-01" || points[0].Value != 0.5 {
		t.Fatalf("expected per-day mean, got %+v", points[0])
	}
	if points[1].Value != 0.5 {
		t.Fatalf("ts fallback row should count, got %+v", points[1])
	}
}

func TestFundingDailyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	r := NewReader(testConfig(srv.URL))
	if _, err := r.FundingDaily(context.Background(), "NOPE", 90); err == nil {
		t.Fatal("expected error for nonzero code")
	}
}

func TestOIDailyFallsBackTo8H(t *testing.T) {
	day := int64(1735689600000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("period") == "1D" {
			w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
			return
		}
		// three 8H readings on one day plus one on the next
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[
			{"ts":"%d","oi":"1000"},
			{"ts":"%d","oi":"1100"},
			{"ts":"%d","oi":"1200"},
			{"ts":"%d","oi":"1300"}
		]}`, day, day+8*3600*1000, day+16*3600*1000, day+24*3600*1000)
	}))
	defer srv.Close()

	r := NewReader(testConfig(srv.URL))
	points, err := r.OIDaily(context.Background(), "BTC-USDT-SWAP", 90)
	if err != nil {
		t.Fatalf("oi: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 days from 8H collapse, got %v", points)
	}
	if points[0].OI != 1200 {
		t.Fatalf("expected last 8H reading of the day, got %+v", points[0])
	}
}

func TestOIDailyPrefers1D(t *testing.T) {
	day := int64(1735689600000)
	var sawEightHour bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("period") == "8H" {
			sawEightHour = true
		}
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"ts":"%d","oi":"500"}]}`, day)
	}))
	defer srv.Close()

	r := NewReader(testConfig(srv.URL))
	points, err := r.OIDaily(context.Background(), "BTC-USDT-SWAP", 90)
	if err != nil {
		t.Fatalf("oi: %v", err)
	}
	if sawEightHour {
		t.Fatal("1D data present, 8H should not be queried")
	}
	if len(points) != 1 || points[0].OI != 500 {
		t.Fatalf("unexpected points %v", points)
	}
}

func TestCurrentOI(t *testing.T) {
	day := int64(1735689600000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/public/open-interest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("instType") != "SWAP" {
			t.Errorf("missing instType, got %q", r.URL.Query().Get("instType"))
		}
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[{"ts":"%d","oi":"123456.5"}]}`, day)
	}))
	defer srv.Close()

	r := NewReader(testConfig(srv.URL))
	cur, err := r.CurrentOI(context.Background(), "BTC-USDT-SWAP")
	if err != nil {
		t.Fatalf("current oi: %v", err)
	}
	if cur.Date != "2025-01-01" || cur.OI != 123456.5 {
		t.Fatalf("unexpected reading %+v", cur)
	}
}

func TestCurrentOIEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	r := NewReader(testConfig(srv.URL))
	_, err := r.CurrentOI(context.Background(), "BTC-USDT-SWAP")
	if !errors.Is(err, models.ErrSourceFormat) {
		t.Fatalf("expected source format error, got %v", err)
	}
}
