package bybit

import (
	"encoding/json"
	"testing"
	"time"

	appconfig "derivflow/config"
)

func testConfig() *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Source.Bybit.Enabled = true
	cfg.Source.Bybit.Base = "https://api.bybit.com"
	cfg.Reader.Timeout = time.Second
	cfg.Reader.Retry.MaxAttempts = 1
	return cfg
}

func TestNewReaderOneClientPerBase(t *testing.T) {
	cfg := testConfig()
	if r := NewReader(cfg); len(r.clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(r.clients))
	}
	cfg.Source.Bybit.FallbackBase = "https://api.bytick.com"
	if r := NewReader(cfg); len(r.clients) != 2 {
		t.Fatalf("expected 2 clients with a fallback base, got %d", len(r.clients))
	}
}

func TestReaderDefaults(t *testing.T) {
	r := NewReader(testConfig())
	if r.pageLimit() != 200 {
		t.Fatalf("expected default page limit 200, got %d", r.pageLimit())
	}
	if r.maxPages() != 8 {
		t.Fatalf("expected default max pages 8, got %d", r.maxPages())
	}

	cfg := testConfig()
	cfg.Source.Bybit.PageLimit = 50
	cfg.Source.Bybit.MaxPages = 3
	r = NewReader(cfg)
	if r.pageLimit() != 50 || r.maxPages() != 3 {
		t.Fatalf("configured limits ignored: %d / %d", r.pageLimit(), r.maxPages())
	}
}

func TestFundingRowParsing(t *testing.T) {
	raw := `{"symbol":"BTCUSDT","fundingRate":"0.0001","fundingRateTimestamp":"1735689600000"}`
	var row fundingRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.FundingRate != "0.0001" || row.FundingRateTimestamp != "1735689600000" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestHistoryPageEnvelope(t *testing.T) {
	raw := `{"category":"linear","list":[{"a":1},{"a":2}],"nextPageCursor":"cursor123"}`
	var page historyPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.List) != 2 || page.NextPageCursor != "cursor123" {
		t.Fatalf("unexpected page %+v", page)
	}
}
