package bybit

import (
	"context"
	"encoding/json"
	"strconv"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"derivflow/internal/fetch"
	"derivflow/internal/series"
	"derivflow/logger"
	"derivflow/models"
)

// fundingRow is one entry of /v5/market/funding/history. Bybit emits
// every numeric field as a string.
type fundingRow struct {
	FundingRate          string `json:"fundingRate"`
	FundingRateTimestamp string `json:"fundingRateTimestamp"`
}

// FundingDaily returns the per-day mean funding rate for a symbol,
// trimmed to the trailing days+1 calendar days. Funding prints several
// times per day, so pagination targets three samples per day plus a
// small buffer.
func (r *Reader) FundingDaily(ctx context.Context, symbol string, days int) ([]models.DailyPoint, error) {
	log := r.log.WithComponent("bybit_reader").WithFields(logger.Fields{"symbol": symbol, "operation": "funding_daily"})

	target := 3*days + 6
	raw, err := fetch.Paginate(ctx, func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		params := map[string]interface{}{
			"category": "linear",
			"symbol":   symbol,
			"limit":    strconv.Itoa(r.pageLimit()),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		page, err := r.page(ctx, func(c *bybit.Client) (*bybit.ServerResponse, error) {
			return c.NewUtaBybitServiceWithParams(params).GetFundingRateHistory(ctx)
		})
		if err != nil {
			return nil, "", err
		}
		return page.List, page.NextPageCursor, nil
	}, target, r.maxPages(), r.limiter)
	if err != nil {
		log.WithError(err).Warn("funding history fetch failed")
		return nil, err
	}

	samples := make([]models.Sample, 0, len(raw))
	for _, item := range raw {
		var row fundingRow
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rate, err := strconv.ParseFloat(row.FundingRate, 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(row.FundingRateTimestamp, 10, 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{TimestampMs: ts, Value: rate})
	}

	daily := series.DailyMean(samples)
	logger.LogDataFlowEntry(log, "bybit_api", "daily_aggregator", len(samples), "funding_samples")
	log.WithFields(logger.Fields{"points": len(samples), "days": len(daily)}).Info("funding history aggregated")
	return series.Tail(daily, days+1), nil
}
