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

// oiMaxPages bounds daily OI pagination. A single page already covers
// the longest lookback at the 1d interval.
const oiMaxPages = 5

// oiRow is one entry of /v5/market/open-interest.
type oiRow struct {
	OpenInterest string `json:"openInterest"`
	Timestamp    string `json:"timestamp"`
}

// OIDaily returns the daily open-interest series for a symbol, one
// point per UTC day (last observation wins), trimmed to the trailing
// days+8 calendar days so the 3-day delta transform has warm-up room.
func (r *Reader) OIDaily(ctx context.Context, symbol string, days int) ([]models.OIPoint, error) {
	log := r.log.WithComponent("bybit_reader").WithFields(logger.Fields{"symbol": symbol, "operation": "oi_daily"})

	target := days + 10
	raw, err := fetch.Paginate(ctx, func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		params := map[string]interface{}{
			"category":     "linear",
			"symbol":       symbol,
			"intervalTime": "1d",
			"limit":        strconv.Itoa(r.pageLimit()),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		page, err := r.page(ctx, func(c *bybit.Client) (*bybit.ServerResponse, error) {
			return c.NewUtaBybitServiceWithParams(params).GetOpenInterests(ctx)
		})
		if err != nil {
			return nil, "", err
		}
		return page.List, page.NextPageCursor, nil
	}, target, oiMaxPages, r.limiter)
	if err != nil {
		log.WithError(err).Warn("open interest fetch failed")
		return nil, err
	}

	samples := make([]models.Sample, 0, len(raw))
	for _, item := range raw {
		var row oiRow
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		oi, err := strconv.ParseFloat(row.OpenInterest, 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(row.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{TimestampMs: ts, Value: oi})
	}

	daily := series.DailyLast(samples)
	points := make([]models.OIPoint, len(daily))
	for i, d := range daily {
		points[i] = models.OIPoint{Date: d.Date, OI: d.Value}
	}
	log.WithFields(logger.Fields{"rows": len(samples), "days": len(points)}).Info("open interest aggregated")
	return series.TailOI(points, days+8), nil
}
