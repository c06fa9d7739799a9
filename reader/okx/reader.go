// Package okx reads funding-rate and open-interest history from the
// OKX v5 public API. OKX signals failure through an embedded code
// field, not the HTTP status, so every response is checked in-body.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	appconfig "derivflow/config"
	"derivflow/internal/fetch"
	"derivflow/internal/series"
	"derivflow/logger"
	"derivflow/models"
)

// Reader fetches market history from OKX through the shared fetch
// client (retry, backoff, base fallback).
type Reader struct {
	config *appconfig.Config
	client *fetch.Client
	log    *logger.Log
}

func NewReader(cfg *appconfig.Config) *Reader {
	rps := cfg.Reader.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Reader.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	policy := fetch.Policy{
		MaxAttempts:       cfg.Reader.Retry.MaxAttempts,
		BaseDelay:         cfg.Reader.Retry.BaseDelay,
		BackoffMultiplier: cfg.Reader.Retry.BackoffMultiplier,
	}
	client := fetch.NewClient(cfg.Source.Okx.Bases(), cfg.Reader.Timeout, policy, rate.NewLimiter(rate.Limit(rps), burst))
	return &Reader{config: cfg, client: client, log: logger.GetLogger()}
}

// envelope is the OKX v5 response wrapper. code "0" means success.
type envelope struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func (r *Reader) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	var env envelope
	if err := r.client.GetJSON(ctx, path, params, &env); err != nil {
		return nil, err
	}
	if env.Code != "0" {
		return nil, fmt.Errorf("okx error: code=%s msg=%q", env.Code, env.Msg)
	}
	return &env, nil
}

type fundingRow struct {
	FundingRate string `json:"fundingRate"`
	FundingTime string `json:"fundingTime"`
	Ts          string `json:"ts"`
}

// FundingDaily returns the per-day mean funding rate for an
// instrument, trimmed to the trailing days+1 calendar days.
func (r *Reader) FundingDaily(ctx context.Context, instID string, days int) ([]models.DailyPoint, error) {
	log := r.log.WithComponent("okx_reader").WithFields(logger.Fields{"instId": instID, "operation": "funding_daily"})

	params := url.Values{}
	params.Set("instId", instID)
	params.Set("limit", strconv.Itoa(r.pageLimit()))
	env, err := r.get(ctx, "/api/v5/public/funding-rate-history", params)
	if err != nil {
		log.WithError(err).Warn("funding history fetch failed")
		return nil, err
	}
	logger.IncrementPageRead(len(env.Data))

	samples := make([]models.Sample, 0, len(env.Data))
	for _, item := range env.Data {
		var row fundingRow
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rateVal, err := strconv.ParseFloat(row.FundingRate, 64)
		if err != nil {
			continue
		}
		tsRaw := row.FundingTime
		if tsRaw == "" {
			tsRaw = row.Ts
		}
		ts, err := strconv.ParseInt(tsRaw, 10, 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{TimestampMs: ts, Value: rateVal})
	}

	daily := series.DailyMean(samples)
	log.WithFields(logger.Fields{"points": len(samples), "days": len(daily)}).Info("funding history aggregated")
	return series.Tail(daily, days+1), nil
}

type oiRow struct {
	Ts string `json:"ts"`
	Oi string `json:"oi"`
}

// OIDaily returns the daily open-interest series for an instrument,
// trimmed to the trailing days+8 calendar days. The 1D endpoint is
// tried first; when it yields nothing the 8H endpoint is collapsed to
// one point per day by keeping the last observation.
func (r *Reader) OIDaily(ctx context.Context, instID string, days int) ([]models.OIPoint, error) {
	log := r.log.WithComponent("okx_reader").WithFields(logger.Fields{"instId": instID, "operation": "oi_daily"})

	if points, err := r.oiHistory(ctx, instID, "1D", r.pageLimit()); err == nil && len(points) > 0 {
		log.WithFields(logger.Fields{"days": len(points), "period": "1D"}).Info("open interest aggregated")
		return series.TailOI(points, days+8), nil
	} else if err != nil {
		log.WithError(err).Warn("1D open interest unavailable, trying 8H")
	}

	points, err := r.oiHistory(ctx, instID, "8H", 480)
	if err != nil {
		log.WithError(err).Warn("open interest fetch failed")
		return nil, err
	}
	log.WithFields(logger.Fields{"days": len(points), "period": "8H"}).Info("open interest aggregated")
	return series.TailOI(points, days+8), nil
}

func (r *Reader) oiHistory(ctx context.Context, instID, period string, limit int) ([]models.OIPoint, error) {
	params := url.Values{}
	params.Set("instId", instID)
	params.Set("period", period)
	params.Set("limit", strconv.Itoa(limit))
	env, err := r.get(ctx, "/api/v5/public/open-interest-history", params)
	if err != nil {
		return nil, err
	}
	logger.IncrementPageRead(len(env.Data))

	samples := make([]models.Sample, 0, len(env.Data))
	for _, item := range env.Data {
		var row oiRow
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		oi, err := strconv.ParseFloat(row.Oi, 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(row.Ts, 10, 64)
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
	return points, nil
}

// CurrentOI fetches the single latest open-interest reading for an
// instrument. It feeds the snapshot-series fallback when no source
// serves OI history.
func (r *Reader) CurrentOI(ctx context.Context, instID string) (models.OIPoint, error) {
	params := url.Values{}
	params.Set("instType", "SWAP")
	params.Set("instId", instID)
	env, err := r.get(ctx, "/api/v5/public/open-interest", params)
	if err != nil {
		return models.OIPoint{}, err
	}
	if len(env.Data) == 0 {
		return models.OIPoint{}, fmt.Errorf("%w: empty current OI response", models.ErrSourceFormat)
	}
	var row oiRow
	if err := json.Unmarshal(env.Data[0], &row); err != nil {
		return models.OIPoint{}, fmt.Errorf("%w: %v", models.ErrSourceFormat, err)
	}
	oi, err := strconv.ParseFloat(row.Oi, 64)
	if err != nil {
		return models.OIPoint{}, fmt.Errorf("%w: unparseable oi %q", models.ErrSourceFormat, row.Oi)
	}
	ts, err := strconv.ParseInt(row.Ts, 10, 64)
	if err != nil {
		return models.OIPoint{}, fmt.Errorf("%w: unparseable ts %q", models.ErrSourceFormat, row.Ts)
	}
	return models.OIPoint{Date: models.DateOfMillis(ts), OI: oi}, nil
}

func (r *Reader) pageLimit() int {
	if l := r.config.Source.Okx.PageLimit; l > 0 {
		return l
	}
	return 200
}
