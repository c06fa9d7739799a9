// Package binance reads funding-rate and open-interest history from
// the Binance USDⓈ-M futures API. It backs the last exchange slot of
// both fallback chains.
package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	futures "github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	appconfig "derivflow/config"
	"derivflow/internal/fetch"
	"derivflow/internal/series"
	"derivflow/logger"
	"derivflow/models"
)

// Reader fetches market history from Binance futures using the
// binance-go client.
type Reader struct {
	config  *appconfig.Config
	client  *futures.Client
	policy  fetch.Policy
	limiter *rate.Limiter
	log     *logger.Log
}

func NewReader(cfg *appconfig.Config) *Reader {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Reader.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Reader.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Reader.Timeout}

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient
	if base := cfg.Source.Binance.Base; base != "" {
		if parsed, err := url.Parse(base); err == nil && parsed.Host != "" {
			client.SetApiEndpoint(parsed.Scheme + "://" + parsed.Host)
		}
	}

	rps := cfg.Reader.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Reader.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}

	r := &Reader{
		config: cfg,
		client: client,
		policy: fetch.Policy{
			MaxAttempts:       cfg.Reader.Retry.MaxAttempts,
			BaseDelay:         cfg.Reader.Retry.BaseDelay,
			BackoffMultiplier: cfg.Reader.Retry.BackoffMultiplier,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}

	log.WithComponent("binance_reader").WithFields(logger.Fields{
		"timeout": cfg.Reader.Timeout,
	}).Info("binance reader initialized")

	return r
}

// FundingDaily returns the per-day mean funding rate for a symbol,
// trimmed to the trailing days+1 calendar days. Binance serves up to
// 1000 prints in one call, enough for the whole lookback at the
// 8-hour funding cadence.
func (r *Reader) FundingDaily(ctx context.Context, symbol string, days int) ([]models.DailyPoint, error) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{"symbol": symbol, "operation": "funding_daily"})

	var rows []*futures.FundingRate
	err := r.policy.Do(ctx, func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		rows, err = r.client.NewFundingRateService().Symbol(symbol).Limit(1000).Do(ctx)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("funding history fetch failed")
		return nil, err
	}
	logger.IncrementPageRead(len(rows))

	samples := make([]models.Sample, 0, len(rows))
	for _, row := range rows {
		rateVal, err := strconv.ParseFloat(row.FundingRate, 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{TimestampMs: row.FundingTime, Value: rateVal})
	}

	daily := series.DailyMean(samples)
	log.WithFields(logger.Fields{"points": len(samples), "days": len(daily)}).Info("funding history aggregated")
	return series.Tail(daily, days+1), nil
}

// OIDaily returns the daily open-interest series for a symbol, trimmed
// to the trailing days+8 calendar days. Binance caps the statistics
// window at 30 days, which is enough for the delta transform but thin
// for scoring; the chain orders this source last for OI.
func (r *Reader) OIDaily(ctx context.Context, symbol string, days int) ([]models.OIPoint, error) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{"symbol": symbol, "operation": "oi_daily"})

	limit := days + 8
	if limit > 500 {
		limit = 500
	}

	var rows []*futures.OpenInterestStatistic
	err := r.policy.Do(ctx, func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		rows, err = r.client.NewOpenInterestStatisticsService().Symbol(symbol).Period("1d").Limit(limit).Do(ctx)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("open interest fetch failed")
		return nil, err
	}
	logger.IncrementPageRead(len(rows))

	samples := make([]models.Sample, 0, len(rows))
	for _, row := range rows {
		oi, err := strconv.ParseFloat(row.SumOpenInterest, 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{TimestampMs: row.Timestamp, Value: oi})
	}

	daily := series.DailyLast(samples)
	points := make([]models.OIPoint, len(daily))
	for i, d := range daily {
		points[i] = models.OIPoint{Date: d.Date, OI: d.Value}
	}
	log.WithFields(logger.Fields{"rows": len(samples), "days": len(points)}).Info("open interest aggregated")
	return series.TailOI(points, days+8), nil
}
