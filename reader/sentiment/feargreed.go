// Package sentiment reads the latest Fear & Greed index from
// alternative.me. One unpaginated GET; failure never blocks a run.
package sentiment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	appconfig "derivflow/config"
	"derivflow/internal/fetch"
	"derivflow/logger"
	"derivflow/models"
)

type Reader struct {
	client *fetch.Client
	log    *logger.Log
}

func NewReader(cfg *appconfig.Config) *Reader {
	policy := fetch.Policy{
		MaxAttempts:       cfg.Reader.Retry.MaxAttempts,
		BaseDelay:         cfg.Reader.Retry.BaseDelay,
		BackoffMultiplier: cfg.Reader.Retry.BackoffMultiplier,
	}
	client := fetch.NewClient(cfg.Source.Sentiment.Bases(), cfg.Reader.Timeout, policy, rate.NewLimiter(rate.Limit(1), 1))
	return &Reader{client: client, log: logger.GetLogger()}
}

// fngResponse is the alternative.me envelope. Every field arrives as a
// string.
type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// Latest returns the most recent Fear & Greed reading.
func (r *Reader) Latest(ctx context.Context) (*models.Sentiment, error) {
	log := r.log.WithComponent("sentiment_reader")

	params := url.Values{}
	params.Set("limit", "1")
	params.Set("format", "json")
	var resp fngResponse
	if err := r.client.GetJSON(ctx, "/fng/", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty fng response", models.ErrSourceFormat)
	}
	row := resp.Data[0]
	value, err := strconv.Atoi(row.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable value %q", models.ErrSourceFormat, row.Value)
	}
	ts, err := strconv.ParseInt(row.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable timestamp %q", models.ErrSourceFormat, row.Timestamp)
	}

	log.WithFields(logger.Fields{"value": value, "classification": row.ValueClassification}).Info("sentiment fetched")
	return &models.Sentiment{Value: value, Classification: row.ValueClassification, Timestamp: ts}, nil
}
