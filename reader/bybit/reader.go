// Package bybit reads funding-rate and open-interest history from the
// Bybit v5 market API.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	bybit "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"

	appconfig "derivflow/config"
	"derivflow/internal/fetch"
	"derivflow/logger"
	"derivflow/models"
)

// Reader fetches market history from Bybit. One SDK client is held per
// configured base URL; the fallback base is only consulted after the
// primary exhausted its retries.
type Reader struct {
	config  *appconfig.Config
	clients []*bybit.Client
	policy  fetch.Policy
	limiter *rate.Limiter
	log     *logger.Log
}

// NewReader creates a Bybit history reader using the shared retry
// policy and connection pool settings.
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

	clients := make([]*bybit.Client, 0, 2)
	for _, base := range cfg.Source.Bybit.Bases() {
		client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
		client.HTTPClient = httpClient
		clients = append(clients, client)
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
		clients: clients,
		policy: fetch.Policy{
			MaxAttempts:       cfg.Reader.Retry.MaxAttempts,
			BaseDelay:         cfg.Reader.Retry.BaseDelay,
			BackoffMultiplier: cfg.Reader.Retry.BackoffMultiplier,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}

	log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"bases":   cfg.Source.Bybit.Bases(),
		"timeout": cfg.Reader.Timeout,
	}).Info("bybit reader initialized")

	return r
}

// historyPage is the result envelope shared by the v5 market history
// endpoints: a list of rows plus the cursor of the next page.
type historyPage struct {
	List           []json.RawMessage `json:"list"`
	NextPageCursor string            `json:"nextPageCursor"`
}

// page runs one market call against each configured base in order,
// retrying per the policy, and decodes the shared history envelope.
// A non-zero retCode in the body is a failure even on HTTP 200.
func (r *Reader) page(ctx context.Context, call func(*bybit.Client) (*bybit.ServerResponse, error)) (*historyPage, error) {
	var lastErr error
	for _, client := range r.clients {
		var page historyPage
		err := r.policy.Do(ctx, func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			resp, err := call(client)
			if err != nil {
				return err
			}
			if resp.RetCode != 0 {
				return fmt.Errorf("bybit error: retCode=%d retMsg=%q", resp.RetCode, resp.RetMsg)
			}
			if resp.Result == nil {
				return fmt.Errorf("%w: missing result envelope", models.ErrSourceFormat)
			}
			payload, err := json.Marshal(resp.Result)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(payload, &page); err != nil {
				return fmt.Errorf("%w: %v", models.ErrSourceFormat, err)
			}
			return nil
		})
		if err == nil {
			return &page, nil
		}
		lastErr = err
		r.log.WithComponent("bybit_reader").WithError(err).Warn("base exhausted, trying next")
	}
	return nil, lastErr
}

func (r *Reader) pageLimit() int {
	if l := r.config.Source.Bybit.PageLimit; l > 0 {
		return l
	}
	return 200
}

func (r *Reader) maxPages() int {
	if m := r.config.Source.Bybit.MaxPages; m > 0 {
		return m
	}
	return 8
}
