package models

import (
	"errors"
	"time"
)

// ErrSourceFormat marks a response that arrived but did not carry the
// envelope the source normally emits (missing result, wrong types).
var ErrSourceFormat = errors.New("unexpected response shape")

// DateLayout is the calendar-day key used across all daily series.
const DateLayout = "2006-01-02"

// Sample is a single timestamped scalar reading from an exchange,
// produced by a reader and consumed immediately by the aggregators.
type Sample struct {
	TimestampMs int64
	Value       float64
}

// DailyPoint is one aggregated value for a UTC calendar day.
type DailyPoint struct {
	Date  string
	Value float64
}

// OIPoint is one open-interest observation keyed by UTC calendar day.
// It is the only series shape that gets persisted (snapshot files).
type OIPoint struct {
	Date string  `json:"date"`
	OI   float64 `json:"oi"`
}

// MetricResult is the outcome of one (instrument, metric) computation.
// Z is nil exactly when SampleDays is zero.
type MetricResult struct {
	Z          *float64
	SampleDays int
}

// Item is one instrument's entry in the published document.
type Item struct {
	ID          string   `json:"id"`
	FundingZ    *float64 `json:"funding_z"`
	OIDeltaZ    *float64 `json:"oi_delta_z"`
	FundingDays int      `json:"funding_days"`
	OIDays      int      `json:"oi_days"`
}

// Sentiment is the latest Fear & Greed index reading.
type Sentiment struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
	Timestamp      int64  `json:"timestamp"`
}

// Document is the published derivatives snapshot. Consumers read the
// file directly, so field names and shapes are part of the contract.
type Document struct {
	AsOf         string     `json:"as_of"`
	LookbackDays int        `json:"lookback_days"`
	Source       string     `json:"source"`
	Items        []Item     `json:"items"`
	Sentiment    *Sentiment `json:"sentiment,omitempty"`
}

// DateOfMillis converts a millisecond epoch timestamp to its UTC
// calendar day.
func DateOfMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}
