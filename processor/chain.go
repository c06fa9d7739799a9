package processor

import (
	"context"

	"derivflow/logger"
	"derivflow/models"
)

// Outcome is the result of asking one source for a metric. A source
// either produced a usable result, failed outright, or came back with
// too little history to score.
type Outcome struct {
	Result models.MetricResult
	Err    error
}

// OK reports whether the outcome carries a scorable result.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result.SampleDays > 0
}

func success(z *float64, days int) Outcome {
	return Outcome{Result: models.MetricResult{Z: z, SampleDays: days}}
}

func failure(err error) Outcome {
	return Outcome{Err: err}
}

// Adapter binds a source name to a fetch-and-score closure.
type Adapter struct {
	Name string
	Run  func(ctx context.Context) Outcome
}

// runChain tries each adapter in order and returns the first usable
// result along with the name of the source that produced it. A source
// that errors and a source that returns thin history are treated the
// same way: move on to the next one.
func runChain(ctx context.Context, log *logger.Entry, instrument, metric string, adapters []Adapter) (models.MetricResult, string) {
	for i, a := range adapters {
		out := a.Run(ctx)
		if out.OK() {
			log.WithFields(logger.Fields{
				"instrument":  instrument,
				"metric":      metric,
				"source":      a.Name,
				"sample_days": out.Result.SampleDays,
			}).Info("Metric resolved")
			return out.Result, a.Name
		}

		entry := log.WithFields(logger.Fields{
			"instrument": instrument,
			"metric":     metric,
			"source":     a.Name,
		})
		if out.Err != nil {
			entry = entry.WithError(out.Err)
		}
		if i < len(adapters)-1 {
			logger.IncrementSourceFallback()
			entry.Warn("Source unusable, falling back")
		} else {
			entry.Warn("All sources exhausted for metric")
		}
	}
	return models.MetricResult{}, ""
}
