package processor

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appconfig "derivflow/config"
	"derivflow/internal/series"
	"derivflow/internal/snapshot"
	"derivflow/logger"
	"derivflow/models"
	"derivflow/reader/binance"
	"derivflow/reader/bybit"
	"derivflow/reader/okx"
)

// Funding needs the scoring window plus the latest day before a z-score
// is worth anything.
const minFundingDays = 11

// Processor resolves the per-instrument stress metrics. Funding history
// is asked of bybit first, then okx, then binance; open interest goes
// okx first, then bybit, then binance, and finally the persisted
// snapshot series when every live source comes up short.
type Processor struct {
	config  *appconfig.Config
	bybit   *bybit.Reader
	okx     *okx.Reader
	binance *binance.Reader
	store   *snapshot.Store
	pacer   *rate.Limiter
	log     *logger.Log
}

func New(cfg *appconfig.Config) *Processor {
	return &Processor{
		config:  cfg,
		bybit:   bybit.NewReader(cfg),
		okx:     okx.NewReader(cfg),
		binance: binance.NewReader(cfg),
		store:   snapshot.NewStore(cfg.Pipeline.SnapshotDir, cfg.Pipeline.SnapshotCap),
		pacer:   rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		log:     logger.GetLogger(),
	}
}

// Run walks the configured instruments sequentially and returns the
// scored items plus a label naming the sources that produced them.
// Instruments with no usable history from any source are skipped.
func (p *Processor) Run(ctx context.Context) ([]models.Item, string) {
	log := p.log.WithComponent("processor")
	items := make([]models.Item, 0, len(p.config.Instruments))
	winners := map[string]bool{}

	for i, inst := range p.config.Instruments {
		if i > 0 {
			if err := p.pacer.Wait(ctx); err != nil {
				log.WithError(err).Warn("Run cancelled")
				break
			}
		}

		funding, fundingSrc := runChain(ctx, log, inst.ID, "funding_z", p.fundingAdapters(inst))
		oi, oiSrc := runChain(ctx, log, inst.ID, "oi_delta_z", p.oiAdapters(inst))

		if funding.SampleDays == 0 && oi.SampleDays == 0 {
			log.WithFields(logger.Fields{"instrument": inst.ID}).Warn("No usable history, skipping instrument")
			continue
		}

		if fundingSrc != "" {
			winners[fundingSrc] = true
		}
		if oiSrc != "" {
			winners[oiSrc] = true
		}
		items = append(items, models.Item{
			ID:          inst.ID,
			FundingZ:    funding.Z,
			OIDeltaZ:    oi.Z,
			FundingDays: funding.SampleDays,
			OIDays:      oi.SampleDays,
		})
	}

	return items, sourceLabel(winners)
}

func (p *Processor) fundingAdapters(inst appconfig.InstrumentConfig) []Adapter {
	var adapters []Adapter
	if p.config.Source.Bybit.Enabled && inst.Bybit != "" {
		symbol := inst.Bybit
		adapters = append(adapters, Adapter{Name: "bybit", Run: func(ctx context.Context) Outcome {
			points, err := p.bybit.FundingDaily(ctx, symbol, p.config.Pipeline.LookbackDays)
			if err != nil {
				return failure(err)
			}
			return fundingOutcome(points)
		}})
	}
	if p.config.Source.Okx.Enabled && inst.Okx != "" {
		instID := inst.Okx
		adapters = append(adapters, Adapter{Name: "okx", Run: func(ctx context.Context) Outcome {
			points, err := p.okx.FundingDaily(ctx, instID, p.config.Pipeline.LookbackDays)
			if err != nil {
				return failure(err)
			}
			return fundingOutcome(points)
		}})
	}
	if p.config.Source.Binance.Enabled && inst.Binance != "" {
		symbol := inst.Binance
		adapters = append(adapters, Adapter{Name: "binance", Run: func(ctx context.Context) Outcome {
			points, err := p.binance.FundingDaily(ctx, symbol, p.config.Pipeline.LookbackDays)
			if err != nil {
				return failure(err)
			}
			return fundingOutcome(points)
		}})
	}
	return adapters
}

func (p *Processor) oiAdapters(inst appconfig.InstrumentConfig) []Adapter {
	var adapters []Adapter
	if p.config.Source.Okx.Enabled && inst.Okx != "" {
		instID := inst.Okx
		adapters = append(adapters, Adapter{Name: "okx", Run: func(ctx context.Context) Outcome {
			points, err := p.okx.OIDaily(ctx, instID, p.config.Pipeline.LookbackDays)
			if err != nil {
				return failure(err)
			}
			return oiOutcome(points)
		}})
	}
	if p.config.Source.Bybit.Enabled && inst.Bybit != "" {
		symbol := inst.Bybit
		adapters = append(adapters, Adapter{Name: "bybit", Run: func(ctx context.Context) Outcome {
			points, err := p.bybit.OIDaily(ctx, symbol, p.config.Pipeline.LookbackDays)
			if err != nil {
				return failure(err)
			}
			return oiOutcome(points)
		}})
	}
	if p.config.Source.Binance.Enabled && inst.Binance != "" {
		symbol := inst.Binance
		adapters = append(adapters, Adapter{Name: "binance", Run: func(ctx context.Context) Outcome {
			points, err := p.binance.OIDaily(ctx, symbol, p.config.Pipeline.LookbackDays)
			if err != nil {
				return failure(err)
			}
			return oiOutcome(points)
		}})
	}
	adapters = append(adapters, p.snapshotAdapter(inst))
	return adapters
}

// snapshotAdapter scores the persisted open interest series. When a
// current reading is available it is merged in and the series is
// written back before scoring; a failed write never blocks the score.
func (p *Processor) snapshotAdapter(inst appconfig.InstrumentConfig) Adapter {
	return Adapter{Name: "snapshot", Run: func(ctx context.Context) Outcome {
		log := p.log.WithComponent("processor").WithFields(logger.Fields{"instrument": inst.ID})

		ser := p.store.Load(inst.ID)
		if p.config.Source.Okx.Enabled && inst.Okx != "" {
			cur, err := p.okx.CurrentOI(ctx, inst.Okx)
			if err != nil {
				log.WithError(err).Warn("Current open interest unavailable, scoring persisted series")
			} else {
				ser = snapshot.Merge(ser, cur)
				if err := p.store.Save(inst.ID, ser); err != nil {
					log.WithError(err).Warn("Snapshot write failed")
				}
			}
		}
		return oiOutcome(ser)
	}}
}

func fundingOutcome(points []models.DailyPoint) Outcome {
	if len(points) < minFundingDays {
		return Outcome{}
	}
	latest := points[len(points)-1].Value
	hist := make([]*float64, 0, len(points)-1)
	for _, pt := range points[:len(points)-1] {
		v := pt.Value
		hist = append(hist, &v)
	}
	z := series.ZScore(hist, latest)
	if z == nil {
		return Outcome{}
	}
	return success(z, len(points))
}

func oiOutcome(points []models.OIPoint) Outcome {
	z, days := series.DeltaZFromSeries(points)
	if z == nil {
		return Outcome{}
	}
	return success(z, days)
}

// sourceLabel names the live sources that contributed, with the
// snapshot fallback tagged separately when it was the one that scored.
func sourceLabel(winners map[string]bool) string {
	snapshotUsed := winners["snapshot"]
	live := make([]string, 0, len(winners))
	for name := range winners {
		if name != "snapshot" {
			live = append(live, name)
		}
	}
	sort.Strings(live)
	label := strings.Join(live, "/")
	if snapshotUsed {
		if label == "" {
			return "fallback snapshot"
		}
		label += " + fallback snapshot"
	}
	return label
}
