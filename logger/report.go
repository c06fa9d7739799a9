package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type flowStat struct {
	messages int64
	bytes    int64
}

var (
	errorsReader    int64
	errorsPipeline  int64
	warnsReader     int64
	warnsPipeline   int64
	pageReads       int64
	sourceFallbacks int64
	snapshotWrites  int64
	publishes       int64
	flows           sync.Map // map[string]*flowStat
)

func recordWarn(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsReader, 1)
	} else {
		atomic.AddInt64(&warnsPipeline, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsReader, 1)
	} else {
		atomic.AddInt64(&errorsPipeline, 1)
	}
}

// IncrementPageRead counts one fetched page of history from any source.
func IncrementPageRead(size int) {
	atomic.AddInt64(&pageReads, 1)
	recordFlow("source_pages", size)
}

// IncrementSourceFallback counts one adapter giving way to the next source.
func IncrementSourceFallback() {
	atomic.AddInt64(&sourceFallbacks, 1)
}

// IncrementSnapshotWrite counts one persisted open-interest series file.
func IncrementSnapshotWrite(size int) {
	atomic.AddInt64(&snapshotWrites, 1)
	recordFlow("snapshot_files", size)
}

// IncrementPublish counts one published document.
func IncrementPublish(size int) {
	atomic.AddInt64(&publishes, 1)
	recordFlow("published_documents", size)
}

func recordFlow(name string, size int) {
	v, _ := flows.LoadOrStore(name, &flowStat{})
	fs := v.(*flowStat)
	atomic.AddInt64(&fs.messages, 1)
	atomic.AddInt64(&fs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	flowData := map[string]map[string]int64{}
	flows.Range(func(k, v any) bool {
		name := k.(string)
		fs := v.(*flowStat)
		flowData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&fs.messages),
			"bytes":    atomic.LoadInt64(&fs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_reader":    atomic.LoadInt64(&errorsReader),
		"errors_pipeline":  atomic.LoadInt64(&errorsPipeline),
		"warns_reader":     atomic.LoadInt64(&warnsReader),
		"warns_pipeline":   atomic.LoadInt64(&warnsPipeline),
		"page_reads":       atomic.LoadInt64(&pageReads),
		"source_fallbacks": atomic.LoadInt64(&sourceFallbacks),
		"snapshot_writes":  atomic.LoadInt64(&snapshotWrites),
		"publishes":        atomic.LoadInt64(&publishes),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPct,
		"memory_mb":        int64(memStats.Used) / 1024 / 1024,
		"disk_mb":          int64(diskStats.Used) / 1024 / 1024,
		"flows":            flowData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsPipeline"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_pipeline"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsPipeline"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_pipeline"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("PageReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["page_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("SourceFallbacks"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["source_fallbacks"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("SnapshotWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshot_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Publishes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["publishes"].(int64)))},
	)

	for name, stats := range flowData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
