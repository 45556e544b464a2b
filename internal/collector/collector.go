package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

const bytesPerMB = 1024 * 1024

// sampleWindow is the measurement interval for CPU percentages.
const sampleWindow = time.Second

// Collector samples system-wide CPU, memory, and per-process metrics
// into one MetricSnapshot.
type Collector struct {
	logger *zap.Logger
	topN   int

	collectThreads bool
	collectIO      bool
	collectHandles bool
}

func New(logger *zap.Logger, topN int, collectThreads, collectIO, collectHandles bool) *Collector {
	if topN > models.MaxTopProcesses {
		topN = models.MaxTopProcesses
	}
	return &Collector{
		logger:         logger,
		topN:           topN,
		collectThreads: collectThreads,
		collectIO:      collectIO,
		collectHandles: collectHandles,
	}
}

// Collect samples the system and returns a snapshot stamped with the
// current time. Per-process failures (short-lived PIDs, permission
// errors) skip the process, never the snapshot.
func (c *Collector) Collect(ctx context.Context) (*models.MetricSnapshot, error) {
	perCore, err := cpu.PercentWithContext(ctx, sampleWindow, true)
	if err != nil {
		return nil, fmt.Errorf("failed to sample CPU: %w", err)
	}

	snapshot := &models.MetricSnapshot{
		Timestamp:         time.Now().Unix(),
		PerCoreCPUPercent: clampPercents(perCore),
	}
	snapshot.TotalCPUPercent = average(snapshot.PerCoreCPUPercent)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sample memory: %w", err)
	}
	snapshot.SystemMemoryTotalMB = float64(vm.Total) / bytesPerMB
	snapshot.SystemMemoryUsedMB = float64(vm.Used) / bytesPerMB

	top, err := c.collectTopProcesses(ctx)
	if err != nil {
		// CPU and memory are still worth reporting
		c.logger.Warn("failed to collect process metrics", zap.Error(err))
	} else {
		snapshot.TopProcesses = top
	}

	return snapshot, nil
}

// collectTopProcesses returns the topN processes by CPU usage, descending.
func (c *Collector) collectTopProcesses(ctx context.Context) ([]models.ProcessMetric, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	metrics := make([]models.ProcessMetric, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPercent, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}

		metric := models.ProcessMetric{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpuPercent,
		}

		if info, err := p.MemoryInfoWithContext(ctx); err == nil && info != nil {
			metric.MemoryMB = float64(info.RSS) / bytesPerMB
		}
		if c.collectThreads {
			if threads, err := p.NumThreadsWithContext(ctx); err == nil {
				metric.ThreadCount = threads
			}
		}
		if c.collectIO {
			if counters, err := p.IOCountersWithContext(ctx); err == nil && counters != nil {
				metric.IOReadMB = float64(counters.ReadBytes) / bytesPerMB
				metric.IOWriteMB = float64(counters.WriteBytes) / bytesPerMB
			}
		}
		if c.collectHandles {
			if fds, err := p.NumFDsWithContext(ctx); err == nil && fds > 0 {
				metric.HandleCount = fds
			}
		}

		metrics = append(metrics, metric)
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].CPUPercent > metrics[j].CPUPercent
	})
	if len(metrics) > c.topN {
		metrics = metrics[:c.topN]
	}
	return metrics, nil
}

// clampPercents bounds sampled values to [0,100]; some platforms report
// slight overshoot under load.
func clampPercents(values []float64) []float64 {
	clamped := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < 0:
			clamped[i] = 0
		case v > 100:
			clamped[i] = 100
		default:
			clamped[i] = v
		}
	}
	return clamped
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
