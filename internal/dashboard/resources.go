package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"fundcarry/logger"
)

// hostSample is one reading of host utilisation while a sweep runs.
type hostSample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskPath    string    `json:"disk_path,omitempty"`
	DiskUsed    uint64    `json:"disk_used,omitempty"`
	DiskTotal   uint64    `json:"disk_total,omitempty"`
	DiskPct     float64   `json:"disk_percent,omitempty"`
}

// Host probes; replaced in tests.
var (
	cpuPercentFn  = func(ctx context.Context) ([]float64, error) { return cpu.PercentWithContext(ctx, 0, false) }
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

// hostSampler keeps the last limit host samples taken every interval.
type hostSampler struct {
	mu      sync.RWMutex
	samples []hostSample
	limit   int

	interval time.Duration
	diskPath string
	log      *logger.Entry
}

func newHostSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *hostSampler {
	if limit <= 0 {
		limit = 200
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &hostSampler{
		limit:    limit,
		interval: interval,
		diskPath: diskPath,
		log:      log.WithComponent("host_sampler"),
	}
}

// run samples until ctx is cancelled. The first sample is taken immediately.
func (s *hostSampler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if sample, err := s.sample(ctx); err != nil {
			s.log.WithError(err).Debug("host sample failed")
		} else {
			s.add(sample)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sample reads cpu and memory; disk usage is optional because the
// configured path may not exist until results are written.
func (s *hostSampler) sample(ctx context.Context) (hostSample, error) {
	pct, err := cpuPercentFn(ctx)
	if err != nil {
		return hostSample{}, err
	}
	vm, err := memoryStatsFn(ctx)
	if err != nil {
		return hostSample{}, err
	}

	out := hostSample{
		Timestamp:   time.Now(),
		MemoryUsed:  vm.Used,
		MemoryTotal: vm.Total,
		MemoryPct:   vm.UsedPercent,
	}
	if len(pct) > 0 {
		out.CPUPercent = pct[0]
	}

	if s.diskPath != "" {
		if du, err := diskUsageFn(ctx, s.diskPath); err == nil {
			out.DiskPath = s.diskPath
			out.DiskUsed = du.Used
			out.DiskTotal = du.Total
			out.DiskPct = du.UsedPercent
		} else {
			s.log.WithError(err).WithFields(logger.Fields{"path": s.diskPath}).Debug("disk usage unavailable")
		}
	}
	return out, nil
}

func (s *hostSampler) add(sample hostSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	if over := len(s.samples) - s.limit; over > 0 {
		s.samples = append(s.samples[:0:0], s.samples[over:]...)
	}
}

func (s *hostSampler) snapshot() []hostSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hostSample(nil), s.samples...)
}
