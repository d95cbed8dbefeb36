package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"fundcarry/logger"
)

func stubHostProbes(t *testing.T, diskErr error) {
	t.Helper()
	origCPU, origMem, origDisk := cpuPercentFn, memoryStatsFn, diskUsageFn
	t.Cleanup(func() {
		cpuPercentFn, memoryStatsFn, diskUsageFn = origCPU, origMem, origDisk
	})

	cpuPercentFn = func(context.Context) ([]float64, error) { return []float64{42.5}, nil }
	memoryStatsFn = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Used: 1024, Total: 2048, UsedPercent: 50}, nil
	}
	diskUsageFn = func(_ context.Context, path string) (*disk.UsageStat, error) {
		if diskErr != nil {
			return nil, diskErr
		}
		return &disk.UsageStat{Path: path, Used: 4096, Total: 8192, UsedPercent: 50}, nil
	}
}

func TestHostSamplerSample(t *testing.T) {
	stubHostProbes(t, nil)
	s := newHostSampler(3, time.Second, "/data", logger.Logger())

	got, err := s.sample(context.Background())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if got.CPUPercent != 42.5 || got.MemoryPct != 50 || got.DiskPct != 50 || got.DiskPath != "/data" {
		t.Fatalf("unexpected sample: %#v", got)
	}
}

func TestHostSamplerToleratesMissingDisk(t *testing.T) {
	stubHostProbes(t, errors.New("no such file or directory"))
	s := newHostSampler(3, time.Second, "out", logger.Logger())

	got, err := s.sample(context.Background())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if got.DiskPath != "" || got.DiskTotal != 0 {
		t.Fatalf("disk fields should stay empty: %#v", got)
	}
	if got.MemoryTotal != 2048 {
		t.Fatalf("memory not sampled: %#v", got)
	}
}

func TestHostSamplerKeepsLastSamples(t *testing.T) {
	s := newHostSampler(2, time.Second, "", logger.Logger())
	for i := 0; i < 5; i++ {
		s.add(hostSample{CPUPercent: float64(i)})
	}
	got := s.snapshot()
	if len(got) != 2 || got[0].CPUPercent != 3 || got[1].CPUPercent != 4 {
		t.Fatalf("unexpected retained samples: %#v", got)
	}
}

func TestHostSamplerRunStopsOnCancel(t *testing.T) {
	stubHostProbes(t, nil)
	s := newHostSampler(10, time.Millisecond, "", logger.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for len(s.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no sample collected")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop after cancel")
	}
}
