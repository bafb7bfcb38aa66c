package procsup

import (
	"fmt"
	"runtime"
	"time"

	gopsutilproc "github.com/shirou/gopsutil/v3/process"

	"github.com/jg-phare/mcslauncherd/internal/ratecache"
)

// cpuSampleInterval is the minimum delay between the two CPU probes a
// sample takes; shorter gaps produce meaningless percentages.
const cpuSampleInterval = 200 * time.Millisecond

// Metrics is a point-in-time resource sample for a supervised process. CPU
// is normalized by the machine's logical core count so 100 means every core
// saturated.
type Metrics struct {
	CPUPercent  float64 `json:"cpuPercent"`
	MemoryBytes uint64  `json:"memoryBytes"`
}

var metricsCache = ratecache.New[int, Metrics](2 * time.Second)

// SampleMetrics returns CPU/memory usage for pid, memoized for 2 seconds to
// avoid hammering the OS on frequent status polls.
func SampleMetrics(pid int) (Metrics, error) {
	return metricsCache.Get(pid, func() (Metrics, error) {
		proc, err := gopsutilproc.NewProcess(int32(pid))
		if err != nil {
			return Metrics{}, fmt.Errorf("procsup: open process %d: %w", pid, err)
		}
		cpuPct, err := proc.Percent(cpuSampleInterval)
		if err != nil {
			return Metrics{}, fmt.Errorf("procsup: cpu percent: %w", err)
		}
		memInfo, err := proc.MemoryInfo()
		if err != nil {
			return Metrics{}, fmt.Errorf("procsup: memory info: %w", err)
		}
		return Metrics{
			CPUPercent:  cpuPct / float64(runtime.NumCPU()),
			MemoryBytes: memInfo.RSS,
		}, nil
	})
}
