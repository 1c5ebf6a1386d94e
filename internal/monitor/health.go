package monitor

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// SystemSnapshot is a point-in-time view of host resource usage,
// reported on the health endpoint
type SystemSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
}

// CollectSnapshot gathers current CPU and memory usage. Failures are
// logged and leave the corresponding fields zero; health reporting must
// not take the service down.
func CollectSnapshot(logger *zap.Logger) SystemSnapshot {
	snapshot := SystemSnapshot{Timestamp: time.Now().UTC()}

	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		logger.Warn("Failed to read CPU usage", zap.Error(err))
	} else if len(cpuPercent) > 0 {
		snapshot.CPUPercent = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("Failed to read memory usage", zap.Error(err))
	} else {
		snapshot.MemoryPercent = memInfo.UsedPercent
		snapshot.MemoryUsedMB = memInfo.Used / (1 << 20)
		snapshot.MemoryTotalMB = memInfo.Total / (1 << 20)
	}

	return snapshot
}
