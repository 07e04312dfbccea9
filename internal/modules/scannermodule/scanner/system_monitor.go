package scanner

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemLoadMonitor samples host CPU and memory pressure so the dispatcher
// can defer new probe workers under sustained load.
type SystemLoadMonitor struct {
	mu          sync.RWMutex
	cpuUsage    float64 // percent, 0-100
	memoryUsage float64 // percent, 0-100
	updateTime  time.Time

	cpuThreshold float64
	memThreshold float64

	numCPU int
	stopCh chan struct{}
	once   sync.Once
}

// NewSystemLoadMonitor creates a monitor and starts background sampling.
func NewSystemLoadMonitor(cpuThreshold, memThreshold float64) *SystemLoadMonitor {
	if cpuThreshold <= 0 {
		cpuThreshold = 90
	}
	if memThreshold <= 0 {
		memThreshold = 90
	}
	monitor := &SystemLoadMonitor{
		cpuThreshold: cpuThreshold,
		memThreshold: memThreshold,
		numCPU:       runtime.NumCPU(),
		updateTime:   time.Now(),
		stopCh:       make(chan struct{}),
	}

	go monitor.backgroundMonitor()

	return monitor
}

// backgroundMonitor periodically updates system load metrics
func (m *SystemLoadMonitor) backgroundMonitor() {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.updateMetrics()
		case <-m.stopCh:
			return
		}
	}
}

// updateMetrics refreshes the system load metrics
func (m *SystemLoadMonitor) updateMetrics() {
	var cpuUsage, memUsage float64

	// Percent with zero interval reuses the kernel counters sampled since the
	// previous call, so this does not block the ticker.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuUsage = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsage = vm.UsedPercent
	}

	m.mu.Lock()
	m.cpuUsage = cpuUsage
	m.memoryUsage = memUsage
	m.updateTime = time.Now()
	m.mu.Unlock()
}

// GetMetrics returns the current system load metrics
func (m *SystemLoadMonitor) GetMetrics() (cpuUsage, memoryUsage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cpuUsage, m.memoryUsage
}

// ShouldThrottle reports whether the host is loaded enough that new probe
// workers should wait.
func (m *SystemLoadMonitor) ShouldThrottle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cpuUsage > m.cpuThreshold || m.memoryUsage > m.memThreshold
}

// GetSystemInfo returns system hardware information
func (m *SystemLoadMonitor) GetSystemInfo() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"num_cpu":      m.numCPU,
		"cpu_usage":    m.cpuUsage,
		"memory_usage": m.memoryUsage,
		"goroutines":   runtime.NumGoroutine(),
	}
}

// Stop ends background sampling.
func (m *SystemLoadMonitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}
