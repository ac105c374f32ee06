package cli

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/killfeed/pkg/metrics"
)

const systemMetricsInterval = 10 * time.Second

// runSystemMetrics updates process gauges until ctx ends.
func runSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		updateSystemMetrics()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
