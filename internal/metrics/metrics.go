// Registers:
//
//	#fundcarry_grid_combos_total
//	#fundcarry_grid_result_rows_total
//	#fundcarry_grid_sweep_duration_seconds
//	#go_* and process_* system metrics
//
// on a private registry served by the dashboard at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	combosTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fundcarry_grid_combos_total",
		Help: "Number of (threshold, confirm_n) combinations evaluated",
	})
	resultRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fundcarry_grid_result_rows_total",
		Help: "Number of grid result rows produced",
	})
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fundcarry_grid_sweep_duration_seconds",
		Help:    "Wall time of a full parameter sweep",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)

func init() {
	registry.MustRegister(combosTotal, resultRowsTotal, sweepDuration)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ObserveSweep records the outcome of one grid sweep.
func ObserveSweep(combos, rows int, elapsed time.Duration) {
	combosTotal.Add(float64(combos))
	resultRowsTotal.Add(float64(rows))
	sweepDuration.Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
