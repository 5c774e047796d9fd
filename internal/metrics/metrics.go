package metrics

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeCancelled   = "cancelled"
	OutcomeLaunchError = "launch_error"
	OutcomeFault       = "fault"
)

var (
	registry = prometheus.NewRegistry()

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leash",
		Name:      "runs_total",
		Help:      "Total number of runs by outcome.",
	}, []string{"outcome"})

	reapedProcesses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "leash",
		Name:      "reaped_processes_total",
		Help:      "Total number of descendant processes terminated by the reaper.",
	})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "leash",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of runs that exited on their own.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "leash",
		Name:      "build_info",
		Help:      "Build metadata for the running leash binary.",
	}, []string{"go_version", "vcs_revision", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(runsTotal, reapedProcesses, runDuration, buildInfo)
}

// Registry returns the Prometheus registry containing all leash metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncRun records one run with the given outcome label.
func IncRun(outcome string) {
	if outcome == "" {
		return
	}
	runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRunDuration records the duration of a naturally exited run.
func ObserveRunDuration(d time.Duration) {
	runDuration.Observe(d.Seconds())
}

// AddReapedProcesses increments the reaped-process counter.
func AddReapedProcesses(n int) {
	if n <= 0 {
		return
	}
	reapedProcesses.Add(float64(n))
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs_revision": "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
