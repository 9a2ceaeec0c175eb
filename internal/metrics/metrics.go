// Package metrics exposes run measurements as Prometheus metrics.
//
// A Recorder owns its own registry so that several can coexist in one
// process (tests, watch mode). It implements gel.Observer.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/gelsim/internal/gel"
)

const namespace = "gelsim"

// Recorder collects run and render measurements.
type Recorder struct {
	registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	fragments prometheus.Counter
	simulated prometheus.Histogram
	render    prometheus.Histogram
}

var _ gel.Observer = (*Recorder)(nil)

// New returns a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed gel runs by stop reason.",
		}, []string{"stop_reason"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_simulated_total",
			Help:      "Fragments migrated across all runs.",
		}),
		simulated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_simulated_seconds",
			Help:      "Simulated electrophoresis time per run.",
			// 1 min to ~68 h
			Buckets: prometheus.ExponentialBuckets(60, 2, 12),
		}),
		render: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_seconds",
			Help:      "Wall-clock time spent rendering the intensity field.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	r.registry.MustRegister(r.runs, r.fragments, r.simulated, r.render)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun records a completed run.
func (r *Recorder) ObserveRun(reason gel.StopReason, elapsedSeconds float64, fragments int) {
	r.runs.WithLabelValues(string(reason)).Inc()
	r.fragments.Add(float64(fragments))
	r.simulated.Observe(elapsedSeconds)
}

// ObserveRender records the duration of one render.
func (r *Recorder) ObserveRender(seconds float64) {
	r.render.Observe(seconds)
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
