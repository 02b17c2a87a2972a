// Package metrics instruments experiment loading, directory scans, formulation
// conversions and simulator runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bemekit/internal/errs"
)

const namespace = "bemekit"

// Recorder owns a private registry so that several clients in one process do
// not collide on the default one. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	islands      prometheus.Counter
	scanSkipped  prometheus.Counter
	conversions  *prometheus.CounterVec
	simulations  *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		// Labels: outcome (ok or the lowercase error code)
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "experiment",
			Name:      "loads_total",
			Help:      "Experiment loads by outcome",
		}, []string{"outcome"}),
		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "experiment",
			Name:      "load_duration_seconds",
			Help:      "Time to load an experiment and all of its islands",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		islands: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "experiment",
			Name:      "islands_loaded_total",
			Help:      "Island files decoded",
		}),
		scanSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "skipped_total",
			Help:      "Experiment files and directories skipped during a recursive scan",
		}),
		// Labels: family, outcome
		conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "formulation",
			Name:      "conversions_total",
			Help:      "Formulation conversions by family and outcome",
		}, []string{"family", "outcome"}),
		// Labels: outcome
		simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "External simulator runs by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the recorder's registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

// ObserveLoad records one experiment load.
func (r *Recorder) ObserveLoad(d time.Duration, islands int, err error) {
	if r == nil {
		return
	}
	r.loads.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	r.loadDuration.Observe(d.Seconds())
	r.islands.Add(float64(islands))
}

// ScanSkipped records an experiment file or directory a recursive scan could
// not read.
func (r *Recorder) ScanSkipped() {
	if r == nil {
		return
	}
	r.scanSkipped.Inc()
}

// ObserveConversion records one formulation conversion.
func (r *Recorder) ObserveConversion(family string, err error) {
	if r == nil {
		return
	}
	r.conversions.WithLabelValues(family, outcome(err)).Inc()
}

// ObserveSimulation records one simulator run.
func (r *Recorder) ObserveSimulation(err error) {
	if r == nil {
		return
	}
	r.simulations.WithLabelValues(outcome(err)).Inc()
}

// WriteTextfile dumps the current values in the text exposition format, for
// pickup by a node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
