// Package export publishes run records as Prometheus metrics. The registry
// is private to the exporter, so several simulations can be exported side by
// side; WriteText renders it in the text exposition format.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/inference-sim/flowsim/sim/trace"
)

const namespace = "flowsim"

// Exporter turns run records into Prometheus metrics.
type Exporter struct {
	registry *prometheus.Registry

	runs      *prometheus.CounterVec
	energy    *prometheus.CounterVec
	virtual   *prometheus.CounterVec
	duration  *prometheus.GaugeVec
	meanUsage *prometheus.GaugeVec
	peakPower *prometheus.GaugeVec
	usage     *prometheus.HistogramVec
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Machine runs by outcome.",
		}, []string{"machine", "outcome"}),
		energy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_joules_total",
			Help:      "Energy drawn by the PSU during runs.",
		}, []string{"machine"}),
		virtual: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "virtual_seconds_total",
			Help:      "Virtual time spent running workloads.",
		}, []string{"machine"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Virtual duration of the most recent run.",
		}, []string{"machine", "workload"}),
		meanUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_mean_usage_ratio",
			Help:      "Time-weighted CPU utilization of the most recent sampled run.",
		}, []string{"machine", "workload"}),
		peakPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_peak_power_watts",
			Help:      "Peak PSU draw of the most recent sampled run.",
		}, []string{"machine", "workload"}),
		usage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_mean_usage_ratio",
			Help:      "Distribution of time-weighted CPU utilization per sampled run.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"machine"}),
	}
	e.registry.MustRegister(e.runs, e.energy, e.virtual, e.duration, e.meanUsage, e.peakPower, e.usage)
	return e
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe records one run.
func (e *Exporter) Observe(r trace.RunRecord) {
	outcome := "completed"
	if r.Failed() {
		outcome = "failed"
	}
	e.runs.WithLabelValues(r.Machine, outcome).Inc()

	s := trace.SummarizeRun(r)
	if s.Energy > 0 {
		e.energy.WithLabelValues(r.Machine).Add(s.Energy)
	}
	seconds := float64(s.Duration) / 1000
	if seconds > 0 {
		e.virtual.WithLabelValues(r.Machine).Add(seconds)
	}
	e.duration.WithLabelValues(r.Machine, r.Workload).Set(seconds)
	if r.Usage != nil {
		e.meanUsage.WithLabelValues(r.Machine, r.Workload).Set(s.MeanUsage)
		e.usage.WithLabelValues(r.Machine).Observe(s.MeanUsage)
	}
	if r.Power != nil {
		e.peakPower.WithLabelValues(r.Machine, r.Workload).Set(s.PeakPower)
	}
}

// ObserveTrace records every run of st.
func (e *Exporter) ObserveTrace(st *trace.SimulationTrace) {
	if st == nil {
		return
	}
	for _, r := range st.Runs {
		e.Observe(r)
	}
}

// WriteText writes the registry in the Prometheus text exposition format.
func (e *Exporter) WriteText(w io.Writer) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes the text exposition to path, replacing any existing file.
func (e *Exporter) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	if err := e.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
