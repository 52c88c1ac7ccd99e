package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes the alerting pipeline's operational counters.
type Collector struct {
	samplesStored  prometheus.Counter
	samplesSkipped prometheus.Counter
	evaluations    *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	sweepDeleted   *prometheus.CounterVec
}

// NewCollector registers the alerting metrics with the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		samplesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "kpiwatch_samples_stored_total",
			Help: "Total number of metric samples stored",
		}),
		samplesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "kpiwatch_samples_skipped_total",
			Help: "Total number of metric samples skipped by the ingestion interval gate",
		}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_evaluations_total",
			Help: "Total number of rule evaluations by resulting status",
		}, []string{"status"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_status_transitions_total",
			Help: "Total number of rule status transitions",
		}, []string{"from", "to"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_notifications_total",
			Help: "Total number of notification dispatches by severity and result",
		}, []string{"severity", "result"}),
		sweepDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_sweep_deleted_rows_total",
			Help: "Total number of rows deleted by retention sweeps",
		}, []string{"table"}),
	}
}

// SampleStored counts a stored sample.
func (c *Collector) SampleStored() {
	if c == nil {
		return
	}
	c.samplesStored.Inc()
}

// SampleSkipped counts an interval-gated skip.
func (c *Collector) SampleSkipped() {
	if c == nil {
		return
	}
	c.samplesSkipped.Inc()
}

// Evaluation counts one rule evaluation by resulting status.
func (c *Collector) Evaluation(status string) {
	if c == nil {
		return
	}
	c.evaluations.WithLabelValues(status).Inc()
}

// Transition counts a status transition.
func (c *Collector) Transition(from, to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(from, to).Inc()
}

// Notification counts a dispatch outcome.
func (c *Collector) Notification(severity, result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(severity, result).Inc()
}

// SweepDeleted counts rows removed by a retention sweep.
func (c *Collector) SweepDeleted(table string, rows int64) {
	if c == nil || rows <= 0 {
		return
	}
	c.sweepDeleted.WithLabelValues(table).Add(float64(rows))
}
