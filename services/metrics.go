package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/staple-duck/snh/errors"
)

// MetricsService records hierarchy operation metrics
type MetricsService interface {
	ObserveOperation(op string, err error, duration time.Duration)
	AddNodesDeleted(n int)
	AddNodesCloned(n int)
	SetForestSize(n int)
}

// PrometheusMetrics exposes hierarchy metrics as Prometheus collectors
type PrometheusMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	nodesDeleted prometheus.Counter
	nodesCloned  prometheus.Counter
	forestSize   prometheus.Gauge
}

// NewPrometheusMetrics registers the collectors with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tree_operations_total",
			Help: "Hierarchy operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tree_operation_duration_seconds",
			Help:    "Time spent in hierarchy operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		nodesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tree_nodes_deleted_total",
			Help: "Nodes removed by cascade deletes",
		}),
		nodesCloned: factory.NewCounter(prometheus.CounterOpts{
			Name: "tree_nodes_cloned_total",
			Help: "Nodes created by subtree clones",
		}),
		forestSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tree_nodes_last_listed",
			Help: "Node count seen by the most recent find-all",
		}),
	}
}

// ObserveOperation counts an operation under its error kind, or "ok"
func (m *PrometheusMetrics) ObserveOperation(op string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.TypeOf(err))
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) AddNodesDeleted(n int) { m.nodesDeleted.Add(float64(n)) }

func (m *PrometheusMetrics) AddNodesCloned(n int) { m.nodesCloned.Add(float64(n)) }

func (m *PrometheusMetrics) SetForestSize(n int) { m.forestSize.Set(float64(n)) }

// NoOpMetrics discards all observations
type NoOpMetrics struct{}

func (NoOpMetrics) ObserveOperation(string, error, time.Duration) {}
func (NoOpMetrics) AddNodesDeleted(int)                           {}
func (NoOpMetrics) AddNodesCloned(int)                            {}
func (NoOpMetrics) SetForestSize(int)                             {}
