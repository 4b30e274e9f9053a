// Package prom exports framegraph hook events as Prometheus metrics.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "framegraph"

// Metrics implements the graph, eval and store hooks on top of Prometheus
// collectors. Use [New] to create and register it.
type Metrics struct {
	mutations    *prometheus.CounterVec
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	passNodes    prometheus.Histogram
	nodeEvals    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_mutations_total",
			Help:      "Graph mutations by operation and result.",
		}, []string{"op", "result"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_passes_total",
			Help:      "Evaluation passes by result.",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_pass_duration_seconds",
			Help:      "Wall time of evaluation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		passNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_pass_nodes",
			Help:      "Nodes computed per evaluation pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		nodeEvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_evaluations_total",
			Help:      "Node computations by node type and result.",
		}, []string{"type", "result"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node computations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Project store operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of project store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
	}
	for _, c := range []prometheus.Collector{
		m.mutations, m.passes, m.passDuration, m.passNodes,
		m.nodeEvals, m.nodeDuration, m.storeOps, m.storeLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) OnMutation(_ context.Context, op string, err error) {
	m.mutations.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) OnPassStart(context.Context, string, string) {}

func (m *Metrics) OnNodeEvaluated(_ context.Context, _, _, nodeType string, d time.Duration, err error) {
	m.nodeEvals.WithLabelValues(nodeType, result(err)).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(d.Seconds())
}

func (m *Metrics) OnPassComplete(_ context.Context, _, _ string, nodes int, d time.Duration, err error) {
	m.passes.WithLabelValues(result(err)).Inc()
	m.passDuration.Observe(d.Seconds())
	m.passNodes.Observe(float64(nodes))
}

func (m *Metrics) OnStoreOp(_ context.Context, backend, op string, d time.Duration, err error) {
	m.storeOps.WithLabelValues(backend, op, result(err)).Inc()
	m.storeLatency.WithLabelValues(backend, op).Observe(d.Seconds())
}
