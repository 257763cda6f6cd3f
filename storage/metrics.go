// metrics.go mirrors the teacher's pkg/metrics.go: a tiny metricsSink
// abstraction so storage can be used with or without Prometheus, switching
// on whether the caller passed a registry via WithMetrics.
//
// © 2025 assetpipe authors. MIT License.
package storage

import "github.com/prometheus/client_golang/prometheus"

// prometheusRegisterer is the subset of *prometheus.Registry that
// newPromMetrics needs, kept as an interface so tests can supply a
// throwaway registry without importing more than necessary.
type prometheusRegisterer interface {
	MustRegister(...prometheus.Collector)
}

type metricsSink interface {
	incOverflowNode()
	incOverflowRequest()
	incGroupsProcessed()
	incAffinityHit()
}

type noopMetrics struct{}

func (noopMetrics) incOverflowNode()    {}
func (noopMetrics) incOverflowRequest() {}
func (noopMetrics) incGroupsProcessed() {}
func (noopMetrics) incAffinityHit()     {}

type promMetrics struct {
	overflowNodes    prometheus.Counter
	overflowRequests prometheus.Counter
	groupsProcessed  prometheus.Counter
	affinityHits     prometheus.Counter
}

func newPromMetrics(reg prometheusRegisterer) *promMetrics {
	m := &promMetrics{
		overflowNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_storage",
			Name:      "overflow_nodes_total",
			Help:      "Number of group nodes allocated outside the fixed pool.",
		}),
		overflowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_storage",
			Name:      "overflow_requests_total",
			Help:      "Number of file requests allocated outside the fixed pool.",
		}),
		groupsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_storage",
			Name:      "groups_processed_total",
			Help:      "Number of group load-callback invocations.",
		}),
		affinityHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_storage",
			Name:      "affinity_hits_total",
			Help:      "Number of times the I/O loop selected the previously processed group.",
		}),
	}
	reg.MustRegister(m.overflowNodes, m.overflowRequests, m.groupsProcessed, m.affinityHits)
	return m
}

func (m *promMetrics) incOverflowNode()    { m.overflowNodes.Inc() }
func (m *promMetrics) incOverflowRequest() { m.overflowRequests.Inc() }
func (m *promMetrics) incGroupsProcessed() { m.groupsProcessed.Inc() }
func (m *promMetrics) incAffinityHit()     { m.affinityHits.Inc() }
