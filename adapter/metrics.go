package adapter

import "github.com/prometheus/client_golang/prometheus"

type prometheusRegisterer interface {
	MustRegister(...prometheus.Collector)
}

type metricsSink interface {
	incOverflowAcquire()
	incOverflowDestroyed()
	incRepin()
	incStaleReclaim()
	incDedupedLoad()
}

type noopMetrics struct{}

func (noopMetrics) incOverflowAcquire()  {}
func (noopMetrics) incOverflowDestroyed() {}
func (noopMetrics) incRepin()             {}
func (noopMetrics) incStaleReclaim()      {}
func (noopMetrics) incDedupedLoad()       {}

type promMetrics struct {
	overflowAcquires  prometheus.Counter
	overflowDestroyed prometheus.Counter
	repins            prometheus.Counter
	staleReclaims     prometheus.Counter
	dedupedLoads      prometheus.Counter
}

func newPromMetrics(reg prometheusRegisterer) *promMetrics {
	m := &promMetrics{
		overflowAcquires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_adapter",
			Name:      "overflow_acquires_total",
			Help:      "Acquires that fell back to a heap-allocated asset because the slot cache was full.",
		}),
		overflowDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_adapter",
			Name:      "overflow_destroyed_total",
			Help:      "Overflow assets whose final release triggered destruction.",
		}),
		repins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_adapter",
			Name:      "repins_total",
			Help:      "Acquires that reclaimed a slot still on the free list instead of reloading.",
		}),
		staleReclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_adapter",
			Name:      "stale_reclaims_total",
			Help:      "Pins that evicted a slot whose previous occupant's back-reference was still live.",
		}),
		dedupedLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_adapter",
			Name:      "deduped_loads_total",
			Help:      "Acquires that attached to an in-flight load instead of submitting a new one.",
		}),
	}
	reg.MustRegister(m.overflowAcquires, m.overflowDestroyed, m.repins, m.staleReclaims, m.dedupedLoads)
	return m
}

func (m *promMetrics) incOverflowAcquire()  { m.overflowAcquires.Inc() }
func (m *promMetrics) incOverflowDestroyed() { m.overflowDestroyed.Inc() }
func (m *promMetrics) incRepin()             { m.repins.Inc() }
func (m *promMetrics) incStaleReclaim()      { m.staleReclaims.Inc() }
func (m *promMetrics) incDedupedLoad()       { m.dedupedLoads.Inc() }
