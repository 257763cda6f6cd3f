package packgroup

import "github.com/prometheus/client_golang/prometheus"

type prometheusRegisterer interface {
	MustRegister(...prometheus.Collector)
}

type metricsSink interface {
	incBufferGrowth()
	incReadErrors()
	incIndexBuilds()
	incIndexHits()
}

type noopMetrics struct{}

func (noopMetrics) incBufferGrowth() {}
func (noopMetrics) incReadErrors()   {}
func (noopMetrics) incIndexBuilds()  {}
func (noopMetrics) incIndexHits()    {}

type promMetrics struct {
	bufferGrowths prometheus.Counter
	readErrors    prometheus.Counter
	indexBuilds   prometheus.Counter
	indexHits     prometheus.Counter
}

func newPromMetrics(reg prometheusRegisterer) *promMetrics {
	m := &promMetrics{
		bufferGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_packgroup",
			Name:      "buffer_growths_total",
			Help:      "Pool buffers resized because no idle buffer was large enough.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_packgroup",
			Name:      "read_errors_total",
			Help:      "Archive reads that returned fewer bytes than the index promised.",
		}),
		indexBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_packgroup",
			Name:      "index_builds_total",
			Help:      "Archives opened whose Badger index had to be built from the manifest.",
		}),
		indexHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_packgroup",
			Name:      "index_cache_hits_total",
			Help:      "Archives opened whose Badger index was already built from a prior run.",
		}),
	}
	reg.MustRegister(m.bufferGrowths, m.readErrors, m.indexBuilds, m.indexHits)
	return m
}

func (m *promMetrics) incBufferGrowth() { m.bufferGrowths.Inc() }
func (m *promMetrics) incReadErrors()   { m.readErrors.Inc() }
func (m *promMetrics) incIndexBuilds()  { m.indexBuilds.Inc() }
func (m *promMetrics) incIndexHits()    { m.indexHits.Inc() }
