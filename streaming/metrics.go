package streaming

import "github.com/prometheus/client_golang/prometheus"

type prometheusRegisterer interface {
	MustRegister(...prometheus.Collector)
}

type metricsSink interface {
	incLoads()
	incReleases()
	incBufferGrowth()
	incOpenErrors()
}

type noopMetrics struct{}

func (noopMetrics) incLoads()        {}
func (noopMetrics) incReleases()     {}
func (noopMetrics) incBufferGrowth() {}
func (noopMetrics) incOpenErrors()   {}

type promMetrics struct {
	loads         prometheus.Counter
	releases      prometheus.Counter
	bufferGrowths prometheus.Counter
	openErrors    prometheus.Counter
}

func newPromMetrics(reg prometheusRegisterer) *promMetrics {
	m := &promMetrics{
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_streaming",
			Name:      "loads_total",
			Help:      "Number of Load requests enqueued.",
		}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_streaming",
			Name:      "releases_total",
			Help:      "Number of double-buffer releases.",
		}),
		bufferGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_streaming",
			Name:      "buffer_growths_total",
			Help:      "Number of times a double-buffer had to grow to fit a file.",
		}),
		openErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_streaming",
			Name:      "open_errors_total",
			Help:      "Number of source Open failures.",
		}),
	}
	reg.MustRegister(m.loads, m.releases, m.bufferGrowths, m.openErrors)
	return m
}

func (m *promMetrics) incLoads()        { m.loads.Inc() }
func (m *promMetrics) incReleases()     { m.releases.Inc() }
func (m *promMetrics) incBufferGrowth() { m.bufferGrowths.Inc() }
func (m *promMetrics) incOpenErrors()   { m.openErrors.Inc() }
