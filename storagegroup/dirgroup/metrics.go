package dirgroup

import "github.com/prometheus/client_golang/prometheus"

type prometheusRegisterer interface {
	MustRegister(...prometheus.Collector)
}

type metricsSink interface {
	incBufferGrowth()
	incOpenErrors()
	incReadErrors()
	incFilesScanned()
}

type noopMetrics struct{}

func (noopMetrics) incBufferGrowth()  {}
func (noopMetrics) incOpenErrors()    {}
func (noopMetrics) incReadErrors()    {}
func (noopMetrics) incFilesScanned()  {}

type promMetrics struct {
	bufferGrowths prometheus.Counter
	openErrors    prometheus.Counter
	readErrors    prometheus.Counter
	filesScanned  prometheus.Counter
}

func newPromMetrics(reg prometheusRegisterer) *promMetrics {
	m := &promMetrics{
		bufferGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_dirgroup",
			Name:      "buffer_growths_total",
			Help:      "Pool buffers resized because no idle buffer was large enough.",
		}),
		openErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_dirgroup",
			Name:      "open_errors_total",
			Help:      "Files that failed to open during a Load dispatch.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_dirgroup",
			Name:      "read_errors_total",
			Help:      "Files that opened but failed to read in full.",
		}),
		filesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetpipe_dirgroup",
			Name:      "files_scanned_total",
			Help:      "Regular files discovered across all Scan calls.",
		}),
	}
	reg.MustRegister(m.bufferGrowths, m.openErrors, m.readErrors, m.filesScanned)
	return m
}

func (m *promMetrics) incBufferGrowth() { m.bufferGrowths.Inc() }
func (m *promMetrics) incOpenErrors()   { m.openErrors.Inc() }
func (m *promMetrics) incReadErrors()   { m.readErrors.Inc() }
func (m *promMetrics) incFilesScanned() { m.filesScanned.Inc() }
