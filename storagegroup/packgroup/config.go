// config.go follows the same functional-options pattern as the rest of the
// module's packages (storage, streaming, adapter, dirgroup).
//
// © 2025 assetpipe authors. MIT License.
package packgroup

import "go.uber.org/zap"

// Option configures a Storage at construction time.
type Option func(*config)

type config struct {
	logger           *zap.Logger
	metrics          metricsSink
	bufferCount      int
	initialBufferCap int
}

func defaultConfig() *config {
	return &config{
		logger:           zap.NewNop(),
		metrics:          noopMetrics{},
		bufferCount:      4,
		initialBufferCap: 64 << 10,
	}
}

// WithLogger plugs an external zap.Logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(reg prometheusRegisterer) Option {
	return func(c *config) {
		if reg != nil {
			c.metrics = newPromMetrics(reg)
		}
	}
}

// WithBufferCount sets how many concurrent reads from the archive are
// allowed in flight before Load blocks waiting for one to free up.
// Defaults to 4.
func WithBufferCount(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferCount = n
		}
	}
}

// WithInitialBufferSize sets the capacity each pool buffer starts at,
// before any growth-to-fit. Defaults to 64KiB.
func WithInitialBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.initialBufferCap = n
		}
	}
}
