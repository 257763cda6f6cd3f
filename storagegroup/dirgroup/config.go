// config.go follows the same functional-options pattern as storage/config.go
// and streaming/config.go.
//
// © 2025 assetpipe authors. MIT License.
package dirgroup

import "go.uber.org/zap"

// Option configures a Storage at construction time.
type Option func(*config)

type config struct {
	logger           *zap.Logger
	metrics          metricsSink
	initialBufferCap int
}

func defaultConfig() *config {
	return &config{
		logger:           zap.NewNop(),
		metrics:          noopMetrics{},
		initialBufferCap: 64 << 10,
	}
}

// WithLogger plugs an external zap.Logger. Only open/read failures are
// logged; buffer selection never logs on its own.
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

// WithInitialBufferSize sets the capacity each pool buffer starts at,
// before any growth-to-fit. Defaults to 64KiB, matching assetdir.c's
// MEM_CHUNK growth quantum.
func WithInitialBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.initialBufferCap = n
		}
	}
}
