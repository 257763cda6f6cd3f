// config.go follows the same functional-options shape as storage/config.go
// and the teacher's pkg/config.go: a private config struct with defaults,
// options that only assign fields.
//
// © 2025 assetpipe authors. MIT License.
package streaming

import "go.uber.org/zap"

// Option configures a Stream at construction time.
type Option func(*config)

type config struct {
	logger     *zap.Logger
	metrics    metricsSink
	bufferSize int
}

func defaultConfig() *config {
	return &config{
		logger:     zap.NewNop(),
		metrics:    noopMetrics{},
		bufferSize: 64 * 1024,
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

// WithMetrics enables Prometheus metrics collection for the stream loader.
func WithMetrics(reg prometheusRegisterer) Option {
	return func(c *config) {
		if reg != nil {
			c.metrics = newPromMetrics(reg)
		}
	}
}

// WithInitialBufferSize sets the starting capacity of each of the two
// double-buffers, grown on demand (never shrunk) as larger files stream
// through. Defaults to 64KiB.
func WithInitialBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}
