// config.go defines the functional options accepted by storage.New,
// following the same pattern as the teacher's pkg/config.go: a private
// config struct with sane defaults, options that merely assign fields, and
// no behavior beyond that until the instance is constructed.
//
// © 2025 assetpipe authors. MIT License.
package storage

import "go.uber.org/zap"

// Option configures a Storage at construction time.
type Option func(*config)

type config struct {
	logger  *zap.Logger
	metrics metricsSink
}

func defaultConfig() *config {
	return &config{
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
	}
}

// WithLogger plugs an external zap.Logger. The scheduler never logs on the
// hot path (enqueue/dequeue); only pool-overflow events are logged (the
// shutdown drain is silent), matching the teacher's "only slow events"
// discipline.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the scheduler.
// Passing nil disables metrics (the default).
func WithMetrics(reg prometheusRegisterer) Option {
	return func(c *config) {
		if reg != nil {
			c.metrics = newPromMetrics(reg)
		}
	}
}
