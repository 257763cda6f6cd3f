// config.go mirrors storage/config.go and streaming/config.go: functional
// options over a private config struct. Adapter's config is generic in the
// payload type because WithDestroyer needs a typed callback.
//
// © 2025 assetpipe authors. MIT License.
package adapter

import "go.uber.org/zap"

// Destroyer releases any resources a payload owns (file handles, GPU
// objects, decoded buffers) when its overflow asset is dropped. Pool-backed
// assets never need one: they are just reused in place on the next Pin.
type Destroyer[A any] func(A)

// Option configures an Adapter[A] at construction time.
type Option[A any] func(*config[A])

type config[A any] struct {
	logger  *zap.Logger
	metrics metricsSink
	destroy Destroyer[A]
}

func defaultConfig[A any]() *config[A] {
	return &config[A]{
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
	}
}

// WithLogger plugs an external zap.Logger.
func WithLogger[A any](l *zap.Logger) Option[A] {
	return func(c *config[A]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the adapter.
func WithMetrics[A any](reg prometheusRegisterer) Option[A] {
	return func(c *config[A]) {
		if reg != nil {
			c.metrics = newPromMetrics(reg)
		}
	}
}

// WithDestroyer registers a cleanup hook invoked outside the adapter lock
// whenever an overflow (non-pool) asset's last reference is released.
func WithDestroyer[A any](d Destroyer[A]) Option[A] {
	return func(c *config[A]) {
		c.destroy = d
	}
}
