package webview

import (
	"time"

	"github.com/GriffinCanCode/offscreen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/offscreen/internal/shared/id"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"go.uber.org/zap"
)

// Defaults applied when no option overrides them
const (
	DefaultWarmupDelay = time.Second
	DefaultLoadTimeout = 30 * time.Second
)

// TransitionObserver is notified of every lifecycle transition of every instance
type TransitionObserver func(instanceID string, from, to types.State)

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics enables metrics recording
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithWarmupDelay sets the grace period before a deferred preload starts
func WithWarmupDelay(d time.Duration) Option {
	return func(r *Registry) {
		if d >= 0 {
			r.warmupDelay = d
		}
	}
}

// WithLoadTimeout sets how long an initial load may stay pending. Zero disables the watchdog.
func WithLoadTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d >= 0 {
			r.loadTimeout = d
		}
	}
}

// WithIDGenerator overrides the instance id generator
func WithIDGenerator(g *id.Generator) Option {
	return func(r *Registry) { r.ids = g }
}

// WithEventBuffer sets the per-subscription event buffer
func WithEventBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.eventBuffer = n
		}
	}
}

// WithUserAgent sets the user agent applied when a config has none
func WithUserAgent(ua string) Option {
	return func(r *Registry) { r.userAgent = ua }
}

// WithObserver adds a transition observer
func WithObserver(obs TransitionObserver) Option {
	return func(r *Registry) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}
