package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Instance metrics
	InstancesActive    prometheus.Gauge
	InstancesCreated   *prometheus.CounterVec
	InstancesDestroyed prometheus.Counter
	Transitions        *prometheus.CounterVec
	LoadDuration       *prometheus.HistogramVec

	// Operation metrics
	OperationCalls    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Preload metrics
	PreloadChecks  *prometheus.CounterVec
	PreloadCommits *prometheus.CounterVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// Outbound fetch metrics
	FetchRequests *prometheus.CounterVec
	FetchDuration prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveInstances   int64   `json:"active_instances"`
	ActiveConnections int64   `json:"active_connections"`
	TotalDuration     float64 `json:"total_duration"` // sum of all request durations
	RequestCount      int64   `json:"request_count"`  // count for averaging
	Uptime            float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offscreen_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offscreen_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offscreen_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Instance metrics
		InstancesActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "offscreen_instances_active",
				Help: "Number of live surface instances",
			},
		),
		InstancesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_instances_created_total",
				Help: "Total number of surface instances created",
			},
			[]string{"platform"},
		),
		InstancesDestroyed: f.NewCounter(
			prometheus.CounterOpts{
				Name: "offscreen_instances_destroyed_total",
				Help: "Total number of surface instances destroyed",
			},
		),
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_lifecycle_transitions_total",
				Help: "Total number of lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		LoadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offscreen_initial_load_duration_seconds",
				Help:    "Time from preload start to load completion",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),

		// Operation metrics
		OperationCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_operations_total",
				Help: "Total number of instance operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offscreen_operation_duration_seconds",
				Help:    "Instance operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		// Preload metrics
		PreloadChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_preload_checks_total",
				Help: "Preload cache lookups by result",
			},
			[]string{"result"},
		),
		PreloadCommits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_preload_commits_total",
				Help: "Preload record writes by status",
			},
			[]string{"status"},
		),

		// Event metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_events_published_total",
				Help: "Backend events delivered to the bridge",
			},
			[]string{"type"},
		),
		EventsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "offscreen_events_dropped_total",
				Help: "Events dropped because a subscriber was slow",
			},
		),

		// Outbound fetch metrics
		FetchRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_fetch_requests_total",
				Help: "Outbound document fetches by status",
			},
			[]string{"status"},
		),
		FetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "offscreen_fetch_duration_seconds",
				Help:    "Outbound document fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		// WebSocket metrics
		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "offscreen_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offscreen_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "offscreen_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry all metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOperation records an instance operation
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OperationCalls.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransition records a lifecycle transition
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordLoad records the outcome of an initial load
func (m *Metrics) RecordLoad(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordPreloadCheck records a preload cache lookup
func (m *Metrics) RecordPreloadCheck(warm bool) {
	if m == nil {
		return
	}
	result := "cold"
	if warm {
		result = "warm"
	}
	m.PreloadChecks.WithLabelValues(result).Inc()
}

// RecordPreloadCommit records a preload record write
func (m *Metrics) RecordPreloadCommit(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PreloadCommits.WithLabelValues(status).Inc()
}

// RecordEvent records a published event
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records an event a subscriber could not accept
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// RecordFetch records an outbound document fetch
func (m *Metrics) RecordFetch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(status).Inc()
	m.FetchDuration.Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// InstanceCreated increments the created counter and active gauge
func (m *Metrics) InstanceCreated(platform string) {
	if m == nil {
		return
	}
	m.InstancesCreated.WithLabelValues(platform).Inc()
	m.InstancesActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveInstances++
	m.mu.Unlock()
}

// InstanceDestroyed increments the destroyed counter and decrements the active gauge
func (m *Metrics) InstanceDestroyed() {
	if m == nil {
		return
	}
	m.InstancesDestroyed.Inc()
	m.InstancesActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveInstances--
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current JSON-friendly values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.Uptime = time.Since(m.startTime).Seconds()
	return s
}
