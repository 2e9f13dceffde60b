package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service metrics. A nil *Metrics records nothing.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending        prometheus.Gauge
	OutboxPublished      *prometheus.CounterVec
	OutboxRetries        *prometheus.CounterVec
	OutboxPublishLatency *prometheus.HistogramVec

	// Engine metrics
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	TasksGenerated      *prometheus.CounterVec
	TaskAssignments     *prometheus.CounterVec
	AvailabilityLookups *prometheus.CounterVec
	StageTransitions    *prometheus.CounterVec
	StagesAtRisk        prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// IdempotentRequests counts Idempotency-Key lookups by outcome
	IdempotentRequests *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "roadmap",
	}
}

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// New creates a new Metrics instance backed by its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	ns := config.Namespace
	serviceLabel := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests",
	}, []string{"service", "method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds", Buckets: durationBuckets,
	}, []string{"service", "method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "http_requests_in_flight", Help: "Number of HTTP requests currently being processed", ConstLabels: serviceLabel,
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published",
	}, []string{"service", "topic", "event_type", "status"})

	m.KafkaPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "kafka_publish_duration_seconds", Help: "Kafka publish duration in seconds", Buckets: durationBuckets,
	}, []string{"service", "topic"})

	m.MongoDBOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "mongodb_operations_total", Help: "Total number of MongoDB operations",
	}, []string{"service", "collection", "operation", "status"})

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "mongodb_operation_duration_seconds", Help: "MongoDB operation duration in seconds", Buckets: durationBuckets,
	}, []string{"service", "collection", "operation"})

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "outbox_pending_events", Help: "Unpublished events found by the last outbox poll", ConstLabels: serviceLabel,
	})

	m.OutboxPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "outbox_events_published_total", Help: "Outbox events relayed to Kafka",
	}, []string{"service", "event_type", "status"})

	m.OutboxRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "outbox_retries_total", Help: "Outbox publish retries",
	}, []string{"service", "event_type"})

	m.OutboxPublishLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "outbox_publish_duration_seconds", Help: "Outbox relay duration in seconds", Buckets: durationBuckets,
	}, []string{"service", "event_type"})

	m.GenerationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "generations_total", Help: "Task generation runs by strategy and outcome",
	}, []string{"service", "strategy", "outcome"})

	m.GenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "generation_duration_seconds", Help: "Task generation run duration in seconds", Buckets: durationBuckets,
	}, []string{"service", "strategy"})

	m.TasksGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "tasks_generated_total", Help: "Task instances created by generation runs",
	}, []string{"service", "strategy"})

	m.TaskAssignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "task_assignments_total", Help: "Task assignment outcomes by strategy",
	}, []string{"service", "strategy", "outcome"})

	m.AvailabilityLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "availability_lookups_total", Help: "Availability oracle lookups by result",
	}, []string{"service", "result"})

	m.StageTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "stage_transitions_total", Help: "Stage lifecycle actions by outcome",
	}, []string{"service", "action", "outcome"})

	m.StagesAtRisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Name: "stages_at_sla_risk", Help: "In-progress stages within two days of their SLA deadline", ConstLabels: serviceLabel,
	})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"service", "name"})

	m.CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "circuit_breaker_trips_total", Help: "Total number of circuit breaker trips",
	}, []string{"service", "name"})

	m.IdempotentRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "idempotent_requests_total", Help: "Requests carrying an Idempotency-Key by outcome (miss, replay, mismatch, in_flight, error)",
	}, []string{"service", "outcome"})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.OutboxPublishLatency,
		m.GenerationsTotal,
		m.GenerationDuration,
		m.TasksGenerated,
		m.TaskAssignments,
		m.AvailabilityLookups,
		m.StageTransitions,
		m.StagesAtRisk,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.IdempotentRequests,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of pending outbox events
func (m *Metrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
	m.OutboxPublishLatency.WithLabelValues(m.serviceName, eventType).Observe(duration.Seconds())
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	if m == nil {
		return
	}
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// RecordGeneration records a generation run. outcome is one of created, duplicate or failed.
func (m *Metrics) RecordGeneration(strategy, outcome string, tasksCreated int, duration time.Duration) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(m.serviceName, strategy, outcome).Inc()
	m.GenerationDuration.WithLabelValues(m.serviceName, strategy).Observe(duration.Seconds())
	if tasksCreated > 0 {
		m.TasksGenerated.WithLabelValues(m.serviceName, strategy).Add(float64(tasksCreated))
	}
}

// RecordAssignments records how many tasks a strategy assigned and left unassigned
func (m *Metrics) RecordAssignments(strategy string, assigned, unassigned int) {
	if m == nil {
		return
	}
	if assigned > 0 {
		m.TaskAssignments.WithLabelValues(m.serviceName, strategy, "assigned").Add(float64(assigned))
	}
	if unassigned > 0 {
		m.TaskAssignments.WithLabelValues(m.serviceName, strategy, "unassigned").Add(float64(unassigned))
	}
}

// RecordAvailabilityLookup records an availability oracle result (status name or "error")
func (m *Metrics) RecordAvailabilityLookup(result string) {
	if m == nil {
		return
	}
	m.AvailabilityLookups.WithLabelValues(m.serviceName, result).Inc()
}

// RecordStageTransition records a stage lifecycle action
func (m *Metrics) RecordStageTransition(action string, success bool) {
	if m == nil {
		return
	}
	outcome := "applied"
	if !success {
		outcome = "rejected"
	}
	m.StageTransitions.WithLabelValues(m.serviceName, action, outcome).Inc()
}

// SetStagesAtRisk sets the number of stages at SLA risk
func (m *Metrics) SetStagesAtRisk(count int) {
	if m == nil {
		return
	}
	m.StagesAtRisk.Set(float64(count))
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

// RecordIdempotentRequest counts one keyed request by outcome
func (m *Metrics) RecordIdempotentRequest(outcome string) {
	if m == nil {
		return
	}
	m.IdempotentRequests.WithLabelValues(m.serviceName, outcome).Inc()
}
