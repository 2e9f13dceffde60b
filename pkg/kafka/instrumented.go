package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

// EventPublisher is what the outbox publisher needs from Kafka
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.RoadmapCloudEvent) error
}

// InstrumentedProducer records a producer span, a publish metric and a log
// line around every publish.
type InstrumentedProducer struct {
	next    EventPublisher
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func NewInstrumentedProducer(next EventPublisher, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{next: next, metrics: m, logger: logger}
}

func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.RoadmapCloudEvent) (err error) {
	attrs := []attribute.KeyValue{
		semconv.MessagingSystemKey.String("kafka"),
		semconv.MessagingDestinationNameKey.String(topic),
		semconv.MessagingOperationPublish,
		semconv.MessagingMessageIDKey.String(event.ID),
		attribute.String("cloudevents.event_type", event.Type),
	}
	if event.RoadmapID != "" {
		attrs = append(attrs, attribute.String("roadmap.id", event.RoadmapID))
	}
	ctx, span := tracing.Tracer().Start(ctx, topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer), trace.WithAttributes(attrs...))
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	err = p.next.PublishEvent(ctx, topic, event)
	elapsed := time.Since(start)

	p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, elapsed)
	if p.logger != nil {
		p.logger.KafkaPublish(ctx, topic, event.Type, err == nil, elapsed)
	}
	return err
}

// Close closes the wrapped publisher if it can be closed
func (p *InstrumentedProducer) Close() error {
	if c, ok := p.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
