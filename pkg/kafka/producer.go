package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
)

// Producer writes CloudEvents through one writer; the topic travels on
// each message.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg *Config) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchSize:              cfg.BatchSize,
			BatchTimeout:           cfg.BatchTimeout,
			WriteTimeout:           cfg.WriteTimeout,
			RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
			AllowAutoTopicCreation: false,
			Transport:              &kafka.Transport{ClientID: cfg.ClientID},
		},
	}
}

// ceHeaders maps binary-mode header names to event attributes. Empty
// attributes are left off the message.
var ceHeaders = []struct {
	key   string
	value func(*cloudevents.RoadmapCloudEvent) string
}{
	{"ce-specversion", func(e *cloudevents.RoadmapCloudEvent) string { return e.SpecVersion }},
	{"ce-type", func(e *cloudevents.RoadmapCloudEvent) string { return e.Type }},
	{"ce-source", func(e *cloudevents.RoadmapCloudEvent) string { return e.Source }},
	{"ce-id", func(e *cloudevents.RoadmapCloudEvent) string { return e.ID }},
	{"ce-subject", func(e *cloudevents.RoadmapCloudEvent) string { return e.Subject }},
	{"ce-time", func(e *cloudevents.RoadmapCloudEvent) string { return e.Time.UTC().Format(time.RFC3339Nano) }},
	{"ce-correlationid", func(e *cloudevents.RoadmapCloudEvent) string { return e.CorrelationID }},
	{"ce-projectid", func(e *cloudevents.RoadmapCloudEvent) string { return e.ProjectID }},
	{"ce-roadmapid", func(e *cloudevents.RoadmapCloudEvent) string { return e.RoadmapID }},
	{"ce-traceparent", func(e *cloudevents.RoadmapCloudEvent) string { return e.TraceParent }},
	{"content-type", func(e *cloudevents.RoadmapCloudEvent) string { return e.DataContentType }},
}

// BuildMessage encodes event for topic. The subject is the partition key,
// so events about one stage or roadmap keep their order.
func BuildMessage(topic string, event *cloudevents.RoadmapCloudEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.Subject),
		Value: value,
		Time:  event.Time,
	}
	for _, h := range ceHeaders {
		if v := h.value(event); v != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: h.key, Value: []byte(v)})
		}
	}
	return msg, nil
}

func (p *Producer) PublishEvent(ctx context.Context, topic string, event *cloudevents.RoadmapCloudEvent) error {
	msg, err := BuildMessage(topic, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s to %s: %w", event.Type, topic, err)
	}
	return nil
}

// Close flushes pending batches
func (p *Producer) Close() error {
	return p.writer.Close()
}
