// Package outbox relays CloudEvents that were stored together with the
// roadmap aggregates that raised them.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
)

// MaxAttempts is how often the publisher tries one entry before parking it
const MaxAttempts = 10

// Entry is one pending CloudEvent bound for a Kafka topic
type Entry struct {
	ID            string          `bson:"_id"`
	AggregateID   string          `bson:"aggregateId"`
	AggregateType string          `bson:"aggregateType"`
	EventType     string          `bson:"eventType"`
	Topic         string          `bson:"topic"`
	Payload       json.RawMessage `bson:"payload"`
	CreatedAt     time.Time       `bson:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty"`
	Attempts      int             `bson:"attempts"`
	LastError     string          `bson:"lastError,omitempty"`
}

// NewEntry serializes event for later publication on topic
func NewEntry(aggregateID, aggregateType, topic string, event *cloudevents.RoadmapCloudEvent) (*Entry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event.Type, err)
	}
	return &Entry{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     event.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Exhausted reports whether the entry used up its attempts
func (e *Entry) Exhausted() bool {
	return e.Attempts >= MaxAttempts
}

// CloudEvent decodes the stored payload
func (e *Entry) CloudEvent() (*cloudevents.RoadmapCloudEvent, error) {
	var event cloudevents.RoadmapCloudEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode outbox entry %s: %w", e.ID, err)
	}
	return &event, nil
}

// Store persists entries. Append joins the caller's transaction when ctx
// carries one.
type Store interface {
	Append(ctx context.Context, entries []*Entry) error
	// Pending returns unpublished, non-exhausted entries oldest first
	Pending(ctx context.Context, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id, reason string) error
}
