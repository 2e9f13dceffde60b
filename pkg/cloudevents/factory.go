package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/roadmap-service/pkg/logging"
)

// EventFactory creates CloudEvents for one source
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// CreateEvent creates a new RoadmapCloudEvent. The W3C traceparent of the
// active span and the request's correlation id are attached when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *RoadmapCloudEvent {
	event := &RoadmapCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   logging.CorrelationID(ctx),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.TraceParent = "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + sc.TraceFlags().String()
	}

	return event
}

// CreateRoadmapInstantiatedEvent creates a RoadmapInstantiated event
func (f *EventFactory) CreateRoadmapInstantiatedEvent(ctx context.Context, data RoadmapInstantiatedData) *RoadmapCloudEvent {
	event := f.CreateEvent(ctx, RoadmapInstantiated, "roadmap/"+data.RoadmapID, data)
	event.ProjectID = data.ProjectID
	event.RoadmapID = data.RoadmapID
	return event
}

// CreateStageTransitionedEvent creates a StageTransitioned event
func (f *EventFactory) CreateStageTransitionedEvent(ctx context.Context, data StageTransitionedData) *RoadmapCloudEvent {
	event := f.CreateEvent(ctx, StageTransitioned, "stage/"+data.StageID, data)
	event.RoadmapID = data.RoadmapID
	return event
}

// CreateStageUnlockedEvent creates a StageUnlocked event
func (f *EventFactory) CreateStageUnlockedEvent(ctx context.Context, data StageUnlockedData) *RoadmapCloudEvent {
	event := f.CreateEvent(ctx, StageUnlocked, "stage/"+data.StageID, data)
	event.RoadmapID = data.RoadmapID
	return event
}

// CreateRoadmapCompletedEvent creates a RoadmapCompleted event
func (f *EventFactory) CreateRoadmapCompletedEvent(ctx context.Context, data RoadmapCompletedData) *RoadmapCloudEvent {
	event := f.CreateEvent(ctx, RoadmapCompleted, "roadmap/"+data.RoadmapID, data)
	event.ProjectID = data.ProjectID
	event.RoadmapID = data.RoadmapID
	return event
}

// CreateGenerationCompletedEvent creates a GenerationCompleted event
func (f *EventFactory) CreateGenerationCompletedEvent(ctx context.Context, data GenerationCompletedData) *RoadmapCloudEvent {
	event := f.CreateEvent(ctx, GenerationCompleted, "generation/"+data.GenerationID, data)
	event.ProjectID = data.ProjectID
	event.RoadmapID = data.RoadmapID
	return event
}
