package mongodb

import (
	"context"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
	"github.com/wms-platform/roadmap-service/pkg/kafka"
	"github.com/wms-platform/roadmap-service/pkg/outbox"
)

// eventWriter turns domain events into outbox entries written alongside the
// aggregate
type eventWriter struct {
	store   outbox.Store
	factory *cloudevents.EventFactory
}

// entries converts pending domain events of one aggregate. Unknown event
// types are skipped.
func (w eventWriter) entries(ctx context.Context, aggregateID, aggregateType string, events []domain.DomainEvent) ([]*outbox.Entry, error) {
	factory := w.factory
	out := make([]*outbox.Entry, 0, len(events))
	for _, event := range events {
		var ce *cloudevents.RoadmapCloudEvent
		topic := kafka.Topics.StageEvents

		switch e := event.(type) {
		case *domain.RoadmapInstantiatedEvent:
			ce = factory.CreateRoadmapInstantiatedEvent(ctx, cloudevents.RoadmapInstantiatedData{
				RoadmapID:  e.RoadmapID,
				ProjectID:  e.ProjectID,
				TemplateID: e.TemplateID,
				StageCount: e.StageCount,
			})
		case *domain.StageTransitionedEvent:
			ce = factory.CreateStageTransitionedEvent(ctx, cloudevents.StageTransitionedData{
				RoadmapID:          e.RoadmapID,
				StageID:            e.StageID,
				StageIndex:         e.StageIndex,
				Action:             e.Action,
				From:               e.From,
				To:                 e.To,
				ActorID:            e.ActorID,
				AssignedEmployeeID: e.AssignedEmployeeID,
				Reason:             e.Reason,
				OccurredAt:         e.TransitionedAt,
			})
		case *domain.StageUnlockedEvent:
			ce = factory.CreateStageUnlockedEvent(ctx, cloudevents.StageUnlockedData{
				RoadmapID:  e.RoadmapID,
				StageID:    e.StageID,
				StageIndex: e.StageIndex,
				Cascaded:   e.Cascaded,
			})
		case *domain.RoadmapCompletedEvent:
			ce = factory.CreateRoadmapCompletedEvent(ctx, cloudevents.RoadmapCompletedData{
				RoadmapID:   e.RoadmapID,
				ProjectID:   e.ProjectID,
				CompletedAt: e.CompletedAt,
			})
		case *domain.GenerationCompletedEvent:
			topic = kafka.Topics.GenerationEvents
			ce = factory.CreateGenerationCompletedEvent(ctx, cloudevents.GenerationCompletedData{
				GenerationID:    e.GenerationID,
				ProjectID:       e.ProjectID,
				RoadmapID:       e.RoadmapID,
				Strategy:        e.Strategy,
				TaskCount:       e.TaskCount,
				AssignedCount:   e.AssignedCount,
				UnassignedCount: e.UnassignedCount,
				Warnings:        e.Warnings,
				GeneratedBy:     e.GeneratedBy,
			})
		default:
			continue
		}

		entry, err := outbox.NewEntry(aggregateID, aggregateType, topic, ce)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
