package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
	mongoclient "github.com/wms-platform/roadmap-service/pkg/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/outbox"
)

const generationsCollection = "generation_records"

// GenerationRepository is the append-only generation ledger. A record is
// stored in one transaction with the tasks of its run.
type GenerationRepository struct {
	collection *mongo.Collection
	db         *mongo.Database
	tasks      *TaskRepository
	events     eventWriter
	obs        mongoclient.Observer
}

func NewGenerationRepository(db *mongo.Database, tasks *TaskRepository, store outbox.Store, eventFactory *cloudevents.EventFactory, obs mongoclient.Observer) *GenerationRepository {
	repo := &GenerationRepository{
		collection: db.Collection(generationsCollection),
		db:         db,
		tasks:      tasks,
		events:     eventWriter{store: store, factory: eventFactory},
		obs:        obs,
	}

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	repo.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "generationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "projectId", Value: 1}}},
	})
	return repo
}

func (r *GenerationRepository) Save(ctx context.Context, record *domain.GenerationRecord, tasks []*domain.TaskInstance) error {
	events, err := r.events.entries(ctx, record.GenerationID, "Generation", record.DomainEvents)
	if err != nil {
		return err
	}

	err = r.obs.Observe(ctx, generationsCollection, "save", func(ctx context.Context) error {
		return mongoclient.RunInTransaction(ctx, r.db, func(sessCtx mongo.SessionContext) error {
			if err := r.tasks.insertAll(sessCtx, tasks); err != nil {
				return err
			}
			if _, err := r.collection.InsertOne(sessCtx, record); err != nil {
				return fmt.Errorf("failed to insert generation record: %w", err)
			}
			return r.events.store.Append(sessCtx, events)
		})
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	record.ClearDomainEvents()
	return nil
}

func (r *GenerationRepository) FindRecent(ctx context.Context, limit int) ([]*domain.GenerationRecord, error) {
	var records []*domain.GenerationRecord
	err := r.obs.Observe(ctx, generationsCollection, "findRecent", func(ctx context.Context) error {
		opts := options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "generationId", Value: -1}}).
			SetLimit(int64(limit))
		cursor, err := r.collection.Find(ctx, bson.M{}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &records)
	})
	return records, err
}

func (r *GenerationRepository) Totals(ctx context.Context) (*domain.GenerationTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$strategy",
			"runs":  bson.M{"$sum": 1},
			"tasks": bson.M{"$sum": "$taskCount"},
		}}},
	}

	var rows []struct {
		Strategy domain.StrategyType `bson:"_id"`
		Runs     int                 `bson:"runs"`
		Tasks    int                 `bson:"tasks"`
	}
	err := r.obs.Observe(ctx, generationsCollection, "totals", func(ctx context.Context) error {
		cursor, err := r.collection.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &rows)
	})
	if err != nil {
		return nil, err
	}

	totals := &domain.GenerationTotals{StrategyUsage: make(map[domain.StrategyType]int, len(rows))}
	for _, row := range rows {
		totals.TotalGenerations += row.Runs
		totals.TotalTasksGenerated += row.Tasks
		totals.StrategyUsage[row.Strategy] = row.Runs
	}
	return totals, nil
}
