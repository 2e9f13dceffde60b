package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/cloudevents"
	mongoclient "github.com/wms-platform/roadmap-service/pkg/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/outbox"
)

const roadmapsCollection = "roadmaps"

// RoadmapRepository persists roadmaps with optimistic versioning and writes
// their domain events to the outbox in the same transaction.
type RoadmapRepository struct {
	collection *mongo.Collection
	db         *mongo.Database
	events     eventWriter
	obs        mongoclient.Observer
}

func NewRoadmapRepository(db *mongo.Database, store outbox.Store, eventFactory *cloudevents.EventFactory, obs mongoclient.Observer) *RoadmapRepository {
	repo := &RoadmapRepository{
		collection: db.Collection(roadmapsCollection),
		db:         db,
		events:     eventWriter{store: store, factory: eventFactory},
		obs:        obs,
	}
	repo.ensureIndexes()
	return repo
}

func (r *RoadmapRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "roadmapId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "projectId", Value: 1}}},
		{Keys: bson.D{{Key: "stages.stageId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "stages.status", Value: 1}}},
	})
}

func (r *RoadmapRepository) Save(ctx context.Context, roadmap *domain.Roadmap) error {
	expected := roadmap.Version
	doc := *roadmap
	doc.Version = expected + 1

	events, err := r.events.entries(ctx, roadmap.RoadmapID, "Roadmap", roadmap.GetDomainEvents())
	if err != nil {
		return err
	}

	err = r.obs.Observe(ctx, roadmapsCollection, "save", func(ctx context.Context) error {
		return mongoclient.RunInTransaction(ctx, r.db, func(sessCtx mongo.SessionContext) error {
			if expected == 0 {
				if _, err := r.collection.InsertOne(sessCtx, &doc); err != nil {
					if mongo.IsDuplicateKeyError(err) {
						return domain.ErrVersionConflict
					}
					return fmt.Errorf("failed to insert roadmap: %w", err)
				}
			} else {
				filter := bson.M{"roadmapId": roadmap.RoadmapID, "version": expected}
				res, err := r.collection.ReplaceOne(sessCtx, filter, &doc)
				if err != nil {
					return fmt.Errorf("failed to replace roadmap: %w", err)
				}
				if res.MatchedCount == 0 {
					return domain.ErrVersionConflict
				}
			}
			return r.events.store.Append(sessCtx, events)
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	roadmap.Version = doc.Version
	roadmap.ClearDomainEvents()
	return nil
}

func (r *RoadmapRepository) FindByID(ctx context.Context, roadmapID string) (*domain.Roadmap, error) {
	return r.findOne(ctx, "findById", bson.M{"roadmapId": roadmapID})
}

func (r *RoadmapRepository) FindByStageID(ctx context.Context, stageID string) (*domain.Roadmap, error) {
	return r.findOne(ctx, "findByStageId", bson.M{"stages.stageId": stageID})
}

func (r *RoadmapRepository) FindWithStageStatus(ctx context.Context, statuses ...domain.StageStatus) ([]*domain.Roadmap, error) {
	filter := bson.M{}
	if len(statuses) > 0 {
		filter["stages.status"] = bson.M{"$in": statuses}
	}

	var roadmaps []*domain.Roadmap
	err := r.obs.Observe(ctx, roadmapsCollection, "findWithStageStatus", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "roadmapId", Value: 1}}))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &roadmaps)
	})
	return roadmaps, err
}

func (r *RoadmapRepository) findOne(ctx context.Context, operation string, filter bson.M) (*domain.Roadmap, error) {
	var roadmap domain.Roadmap
	err := r.obs.Observe(ctx, roadmapsCollection, operation, func(ctx context.Context) error {
		return r.collection.FindOne(ctx, filter).Decode(&roadmap)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &roadmap, nil
}
