// Package mongodb stores idempotency records in MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/pkg/idempotency"
)

const CollectionName = "idempotency_keys"

type Store struct {
	collection *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{collection: db.Collection(CollectionName)}
}

// Acquire inserts rec; on a duplicate id it tries to take over a stale
// unfinished lock and otherwise returns the stored record. A record that
// vanishes between the two steps (released or expired) is retried once.
func (s *Store) Acquire(ctx context.Context, rec *idempotency.Record, staleBefore time.Time) (*idempotency.Record, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		_, err := s.collection.InsertOne(ctx, rec)
		if err == nil {
			return rec, true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, fmt.Errorf("failed to insert idempotency record: %w", err)
		}

		var stored idempotency.Record
		err = s.collection.FindOneAndUpdate(ctx,
			bson.M{"_id": rec.ID, "completedAt": bson.M{"$exists": false}, "lockedAt": bson.M{"$lt": staleBefore}},
			bson.M{"$set": bson.M{"fingerprint": rec.Fingerprint, "lockedAt": rec.LockedAt, "expiresAt": rec.ExpiresAt}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&stored)
		if err == nil {
			return &stored, true, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, fmt.Errorf("failed to take over idempotency record: %w", err)
		}

		err = s.collection.FindOne(ctx, bson.M{"_id": rec.ID}).Decode(&stored)
		if err == nil {
			return &stored, false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, fmt.Errorf("failed to load idempotency record: %w", err)
		}
	}
	return nil, false, fmt.Errorf("idempotency record %s kept disappearing", rec.ID)
}

func (s *Store) Complete(ctx context.Context, id string, status int, contentType string, body []byte) error {
	_, err := s.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":      status,
		"contentType": contentType,
		"body":        body,
		"completedAt": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "completedAt": bson.M{"$exists": false}})
	if err != nil {
		return fmt.Errorf("failed to release idempotency record: %w", err)
	}
	return nil
}

// EnsureIndexes expires records at their expiresAt
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create idempotency TTL index: %w", err)
	}
	return nil
}
