// Package mongodb stores outbox entries in a MongoDB collection.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/pkg/outbox"
)

// CollectionName is the outbox collection
const CollectionName = "outbox_events"

// publishedRetention is how long published entries are kept
const publishedRetention = 7 * 24 * time.Hour

// Store implements outbox.Store
type Store struct {
	collection *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{collection: db.Collection(CollectionName)}
}

// Append inserts entries. With a mongo.SessionContext as ctx the insert is
// part of the caller's transaction.
func (s *Store) Append(ctx context.Context, entries []*outbox.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to append outbox entries: %w", err)
	}
	return nil
}

func (s *Store) Pending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	filter := bson.M{
		"publishedAt": bson.M{"$exists": false},
		"attempts":    bson.M{"$lt": outbox.MaxAttempts},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox entries: %w", err)
	}
	var entries []*outbox.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode outbox entries: %w", err)
	}
	return entries, nil
}

func (s *Store) MarkPublished(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"publishedAt": time.Now().UTC()}})
}

func (s *Store) RecordFailure(ctx context.Context, id, reason string) error {
	return s.update(ctx, id, bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"lastError": reason}})
}

func (s *Store) update(ctx context.Context, id string, update bson.M) error {
	res, err := s.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox entry %s: %w", id, mongo.ErrNoDocuments)
	}
	return nil
}

// EnsureIndexes creates the poll index and the retention TTL
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "publishedAt", Value: 1}, {Key: "attempts", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "aggregateId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{
			Keys:    bson.D{{Key: "publishedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(publishedRetention.Seconds())),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return nil
}
