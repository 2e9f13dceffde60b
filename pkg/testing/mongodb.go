// Package testing starts throwaway infrastructure for integration tests.
package testing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	mongoclient "github.com/wms-platform/roadmap-service/pkg/mongodb"
)

const mongoImage = "mongo:6"

// MongoReplicaSet is a single-node replica set container. Transactions need
// a replica set, so a standalone mongod would not do.
type MongoReplicaSet struct {
	container *mongodb.MongoDBContainer
	client    *mongoclient.Client
	seq       atomic.Int64
}

func StartMongoReplicaSet(ctx context.Context) (*MongoReplicaSet, error) {
	container, err := mongodb.Run(ctx, mongoImage, mongodb.WithReplicaSet("rs0"))
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", mongoImage, err)
	}

	uri, err := container.ConnectionString(ctx)
	if err == nil {
		cfg := mongoclient.DefaultConfig()
		cfg.URI = uri
		cfg.ConnectTimeout = 30 * time.Second
		var client *mongoclient.Client
		if client, err = mongoclient.NewClient(ctx, cfg); err == nil {
			return &MongoReplicaSet{container: container, client: client}, nil
		}
	}
	_ = testcontainers.TerminateContainer(container)
	return nil, fmt.Errorf("connect to %s: %w", mongoImage, err)
}

// FreshDatabase returns an empty database not used by any other test
func (m *MongoReplicaSet) FreshDatabase(ctx context.Context, prefix string) (*mongo.Database, error) {
	name := fmt.Sprintf("%s_%d_%d", prefix, time.Now().Unix(), m.seq.Add(1))
	db := m.client.Database().Client().Database(name)
	if err := db.Drop(ctx); err != nil {
		return nil, fmt.Errorf("reset %s: %w", name, err)
	}
	return db, nil
}

func (m *MongoReplicaSet) Terminate(ctx context.Context) error {
	_ = m.client.Close(ctx)
	return testcontainers.TerminateContainer(m.container, testcontainers.StopContext(ctx))
}
