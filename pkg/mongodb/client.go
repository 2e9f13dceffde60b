// Package mongodb holds the connection and instrumentation helpers shared by
// the roadmap repositories.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const pingTimeout = 5 * time.Second

// Config describes one MongoDB deployment. Credentials and replica set
// options travel inside URI.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// DefaultConfig points at a local single node
func DefaultConfig() *Config {
	return &Config{
		URI:            "mongodb://localhost:27017/?replicaSet=rs0",
		Database:       "roadmap_db",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
	}
}

// Client owns the driver connection and the roadmap database handle
type Client struct {
	conn *mongo.Client
	db   *mongo.Database
}

// NewClient connects and fails unless the primary answers a ping
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize)

	conn, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	c := &Client{conn: conn, db: conn.Database(cfg.Database)}
	if err := c.HealthCheck(ctx); err != nil {
		_ = conn.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}

// Database returns the roadmap database
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Disconnect(ctx)
}

// HealthCheck pings the primary within pingTimeout
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.conn.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// RunInTransaction runs fn in a transaction on a fresh session of db's
// client. Aggregate writes and their outbox rows commit together.
func RunInTransaction(ctx context.Context, db *mongo.Database, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	return err
}
