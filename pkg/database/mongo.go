// Package database opens the MongoDB connection used by the whole
// application. The returned handle is constructed once at boot and passed
// into repositories explicitly; there is no package-level database global.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Conn bundles the client and the selected database so callers get both the
// query handle and the teardown in one value.
type Conn struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect opens and verifies a MongoDB connection.
// Returns an error instead of exiting so the caller can shut down gracefully.
func Connect(ctx context.Context, uri, dbName string) (*Conn, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(2 * time.Minute)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return &Conn{Client: client, DB: client.Database(dbName)}, nil
}

// Close disconnects the client, flushing in-flight operations.
func (c *Conn) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("database: disconnect: %w", err)
	}
	return nil
}
