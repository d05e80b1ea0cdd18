package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("mongo URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// ConnectOrFallback dials MongoDB and returns the client plus a cleanup function.
// When uri is empty or the connection fails it logs and returns nil so callers
// can choose another store.
func ConnectOrFallback(ctx context.Context, uri string, logger *slog.Logger) (*mongo.Client, func()) {
	if strings.TrimSpace(uri) == "" {
		return nil, func() {}
	}
	client, err := Connect(ctx, uri)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to connect to mongo, engagement store falls back", slog.String("error", err.Error()))
		}
		return nil, func() {}
	}
	if logger != nil {
		logger.Info("mongo connection established")
	}
	return client, func() { _ = client.Disconnect(context.Background()) }
}
