package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ge-labs/dink-server/internal/metrics"
	"github.com/ge-labs/dink-server/internal/models"
)

// MongoConfig holds connection settings for the Mongo-backed event store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore implements EventStore on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// Compile-time interface check.
var _ EventStore = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and ensures the compound indexes the
// query paths rely on. The connection string is required; a missing one is a
// startup failure, not something to degrade around.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("storage: mongo uri is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("storage: mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("storage: mongo ping: %w", err)
	}

	s := &MongoStore{
		client: client,
		col:    client.Database(cfg.Database).Collection(cfg.Collection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

// ensureIndexes creates the compound indexes backing token/type/time queries.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}, {Key: "event_type", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "token", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "received_at", Value: -1}}},
	}

	if _, err := s.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("storage: create indexes: %w", err)
	}
	return nil
}

// Insert implements EventStore. IDs are ObjectID hex strings; ObjectIDs are
// monotonic per process, so descending _id doubles as the insertion-order
// tiebreaker for equal timestamps.
func (s *MongoStore) Insert(ctx context.Context, ev *models.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = bson.NewObjectID().Hex()
	}

	start := time.Now()
	_, err := s.col.InsertOne(ctx, ev)
	metrics.StorageDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageErrors.Inc()
		return "", fmt.Errorf("storage: insert event: %w", err)
	}

	return ev.ID, nil
}

// Query implements EventStore.
func (s *MongoStore) Query(ctx context.Context, f Filter, skip, limit int) ([]models.Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}, {Key: "_id", Value: -1}})
	if skip > 0 {
		opts = opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.col.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		metrics.StorageErrors.Inc()
		return nil, fmt.Errorf("storage: query events: %w", err)
	}

	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		metrics.StorageErrors.Inc()
		return nil, fmt.Errorf("storage: decode events: %w", err)
	}

	return events, nil
}

// Count implements EventStore.
func (s *MongoStore) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := s.col.CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		metrics.StorageErrors.Inc()
		return 0, fmt.Errorf("storage: count events: %w", err)
	}
	return n, nil
}

// Ping implements EventStore.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close implements EventStore.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mongoFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.Token != "" {
		filter["token"] = f.Token
	}
	if f.EventType != "" {
		filter["event_type"] = f.EventType
	}
	if f.Since != nil || f.Until != nil {
		dateFilter := bson.M{}
		if f.Since != nil {
			dateFilter["$gte"] = *f.Since
		}
		if f.Until != nil {
			dateFilter["$lte"] = *f.Until
		}
		filter["received_at"] = dateFilter
	}
	return filter
}
