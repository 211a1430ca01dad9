package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// AuditStore writes request audit records to a MongoDB collection
type AuditStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewAuditStore connects to MongoDB and verifies the connection
func NewAuditStore(ctx context.Context, uri, dbName, collectionName string, logger *zap.Logger) (*AuditStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(dbName).Collection(collectionName)

	// Audit queries look up recent requests by time and by request ID
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "request_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		logger.Warn("failed to create audit indexes", zap.Error(err))
	}

	logger.Info("✅ Connected to MongoDB",
		zap.String("database", dbName),
		zap.String("collection", collectionName))

	return &AuditStore{
		client:     client,
		collection: collection,
		logger:     logger,
	}, nil
}

// Record inserts one audit record
func (s *AuditStore) Record(ctx context.Context, audit *RequestAudit) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, audit); err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", audit.RequestID, err)
	}
	return nil
}

// Close closes the MongoDB connection
func (s *AuditStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	s.logger.Info("MongoDB connection closed")
	return nil
}
