package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the query paths rely on. Safe to run
// at every startup; Mongo treats existing identical indexes as a no-op.
func (m *MongoDB) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessionIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "state", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}, {Key: "expires_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "ended_at", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := m.Collection("emergency_sessions").Indexes().CreateMany(ctx, sessionIndexes)
	if err != nil {
		return fmt.Errorf("failed to create emergency_sessions indexes: %w", err)
	}

	lockIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err = m.Collection("sos_locks").Indexes().CreateMany(ctx, lockIndexes)
	if err != nil {
		return fmt.Errorf("failed to create sos_locks indexes: %w", err)
	}

	return nil
}
