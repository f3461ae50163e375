package mongodb

import (
	"context"
	"fmt"
	"time"

	"safeguard/internal/models"
	"safeguard/internal/repositories/interfaces"
	"safeguard/internal/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sosLockRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewSosLockRepository(db *mongo.Database, cache services.CacheService) interfaces.SosLockRepository {
	return &sosLockRepository{
		collection: db.Collection("sos_locks"),
		cache:      cache,
	}
}

func (r *sosLockRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.SosLock, error) {
	var lock models.SosLock
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&lock)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get SOS lock: %w", err)
	}

	return &lock, nil
}

func (r *sosLockRepository) Upsert(ctx context.Context, lock *models.SosLock) error {
	now := time.Now()
	lock.UpdatedAt = now

	update := bson.M{
		"$set": bson.M{
			"pin_hash":   lock.PinHash,
			"armed":      lock.Armed,
			"armed_at":   lock.ArmedAt,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"user_id":    lock.UserID,
			"created_at": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": lock.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert SOS lock: %w", err)
	}

	return nil
}

func (r *sosLockRepository) SetArmed(ctx context.Context, userID primitive.ObjectID, armed bool) error {
	set := bson.M{
		"armed":      armed,
		"updated_at": time.Now(),
	}
	if armed {
		set["armed_at"] = time.Now()
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update SOS lock state: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}
