package mongodb

import (
	"context"
	"fmt"
	"time"

	"safeguard/internal/models"
	"safeguard/internal/repositories/interfaces"
	"safeguard/internal/services"
	"safeguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewSessionRepository(db *mongo.Database, cache services.CacheService) interfaces.SessionRepository {
	return &sessionRepository{
		collection: db.Collection("emergency_sessions"),
		cache:      cache,
	}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.EmergencySession) error {
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if session.State.IsActive() {
		r.cacheSession(ctx, session)
	}

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error) {
	if session := r.getSessionFromCache(ctx, id.Hex()); session != nil {
		return session, nil
	}

	var session models.EmergencySession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.State.IsActive() {
		r.cacheSession(ctx, &session)
	}

	return &session, nil
}

func (r *sessionRepository) GetActiveByDevice(ctx context.Context, deviceID string) (*models.EmergencySession, error) {
	filter := bson.M{
		"device_id": deviceID,
		"state":     bson.M{"$in": activeStates()},
	}

	var session models.EmergencySession
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active session for device: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) GetActiveSessions(ctx context.Context) ([]*models.EmergencySession, error) {
	filter := bson.M{"state": bson.M{"$in": activeStates()}}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.EmergencySession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode active sessions: %w", err)
	}

	return sessions, nil
}

func (r *sessionRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.EmergencySession, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.EmergencySession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, 0, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, total, nil
}

func (r *sessionRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	r.invalidateSessionCache(ctx, id.Hex())

	return nil
}

func (r *sessionRepository) TransitionState(ctx context.Context, id primitive.ObjectID, from []models.SessionState, to models.SessionState, updates map[string]interface{}) (bool, error) {
	set := bson.M{
		"state":      to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		set[k] = v
	}

	filter := bson.M{
		"_id":   id,
		"state": bson.M{"$in": from},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to transition session state: %w", err)
	}

	r.invalidateSessionCache(ctx, id.Hex())

	return result.ModifiedCount == 1, nil
}

func (r *sessionRepository) ExtendExpiry(ctx context.Context, id primitive.ObjectID, expiresAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"expires_at": expiresAt,
		"updated_at": time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to extend session expiry: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	r.invalidateSessionCache(ctx, id.Hex())

	return nil
}

func (r *sessionRepository) AppendLocationSample(ctx context.Context, id primitive.ObjectID, sample *models.LocationSample, maxSamples int) error {
	update := bson.M{
		"$push": bson.M{
			"location_samples": bson.M{
				"$each":  []*models.LocationSample{sample},
				"$slice": -maxSamples,
			},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to append location sample: %w", err)
	}

	r.invalidateSessionCache(ctx, id.Hex())

	return nil
}

func (r *sessionRepository) SetLastDispatch(ctx context.Context, id primitive.ObjectID, record *models.DispatchRecord) error {
	update := bson.M{"$set": bson.M{
		"last_dispatch": record,
		"updated_at":    time.Now(),
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set last dispatch: %w", err)
	}

	r.invalidateSessionCache(ctx, id.Hex())

	return nil
}

func (r *sessionRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"state":    bson.M{"$in": []models.SessionState{models.SessionStateStopped, models.SessionStateExpired}},
		"ended_at": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return result.DeletedCount, nil
}

// Cache helpers
func (r *sessionRepository) cacheSession(ctx context.Context, session *models.EmergencySession) {
	if r.cache == nil {
		return
	}

	key := fmt.Sprintf("%s%s", utils.CacheKeySession, session.ID.Hex())
	r.cache.Set(ctx, key, session, 10*time.Minute)
}

func (r *sessionRepository) getSessionFromCache(ctx context.Context, id string) *models.EmergencySession {
	if r.cache == nil {
		return nil
	}

	key := fmt.Sprintf("%s%s", utils.CacheKeySession, id)
	var session models.EmergencySession
	if err := r.cache.Get(ctx, key, &session); err != nil {
		return nil
	}

	return &session
}

func (r *sessionRepository) invalidateSessionCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}

	key := fmt.Sprintf("%s%s", utils.CacheKeySession, id)
	r.cache.Delete(ctx, key)
}

func activeStates() []models.SessionState {
	return []models.SessionState{models.SessionStateActive, models.SessionStateExtending}
}
