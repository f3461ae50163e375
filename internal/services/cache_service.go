package services

import (
	"context"
	"fmt"
	"time"

	"safeguard/internal/models"
	"safeguard/internal/utils"
	"safeguard/pkg/cache"
	"safeguard/pkg/logger"
)

type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	SetExpire(ctx context.Context, key string, expiration time.Duration) error
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	// Active session lock, one live session per device.
	AcquireSessionLock(ctx context.Context, deviceID string, sessionID string, ttl time.Duration) (bool, error)
	ReleaseSessionLock(ctx context.Context, deviceID string) error
	RefreshSessionLock(ctx context.Context, deviceID string, ttl time.Duration) error

	// Latest device telemetry.
	SetTelemetry(ctx context.Context, deviceID string, report *models.TelemetryReport, ttl time.Duration) error
	GetTelemetry(ctx context.Context, deviceID string) (*models.TelemetryReport, error)

	// PIN attempt tracking for the SOS lock.
	IncrementPinAttempts(ctx context.Context, userID string, window time.Duration) (int64, error)
	ResetPinAttempts(ctx context.Context, userID string) error
	LockoutPin(ctx context.Context, userID string, duration time.Duration) error
	IsPinLockedOut(ctx context.Context, userID string) (bool, error)
}

type cacheService struct {
	redis  *cache.RedisCache
	logger *logger.Logger
}

func NewCacheService(redis *cache.RedisCache, logger *logger.Logger) CacheService {
	return &cacheService{
		redis:  redis,
		logger: logger,
	}
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	return s.redis.Get(ctx, key, dest)
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.redis.Set(ctx, key, value, expiration)
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	return s.redis.Delete(ctx, keys...)
}

func (s *cacheService) Exists(ctx context.Context, key string) (bool, error) {
	return s.redis.Exists(ctx, key)
}

func (s *cacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, key, value, expiration)
}

func (s *cacheService) Increment(ctx context.Context, key string) (int64, error) {
	return s.redis.Increment(ctx, key)
}

func (s *cacheService) SetExpire(ctx context.Context, key string, expiration time.Duration) error {
	return s.redis.SetExpire(ctx, key, expiration)
}

func (s *cacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.redis.GetTTL(ctx, key)
}

func (s *cacheService) AcquireSessionLock(ctx context.Context, deviceID string, sessionID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s%s", utils.CacheKeyActiveSession, deviceID)
	return s.redis.SetNX(ctx, key, sessionID, ttl)
}

func (s *cacheService) ReleaseSessionLock(ctx context.Context, deviceID string) error {
	key := fmt.Sprintf("%s%s", utils.CacheKeyActiveSession, deviceID)
	return s.redis.Delete(ctx, key)
}

func (s *cacheService) RefreshSessionLock(ctx context.Context, deviceID string, ttl time.Duration) error {
	key := fmt.Sprintf("%s%s", utils.CacheKeyActiveSession, deviceID)
	return s.redis.SetExpire(ctx, key, ttl)
}

func (s *cacheService) SetTelemetry(ctx context.Context, deviceID string, report *models.TelemetryReport, ttl time.Duration) error {
	key := fmt.Sprintf("%s%s", utils.CacheKeyTelemetry, deviceID)
	return s.redis.Set(ctx, key, report, ttl)
}

func (s *cacheService) GetTelemetry(ctx context.Context, deviceID string) (*models.TelemetryReport, error) {
	key := fmt.Sprintf("%s%s", utils.CacheKeyTelemetry, deviceID)

	var report models.TelemetryReport
	if err := s.redis.Get(ctx, key, &report); err != nil {
		if cache.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}

	return &report, nil
}

func (s *cacheService) IncrementPinAttempts(ctx context.Context, userID string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s%s", utils.CacheKeyPinAttempts, userID)

	count, err := s.redis.Increment(ctx, key)
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := s.redis.SetExpire(ctx, key, window); err != nil {
			s.logger.WithError(err).Warn("Failed to set PIN attempt window")
		}
	}

	return count, nil
}

func (s *cacheService) ResetPinAttempts(ctx context.Context, userID string) error {
	key := fmt.Sprintf("%s%s", utils.CacheKeyPinAttempts, userID)
	return s.redis.Delete(ctx, key)
}

func (s *cacheService) LockoutPin(ctx context.Context, userID string, duration time.Duration) error {
	key := fmt.Sprintf("%s%s", utils.CacheKeyPinLockout, userID)
	return s.redis.Set(ctx, key, time.Now().Unix(), duration)
}

func (s *cacheService) IsPinLockedOut(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("%s%s", utils.CacheKeyPinLockout, userID)
	return s.redis.Exists(ctx, key)
}
