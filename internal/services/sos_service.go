package services

import (
	"context"
	"regexp"
	"time"

	"safeguard/internal/config"
	"safeguard/internal/models"
	"safeguard/internal/repositories/interfaces"
	"safeguard/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

type SosLockStatus struct {
	Armed     bool       `json:"armed"`
	PinSet    bool       `json:"pin_set"`
	LockedOut bool       `json:"locked_out"`
	ArmedAt   *time.Time `json:"armed_at,omitempty"`
}

type SosService interface {
	SetPin(ctx context.Context, userID primitive.ObjectID, pin string) error
	Arm(ctx context.Context, userID primitive.ObjectID) error
	Silence(ctx context.Context, userID primitive.ObjectID, pin string) error
	Status(ctx context.Context, userID primitive.ObjectID) (*SosLockStatus, error)
}

type sosService struct {
	repo     interfaces.SosLockRepository
	cache    CacheService
	security *config.SecurityConfig
	logger   *logger.Logger
}

func NewSosService(repo interfaces.SosLockRepository, cache CacheService, security *config.SecurityConfig, log *logger.Logger) SosService {
	return &sosService{
		repo:     repo,
		cache:    cache,
		security: security,
		logger:   log,
	}
}

func (s *sosService) SetPin(ctx context.Context, userID primitive.ObjectID, pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	lock := &models.SosLock{
		UserID:  userID,
		PinHash: string(hash),
	}

	if existing, err := s.repo.GetByUserID(ctx, userID); err == nil {
		lock.Armed = existing.Armed
		lock.ArmedAt = existing.ArmedAt
	}

	if err := s.repo.Upsert(ctx, lock); err != nil {
		return err
	}

	s.cache.ResetPinAttempts(ctx, userID.Hex())

	s.logger.WithUserID(userID).Info("SOS PIN updated")
	return nil
}

// Arm marks the siren as sounding. Silencing it requires the PIN.
func (s *sosService) Arm(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.repo.GetByUserID(ctx, userID); err != nil {
		if err == interfaces.ErrNotFound {
			return ErrPinNotSet
		}
		return err
	}

	if err := s.repo.SetArmed(ctx, userID, true); err != nil {
		return err
	}

	s.logger.LogSecurityEvent("sos_armed", "high", map[string]interface{}{
		"user_id": userID.Hex(),
	})
	return nil
}

// Silence disarms the siren after a constant time PIN check. Repeated
// failures trip a temporary lockout.
func (s *sosService) Silence(ctx context.Context, userID primitive.ObjectID, pin string) error {
	lockedOut, err := s.cache.IsPinLockedOut(ctx, userID.Hex())
	if err != nil {
		s.logger.WithUserID(userID).WithError(err).Warn("Failed to check PIN lockout")
	}
	if lockedOut {
		return ErrTooManyAttempts
	}

	lock, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return ErrPinNotSet
		}
		return err
	}
	if lock.PinHash == "" {
		return ErrPinNotSet
	}
	if !lock.Armed {
		return ErrSirenNotArmed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(lock.PinHash), []byte(pin)); err != nil {
		attempts, cerr := s.cache.IncrementPinAttempts(ctx, userID.Hex(), s.security.PinLockoutTime)
		if cerr != nil {
			s.logger.WithUserID(userID).WithError(cerr).Warn("Failed to count PIN attempt")
		}

		s.logger.LogSecurityEvent("sos_pin_failed", "medium", map[string]interface{}{
			"user_id":  userID.Hex(),
			"attempts": attempts,
		})

		if attempts >= int64(s.security.MaxPinAttempts) {
			if lerr := s.cache.LockoutPin(ctx, userID.Hex(), s.security.PinLockoutTime); lerr != nil {
				s.logger.WithUserID(userID).WithError(lerr).Warn("Failed to set PIN lockout")
			}
			s.logger.LogSecurityEvent("sos_pin_lockout", "high", map[string]interface{}{
				"user_id": userID.Hex(),
			})
			return ErrTooManyAttempts
		}

		return ErrWrongPin
	}

	if err := s.repo.SetArmed(ctx, userID, false); err != nil {
		return err
	}

	s.cache.ResetPinAttempts(ctx, userID.Hex())

	s.logger.LogSecurityEvent("sos_silenced", "medium", map[string]interface{}{
		"user_id": userID.Hex(),
	})
	return nil
}

func (s *sosService) Status(ctx context.Context, userID primitive.ObjectID) (*SosLockStatus, error) {
	status := &SosLockStatus{}

	lockedOut, err := s.cache.IsPinLockedOut(ctx, userID.Hex())
	if err == nil {
		status.LockedOut = lockedOut
	}

	lock, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return status, nil
		}
		return nil, err
	}

	status.PinSet = lock.PinHash != ""
	status.Armed = lock.Armed
	status.ArmedAt = lock.ArmedAt

	return status, nil
}
