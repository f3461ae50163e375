package interfaces

import (
	"context"

	"safeguard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SosLockRepository interface {
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.SosLock, error)
	Upsert(ctx context.Context, lock *models.SosLock) error
	SetArmed(ctx context.Context, userID primitive.ObjectID, armed bool) error
}
