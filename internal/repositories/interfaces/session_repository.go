package interfaces

import (
	"context"
	"errors"
	"time"

	"safeguard/internal/models"
	"safeguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

type SessionRepository interface {
	Create(ctx context.Context, session *models.EmergencySession) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error)
	GetActiveByDevice(ctx context.Context, deviceID string) (*models.EmergencySession, error)
	GetActiveSessions(ctx context.Context) ([]*models.EmergencySession, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.EmergencySession, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// TransitionState flips the session state only when the current state is
	// one of from. Reports whether this call won the transition.
	TransitionState(ctx context.Context, id primitive.ObjectID, from []models.SessionState, to models.SessionState, updates map[string]interface{}) (bool, error)

	ExtendExpiry(ctx context.Context, id primitive.ObjectID, expiresAt time.Time) error
	AppendLocationSample(ctx context.Context, id primitive.ObjectID, sample *models.LocationSample, maxSamples int) error
	SetLastDispatch(ctx context.Context, id primitive.ObjectID, record *models.DispatchRecord) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
