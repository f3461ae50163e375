package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SosLock is the PIN gate for silencing an active siren and for
// acknowledging safety check-ins. Only the bcrypt hash of the PIN is
// ever stored.
type SosLock struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	PinHash   string             `json:"-" bson:"pin_hash"`
	Armed     bool               `json:"armed" bson:"armed"`
	ArmedAt   *time.Time         `json:"armed_at,omitempty" bson:"armed_at,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}
