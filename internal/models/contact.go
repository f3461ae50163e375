package models

// Contact is a recipient of session alerts. Contacts are owned by the
// caller and snapshotted into the session at start; they do not change
// for the lifetime of the session.
type Contact struct {
	ID        string `json:"id" bson:"id" validate:"required"`
	Name      string `json:"name" bson:"name" validate:"required"`
	Phone     string `json:"phone" bson:"phone" validate:"required"`
	PushToken string `json:"push_token,omitempty" bson:"push_token,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
}
