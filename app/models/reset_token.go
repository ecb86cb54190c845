package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResetToken is a single-use password-reset grant. Only the SHA-256 digest
// of the token is stored; the plain token travels in the reset email.
type ResetToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Email     string             `bson:"email" json:"-"`
	TokenHash string             `bson:"token_hash" json:"-"`
	ExpiresAt time.Time          `bson:"expires_at" json:"-"`
	Used      bool               `bson:"used" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"-"`
}

// Expired reports whether the token's validity window has passed.
func (t *ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
