package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one chat message, persisted so late joiners get history.
type Message struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User   string             `bson:"user" json:"user"` // sender email
	Body   string             `bson:"message" json:"message"`
	SentAt time.Time          `bson:"sent_at" json:"sent_at"`
}
