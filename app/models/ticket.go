package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ticket is an immutable purchase receipt. Created once per checkout with a
// positive amount; never updated or deleted afterwards.
type Ticket struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code         string             `bson:"code" json:"code"` // opaque unique string
	PurchaseTime time.Time          `bson:"purchase_datetime" json:"purchase_datetime"`
	Amount       float64            `bson:"amount" json:"amount"`
	Purchaser    string             `bson:"purchaser" json:"purchaser"` // buyer email
}
