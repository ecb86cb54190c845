package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is one catalog entry. Stock never goes below zero at rest; the
// repository enforces that with a conditional decrement.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Code        string             `bson:"code" json:"code"` // unique, human-assigned
	Price       float64            `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"stock"`
	Category    string             `bson:"category" json:"category"`
	Status      bool               `bson:"status" json:"status"` // availability flag
	Owner       string             `bson:"owner" json:"owner"`   // creator email, "admin" for seeded entries
	Thumbnails  []string           `bson:"thumbnails,omitempty" json:"thumbnails,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
