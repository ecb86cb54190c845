package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LineItem is one (product, quantity) pair inside a cart.
// Quantity is always >= 1: a non-positive quantity removes the line.
type LineItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"product"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart is a mutable collection of line items awaiting purchase.
// At most one line item exists per distinct product.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Items     []LineItem         `bson:"items" json:"items"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ItemIndex returns the index of the line item for productID, or -1.
func (c *Cart) ItemIndex(productID primitive.ObjectID) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// ResolvedItem is a line item with the product reference populated.
type ResolvedItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// ResolvedCart is a cart whose line items carry full product data, as
// returned by CartService.GetCart.
type ResolvedCart struct {
	ID    primitive.ObjectID `json:"id"`
	Items []ResolvedItem     `json:"items"`
}
