// Package models holds the document shapes persisted in MongoDB. Models are
// plain structs with bson/json tags; all query logic lives in the
// repositories.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/pkg/rbac"
)

// Document is one uploaded qualification file attached to a user account.
type Document struct {
	Name       string    `bson:"name" json:"name"`
	Reference  string    `bson:"reference" json:"reference"` // storage disk path
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// RequiredDocuments is the complete set an account must have on file before
// it can be upgraded to premium.
var RequiredDocuments = []string{"identification", "proof of address", "bank statement"}

// User is an account.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName      string             `bson:"first_name" json:"first_name"`
	LastName       string             `bson:"last_name" json:"last_name"`
	Email          string             `bson:"email" json:"email"`
	Age            int                `bson:"age,omitempty" json:"age,omitempty"`
	Password       string             `bson:"password" json:"-"` // bcrypt hash, never serialised
	Role           rbac.Role          `bson:"role" json:"role"`
	CartID         primitive.ObjectID `bson:"cart,omitempty" json:"cart,omitempty"`
	Documents      []Document         `bson:"documents,omitempty" json:"documents,omitempty"`
	LastConnection time.Time          `bson:"last_connection,omitempty" json:"last_connection,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// HasDocument reports whether a document with the given name is on file.
func (u *User) HasDocument(name string) bool {
	for _, d := range u.Documents {
		if d.Name == name {
			return true
		}
	}
	return false
}

// DocumentsComplete reports whether every required document is on file.
func (u *User) DocumentsComplete() bool {
	for _, name := range RequiredDocuments {
		if !u.HasDocument(name) {
			return false
		}
	}
	return true
}

// FullName joins first and last name for display use.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
