// Package repositories is the MongoDB data-access layer. One repository per
// collection; every repository receives its *mongo.Database explicitly at
// construction, so there is no package-level database handle.
package repositories

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/pkg/apperr"
)

// ParseID converts a caller-supplied hex id into an ObjectID.
// A malformed id is an InvalidID error, distinct from NotFound.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Ef(apperr.InvalidID, "malformed id %q", hex)
	}
	return id, nil
}
