package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/metrics"
)

// TokenRepository persists password-reset grants in the "password_resets"
// collection. Only token digests are stored.
type TokenRepository struct {
	col *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{col: db.Collection("password_resets")}
}

// Create stores a reset grant. Any previous grants for the same email are
// invalidated first, so only the newest token works.
func (r *TokenRepository) Create(ctx context.Context, t *models.ResetToken) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	if _, err := r.col.UpdateMany(ctx,
		bson.M{"email": t.Email, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	); err != nil {
		return apperr.Wrap(apperr.Internal, "invalidate previous reset tokens", err)
	}

	t.CreatedAt = time.Now().UTC()
	if _, err := r.col.InsertOne(ctx, t); err != nil {
		return apperr.Wrap(apperr.Internal, "insert reset token", err)
	}
	return nil
}

// FindValid returns the unused, unexpired grant matching the token digest.
func (r *TokenRepository) FindValid(ctx context.Context, tokenHash string) (*models.ResetToken, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var t models.ResetToken
	err := r.col.FindOne(ctx, bson.M{
		"token_hash": tokenHash,
		"used":       false,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.E(apperr.NotFound, "reset token is invalid or expired")
		}
		return nil, apperr.Wrap(apperr.Internal, "find reset token", err)
	}
	return &t, nil
}

// MarkUsed burns a grant after a successful reset.
func (r *TokenRepository) MarkUsed(ctx context.Context, t *models.ResetToken) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	_, err := r.col.UpdateOne(ctx, bson.M{"_id": t.ID}, bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "mark reset token used", err)
	}
	return nil
}

// PurgeExpired deletes grants past their expiry; run by the scheduler.
func (r *TokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	defer metrics.ObserveDBQuery("delete", time.Now())

	res, err := r.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "purge reset tokens", err)
	}
	return res.DeletedCount, nil
}
