package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/metrics"
)

// CartRepository persists carts in the "carts" collection.
type CartRepository struct {
	col *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{col: db.Collection("carts")}
}

// Create inserts a new empty cart and returns it.
func (r *CartRepository) Create(ctx context.Context) (*models.Cart, error) {
	defer metrics.ObserveDBQuery("insert", time.Now())

	now := time.Now().UTC()
	cart := &models.Cart{Items: []models.LineItem{}, CreatedAt: now, UpdatedAt: now}

	res, err := r.col.InsertOne(ctx, cart)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "insert cart", err)
	}
	cart.ID = res.InsertedID.(primitive.ObjectID)
	return cart, nil
}

// FindByID fetches one cart by hex id.
func (r *CartRepository) FindByID(ctx context.Context, hex string) (*models.Cart, error) {
	id, err := ParseID(hex)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveDBQuery("find", time.Now())

	var cart models.Cart
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Ef(apperr.NotFound, "cart %s not found", hex)
		}
		return nil, apperr.Wrap(apperr.Internal, "find cart", err)
	}
	return &cart, nil
}

// ReplaceItems overwrites the full line-item list in one document write.
func (r *CartRepository) ReplaceItems(ctx context.Context, id primitive.ObjectID, items []models.LineItem) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	if items == nil {
		items = []models.LineItem{}
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"items":      items,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update cart items", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Ef(apperr.NotFound, "cart %s not found", id.Hex())
	}
	return nil
}

// Delete removes a cart by hex id.
func (r *CartRepository) Delete(ctx context.Context, hex string) error {
	id, err := ParseID(hex)
	if err != nil {
		return err
	}
	defer metrics.ObserveDBQuery("delete", time.Now())

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "delete cart", err)
	}
	if res.DeletedCount == 0 {
		return apperr.Ef(apperr.NotFound, "cart %s not found", hex)
	}
	return nil
}

// All returns every cart. Admin-only listing.
func (r *CartRepository) All(ctx context.Context) ([]models.Cart, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list carts", err)
	}
	defer cur.Close(ctx)

	carts := []models.Cart{}
	if err := cur.All(ctx, &carts); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "decode carts", err)
	}
	return carts, nil
}
