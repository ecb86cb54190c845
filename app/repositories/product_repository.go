package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/metrics"
)

// ProductListOptions is the resolved query for a catalog listing.
// Filter and Sort are produced by the service layer; the repository only
// translates them into a Mongo cursor.
type ProductListOptions struct {
	Filter bson.M
	Sort   bson.D // empty means insertion order
	Skip   int64
	Limit  int64 // 0 means no limit
}

// ProductRepository persists catalog entries in the "products" collection.
type ProductRepository struct {
	col *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{col: db.Collection("products")}
}

// Create inserts a new product and fills in its generated ID.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Ef(apperr.Conflict, "product code %q already exists", p.Code)
		}
		return apperr.Wrap(apperr.Internal, "insert product", err)
	}
	p.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID fetches one product by hex id.
func (r *ProductRepository) FindByID(ctx context.Context, hex string) (*models.Product, error) {
	id, err := ParseID(hex)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveDBQuery("find", time.Now())

	var p models.Product
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Ef(apperr.NotFound, "product %s not found", hex)
		}
		return nil, apperr.Wrap(apperr.Internal, "find product", err)
	}
	return &p, nil
}

// FindByCode fetches one product by its unique code.
func (r *ProductRepository) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var p models.Product
	if err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Ef(apperr.NotFound, "product with code %q not found", code)
		}
		return nil, apperr.Wrap(apperr.Internal, "find product by code", err)
	}
	return &p, nil
}

// Update replaces the mutable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	p.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"title":       p.Title,
		"description": p.Description,
		"code":        p.Code,
		"price":       p.Price,
		"stock":       p.Stock,
		"category":    p.Category,
		"status":      p.Status,
		"thumbnails":  p.Thumbnails,
		"updated_at":  p.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Ef(apperr.Conflict, "product code %q already exists", p.Code)
		}
		return apperr.Wrap(apperr.Internal, "update product", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Ef(apperr.NotFound, "product %s not found", p.ID.Hex())
	}
	return nil
}

// Delete removes a product by hex id.
func (r *ProductRepository) Delete(ctx context.Context, hex string) error {
	id, err := ParseID(hex)
	if err != nil {
		return err
	}
	defer metrics.ObserveDBQuery("delete", time.Now())

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "delete product", err)
	}
	if res.DeletedCount == 0 {
		return apperr.Ef(apperr.NotFound, "product %s not found", hex)
	}
	return nil
}

// List returns one page of products plus the total match count.
func (r *ProductRepository) List(ctx context.Context, q ProductListOptions) ([]models.Product, int64, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	filter := q.Filter
	if filter == nil {
		filter = bson.M{}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "count products", err)
	}

	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "list products", err)
	}
	defer cur.Close(ctx)

	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "decode products", err)
	}
	return products, total, nil
}

// DecrementStock atomically decrements stock by qty, but only when the
// current stock covers it. Returns false when the conditional did not match,
// which is how concurrent checkouts lose the race without overselling.
func (r *ProductRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	defer metrics.ObserveDBQuery("update", time.Now())

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, "decrement stock", err)
	}
	return res.ModifiedCount == 1, nil
}

// IncrementStock returns qty units to a product's stock. Used to compensate
// an already-applied decrement when a later checkout step fails.
func (r *ProductRepository) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "increment stock", err)
	}
	return nil
}
