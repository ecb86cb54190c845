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
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// UserRepository persists accounts in the "users" collection.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("users")}
}

// Create inserts a new account and fills in its generated ID.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Ef(apperr.Conflict, "email %q is already registered", u.Email)
		}
		return apperr.Wrap(apperr.Internal, "insert user", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByEmail fetches one account by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Ef(apperr.NotFound, "user %q not found", email)
		}
		return nil, apperr.Wrap(apperr.Internal, "find user", err)
	}
	return &u, nil
}

// FindByID fetches one account by hex id.
func (r *UserRepository) FindByID(ctx context.Context, hex string) (*models.User, error) {
	id, err := ParseID(hex)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveDBQuery("find", time.Now())

	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Ef(apperr.NotFound, "user %s not found", hex)
		}
		return nil, apperr.Wrap(apperr.Internal, "find user", err)
	}
	return &u, nil
}

// All returns every account, password hashes included; callers strip them.
func (r *UserRepository) All(ctx context.Context) ([]models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list users", err)
	}
	defer cur.Close(ctx)

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "decode users", err)
	}
	return users, nil
}

// UpdateRole changes an account's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id primitive.ObjectID, role rbac.Role) error {
	defer metrics.ObserveDBQuery("update", time.Now())
	return r.setFields(ctx, id, bson.M{"role": role})
}

// AddDocuments appends uploaded document records to an account.
func (r *UserRepository) AddDocuments(ctx context.Context, id primitive.ObjectID, docs []models.Document) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"documents": bson.M{"$each": docs}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "add documents", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Ef(apperr.NotFound, "user %s not found", id.Hex())
	}
	return nil
}

// SetLastConnection stamps the login/logout time.
func (r *UserRepository) SetLastConnection(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	defer metrics.ObserveDBQuery("update", time.Now())
	return r.setFields(ctx, id, bson.M{"last_connection": at})
}

// SetCart attaches a cart reference to an account.
func (r *UserRepository) SetCart(ctx context.Context, id, cartID primitive.ObjectID) error {
	defer metrics.ObserveDBQuery("update", time.Now())
	return r.setFields(ctx, id, bson.M{"cart": cartID})
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	defer metrics.ObserveDBQuery("update", time.Now())
	return r.setFields(ctx, id, bson.M{"password": hash})
}

func (r *UserRepository) setFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update user", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Ef(apperr.NotFound, "user %s not found", id.Hex())
	}
	return nil
}
