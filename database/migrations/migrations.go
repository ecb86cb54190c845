// Package migrations contains the MongoDB index migrations. Each migration
// registers itself via init(); cmd/server imports this package so the
// registry is populated before the migrate command runs.
package migrations

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tiendalabs/tienda/pkg/migration"
)

func init() {
	migration.Register("20260115000000_users_email_unique", &usersEmailUnique{})
	migration.Register("20260115000001_products_code_unique", &productsCodeUnique{})
	migration.Register("20260115000002_products_listing_indexes", &productsListingIndexes{})
	migration.Register("20260115000003_tickets_code_unique", &ticketsCodeUnique{})
	migration.Register("20260115000004_password_resets_indexes", &passwordResetsIndexes{})
}

// -------- users: unique email --------

type usersEmailUnique struct{}

func (m *usersEmailUnique) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	return err
}

func (m *usersEmailUnique) Down(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().DropOne(ctx, "email_unique")
	return err
}

// -------- products: unique code --------

type productsCodeUnique struct{}

func (m *productsCodeUnique) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("products").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("code_unique"),
	})
	return err
}

func (m *productsCodeUnique) Down(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("products").Indexes().DropOne(ctx, "code_unique")
	return err
}

// -------- products: listing filter/sort indexes --------

type productsListingIndexes struct{}

func (m *productsListingIndexes) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("products").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_idx"),
		},
		{
			Keys:    bson.D{{Key: "price", Value: 1}},
			Options: options.Index().SetName("price_idx"),
		},
	})
	return err
}

func (m *productsListingIndexes) Down(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{"category_idx", "status_idx", "price_idx"} {
		if _, err := db.Collection("products").Indexes().DropOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// -------- tickets: unique code --------

type ticketsCodeUnique struct{}

func (m *ticketsCodeUnique) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("tickets").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("code_unique"),
	})
	return err
}

func (m *ticketsCodeUnique) Down(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("tickets").Indexes().DropOne(ctx, "code_unique")
	return err
}

// -------- password_resets: lookup + TTL cleanup --------

type passwordResetsIndexes struct{}

func (m *passwordResetsIndexes) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("password_resets").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetName("token_hash_idx"),
		},
		{
			// Mongo's TTL monitor removes expired grants; the scheduler's
			// purge job is the fallback for deployments without it.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_ttl"),
		},
	})
	return err
}

func (m *passwordResetsIndexes) Down(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{"token_hash_idx", "expires_ttl"} {
		if _, err := db.Collection("password_resets").Indexes().DropOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
