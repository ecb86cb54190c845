package seeders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/repositories"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

func init() {
	Register("admin_user", SeedAdminUser)
	Register("catalog", SeedCatalog)
}

// SeedAdminUser stores a persisted admin account when ADMIN_PASSWORD is
// configured, so the admin works even without the config-credential login
// path. Idempotent: skips when the email exists.
func SeedAdminUser(ctx context.Context, db *mongo.Database) error {
	email := config.AdminEmail()
	password := config.AdminPassword()
	if password == "" {
		return nil
	}

	count, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email})
	if err != nil || count > 0 {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	users := repositories.NewUserRepository(db)
	return users.Create(ctx, &models.User{
		FirstName: "Admin",
		Email:     email,
		Password:  hash,
		Role:      rbac.RoleAdmin,
	})
}

// SeedCatalog loads a small sample catalog. Idempotent: skips when the
// products collection is non-empty.
func SeedCatalog(ctx context.Context, db *mongo.Database) error {
	count, err := db.Collection("products").CountDocuments(ctx, bson.M{})
	if err != nil || count > 0 {
		return err
	}

	now := time.Now().UTC()
	sample := []models.Product{
		{Title: "Wireless headphones", Description: "Over-ear, noise cancelling", Code: "ELEC-001", Price: 129.90, Stock: 25, Category: "Electronics", Status: true, Owner: "admin"},
		{Title: "Mechanical keyboard", Description: "Tenkeyless, brown switches", Code: "ELEC-002", Price: 89.50, Stock: 40, Category: "Electronics", Status: true, Owner: "admin"},
		{Title: "Espresso maker", Description: "Stovetop, 6 cups", Code: "HOME-001", Price: 34.00, Stock: 60, Category: "Home", Status: true, Owner: "admin"},
		{Title: "Yoga mat", Description: "Non-slip, 6mm", Code: "SPRT-001", Price: 22.75, Stock: 80, Category: "Sports", Status: true, Owner: "admin"},
		{Title: "Chess set", Description: "Wooden board with weighted pieces", Code: "TOYS-001", Price: 45.00, Stock: 15, Category: "Toys", Status: true, Owner: "admin"},
		{Title: "Novel: The Long Road", Description: "Paperback edition", Code: "BOOK-001", Price: 14.99, Stock: 0, Category: "Books", Status: false, Owner: "admin"},
	}

	docs := make([]interface{}, len(sample))
	for i := range sample {
		sample[i].CreatedAt = now
		sample[i].UpdatedAt = now
		docs[i] = sample[i]
	}

	_, err = db.Collection("products").InsertMany(ctx, docs)
	return err
}
