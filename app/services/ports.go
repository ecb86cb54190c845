// Package services holds the business logic between the HTTP boundary and
// the repositories. Services depend on narrow store interfaces so tests can
// swap in in-memory fakes.
package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/repositories"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// ErrAnonymousSocket is returned when an unauthenticated socket client
// attempts a mutation.
var ErrAnonymousSocket = apperr.E(apperr.Unauthorized, "socket is not authenticated")

// Event names fired by services after catalog mutations. The realtime layer
// subscribes to them and pushes the fresh product list to connected clients.
const (
	EventProductsChanged = "products.changed"
)

// ProductStore is the catalog persistence surface used by services.
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, hex string) (*models.Product, error)
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, hex string) error
	List(ctx context.Context, q repositories.ProductListOptions) ([]models.Product, int64, error)
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

// CartStore is the cart persistence surface used by services.
type CartStore interface {
	Create(ctx context.Context) (*models.Cart, error)
	FindByID(ctx context.Context, hex string) (*models.Cart, error)
	ReplaceItems(ctx context.Context, id primitive.ObjectID, items []models.LineItem) error
	Delete(ctx context.Context, hex string) error
	All(ctx context.Context) ([]models.Cart, error)
}

// TicketStore is the receipt persistence surface used by services.
type TicketStore interface {
	Create(ctx context.Context, t *models.Ticket) error
	FindByCode(ctx context.Context, code string) (*models.Ticket, error)
	ListByPurchaser(ctx context.Context, email string) ([]models.Ticket, error)
}

// UserStore is the account persistence surface used by services.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, hex string) (*models.User, error)
	All(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role rbac.Role) error
	AddDocuments(ctx context.Context, id primitive.ObjectID, docs []models.Document) error
	SetLastConnection(ctx context.Context, id primitive.ObjectID, at time.Time) error
	SetCart(ctx context.Context, id, cartID primitive.ObjectID) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
}

// TokenStore is the password-reset persistence surface used by services.
type TokenStore interface {
	Create(ctx context.Context, t *models.ResetToken) error
	FindValid(ctx context.Context, tokenHash string) (*models.ResetToken, error)
	MarkUsed(ctx context.Context, t *models.ResetToken) error
	PurgeExpired(ctx context.Context) (int64, error)
}
