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

// TicketRepository persists purchase receipts in the "tickets" collection.
// Tickets are append-only: there is no update or delete here on purpose.
type TicketRepository struct {
	col *mongo.Collection
}

func NewTicketRepository(db *mongo.Database) *TicketRepository {
	return &TicketRepository{col: db.Collection("tickets")}
}

// Create inserts a ticket and fills in its generated ID.
func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	res, err := r.col.InsertOne(ctx, t)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "insert ticket", err)
	}
	t.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByCode fetches one ticket by its opaque code.
func (r *TicketRepository) FindByCode(ctx context.Context, code string) (*models.Ticket, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var t models.Ticket
	if err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Ef(apperr.NotFound, "ticket %q not found", code)
		}
		return nil, apperr.Wrap(apperr.Internal, "find ticket", err)
	}
	return &t, nil
}

// ListByPurchaser returns a buyer's tickets, newest first.
func (r *TicketRepository) ListByPurchaser(ctx context.Context, email string) ([]models.Ticket, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	opts := options.Find().SetSort(bson.D{{Key: "purchase_datetime", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"purchaser": email}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list tickets", err)
	}
	defer cur.Close(ctx)

	tickets := []models.Ticket{}
	if err := cur.All(ctx, &tickets); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "decode tickets", err)
	}
	return tickets, nil
}
