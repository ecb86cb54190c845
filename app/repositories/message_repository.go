package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/metrics"
)

// MessageRepository persists chat messages in the "messages" collection.
type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("messages")}
}

// Create inserts a chat message.
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	res, err := r.col.InsertOne(ctx, m)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "insert message", err)
	}
	m.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// Latest returns the most recent n messages in chronological order, so a
// joining chat client can replay history oldest-first.
func (r *MessageRepository) Latest(ctx context.Context, n int64) ([]models.Message, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: -1}}).SetLimit(n)
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list messages", err)
	}
	defer cur.Close(ctx)

	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "decode messages", err)
	}

	// reverse newest-first into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
