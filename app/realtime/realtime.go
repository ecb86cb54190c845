// Package realtime wires the WebSocket hubs and the SSE mirror: a live
// product feed pushed to every connected client after any catalog mutation,
// product create/delete over the socket, and a persisted chat channel.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/event"
	"github.com/tiendalabs/tienda/pkg/logger"
	"github.com/tiendalabs/tienda/pkg/metrics"
	"github.com/tiendalabs/tienda/pkg/rbac"
	"github.com/tiendalabs/tienda/pkg/ws"
)

const historyLimit = 50

// MessageStore is the chat persistence surface.
type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	Latest(ctx context.Context, n int64) ([]models.Message, error)
}

// Hubs bundles the running WebSocket hubs.
type Hubs struct {
	Products *ws.Hub
	Chat     *ws.Hub

	products *services.ProductService
	users    services.UserStore
	messages MessageStore

	mu   sync.Mutex
	subs map[chan struct{}]struct{} // SSE subscribers
}

// New builds the hubs and subscribes them to catalog change events.
// Call Start to run the hub loops.
func New(products *services.ProductService, users services.UserStore, messages MessageStore) *Hubs {
	h := &Hubs{
		Products: ws.NewHub(),
		Chat:     ws.NewHub(),
		products: products,
		users:    users,
		messages: messages,
		subs:     map[chan struct{}]struct{}{},
	}

	h.Products.OnConnect = func(_ *ws.Hub, client *ws.Client) {
		h.sendFeedTo(client)
	}
	h.Products.OnMessage = h.handleProductMessage

	h.Chat.OnConnect = func(_ *ws.Hub, client *ws.Client) {
		h.sendHistoryTo(client)
	}
	h.Chat.OnMessage = h.handleChatMessage

	event.Listen(services.EventProductsChanged, func(_ interface{}) {
		h.pushFeed()
		h.notifySSE()
	})

	return h
}

// Start runs the hub loops and a gauge sampler until ctx is cancelled.
func (h *Hubs) Start(ctx context.Context) {
	go h.Products.Run()
	go h.Chat.Run()
	go h.sampleGauges(ctx)
}

func (h *Hubs) sampleGauges(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.WSConnections.WithLabelValues("products").Set(float64(h.Products.ClientCount()))
			metrics.WSConnections.WithLabelValues("chat").Set(float64(h.Chat.ClientCount()))
		}
	}
}

// ─── Product feed ─────────────────────────────────────────────────────────────

type feedPayload struct {
	Type     string           `json:"type"`
	Products []models.Product `json:"products"`
}

func (h *Hubs) currentFeed() (*feedPayload, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	listing, err := h.products.List(ctx, services.ListQuery{Limit: 0, LimitSet: true})
	if err != nil {
		return nil, err
	}
	return &feedPayload{Type: "products", Products: listing.Products}, nil
}

func (h *Hubs) sendFeedTo(client *ws.Client) {
	feed, err := h.currentFeed()
	if err != nil {
		logger.Error("realtime: feed load failed", "error", err)
		return
	}
	client.SendJSON(feed)
}

// pushFeed broadcasts the fresh full product list to every feed client.
// Fire-and-forget: the only guarantee across concurrent mutations is that
// the last write is eventually observed.
func (h *Hubs) pushFeed() {
	if h.Products.ClientCount() == 0 {
		return
	}
	feed, err := h.currentFeed()
	if err != nil {
		logger.Error("realtime: feed load failed", "error", err)
		return
	}
	h.Products.BroadcastJSON(feed)
}

// productCommand is an inbound create/delete request on the feed socket.
type productCommand struct {
	Action  string                 `json:"action"` // "createProduct" | "deleteProduct"
	ID      string                 `json:"id"`
	Product *services.ProductInput `json:"product"`
}

func (h *Hubs) handleProductMessage(_ *ws.Hub, msg ws.Message) {
	var cmd productCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		msg.Client.SendJSON(map[string]string{"error": "malformed command"})
		return
	}

	actor, err := h.identityFor(msg.Client.Label)
	if err != nil {
		msg.Client.SendJSON(map[string]string{"error": "unknown sender"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cmd.Action {
	case "createProduct":
		if cmd.Product == nil {
			msg.Client.SendJSON(map[string]string{"error": "product payload required"})
			return
		}
		if _, err := h.products.Create(ctx, actor, *cmd.Product); err != nil {
			msg.Client.SendJSON(map[string]string{"error": err.Error()})
		}
	case "deleteProduct":
		if err := h.products.Delete(ctx, actor, cmd.ID); err != nil {
			msg.Client.SendJSON(map[string]string{"error": err.Error()})
		}
	default:
		msg.Client.SendJSON(map[string]string{"error": "unknown action " + cmd.Action})
	}
	// success is visible as the next feed broadcast
}

// identityFor resolves a socket label (authenticated email) back to a
// request identity for capability checks.
func (h *Hubs) identityFor(email string) (auth.Identity, error) {
	if email == "" {
		return auth.Identity{}, services.ErrAnonymousSocket
	}
	if email == config.AdminEmail() {
		return auth.Identity{Email: email, Role: rbac.RoleAdmin}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, err := h.users.FindByEmail(ctx, email)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{
		UserID: u.ID.Hex(),
		Email:  u.Email,
		Role:   u.Role,
		CartID: u.CartID.Hex(),
	}, nil
}

// ─── Chat ─────────────────────────────────────────────────────────────────────

type chatPayload struct {
	Type     string           `json:"type"` // "history" | "message"
	Messages []models.Message `json:"messages,omitempty"`
	Message  *models.Message  `json:"message,omitempty"`
}

func (h *Hubs) sendHistoryTo(client *ws.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	history, err := h.messages.Latest(ctx, historyLimit)
	if err != nil {
		logger.Error("realtime: chat history load failed", "error", err)
		return
	}
	client.SendJSON(chatPayload{Type: "history", Messages: history})
}

type chatInbound struct {
	Message string `json:"message"`
}

func (h *Hubs) handleChatMessage(hub *ws.Hub, msg ws.Message) {
	if msg.Client.Label == "" {
		msg.Client.SendJSON(map[string]string{"error": "login required to chat"})
		return
	}

	var in chatInbound
	if err := json.Unmarshal(msg.Data, &in); err != nil || in.Message == "" {
		msg.Client.SendJSON(map[string]string{"error": "empty message"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m := &models.Message{User: msg.Client.Label, Body: in.Message}
	if err := h.messages.Create(ctx, m); err != nil {
		logger.Error("realtime: chat persist failed", "error", err)
		msg.Client.SendJSON(map[string]string{"error": "message not saved"})
		return
	}
	hub.BroadcastJSON(chatPayload{Type: "message", Message: m})
}

// ─── SSE subscribers ──────────────────────────────────────────────────────────

// SubscribeFeed registers an SSE subscriber; the returned channel signals
// that the catalog changed. Call the cancel func on disconnect.
func (h *Hubs) SubscribeFeed() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *Hubs) notifySSE() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default: // subscriber already has a pending signal
		}
	}
}

// CurrentFeed exposes the feed payload to the SSE handler.
func (h *Hubs) CurrentFeed() (interface{}, error) {
	return h.currentFeed()
}
