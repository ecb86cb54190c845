package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/jobs"
	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/notifications"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/event"
	"github.com/tiendalabs/tienda/pkg/logger"
	"github.com/tiendalabs/tienda/pkg/metrics"
	"github.com/tiendalabs/tienda/pkg/notification"
	"github.com/tiendalabs/tienda/pkg/queue"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// FailedProduct is one line item that could not be purchased.
type FailedProduct struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ObjectID string `json:"_id"`
}

// CheckoutResult is the outcome of FinalizePurchase. TicketID is nil when
// nothing was purchasable.
type CheckoutResult struct {
	TotalAmount    float64         `json:"totalAmount"`
	TicketID       *string         `json:"ticketId"`
	TicketCode     string          `json:"ticketCode,omitempty"`
	FailedProducts []FailedProduct `json:"failedProducts"`
}

// CartItemInput is one entry of a full cart replacement.
type CartItemInput struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,integer,gte=1"`
}

// CartService orchestrates cart mutation and checkout against the product,
// cart and ticket stores.
type CartService struct {
	carts    CartStore
	products ProductStore
	tickets  TicketStore
}

func NewCartService(carts CartStore, products ProductStore, tickets TicketStore) *CartService {
	return &CartService{carts: carts, products: products, tickets: tickets}
}

// CreateCart makes a new empty cart.
func (s *CartService) CreateCart(ctx context.Context) (*models.Cart, error) {
	return s.carts.Create(ctx)
}

// GetCart returns a cart with every line item resolved to full product
// data. Items whose product has since been deleted are skipped.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*models.ResolvedCart, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	resolved := &models.ResolvedCart{ID: cart.ID, Items: []models.ResolvedItem{}}
	for _, item := range cart.Items {
		p, err := s.products.FindByID(ctx, item.ProductID.Hex())
		if err != nil {
			if apperr.IsKind(err, apperr.NotFound) {
				logger.Warn("cart references deleted product",
					"cart_id", cartID, "product_id", item.ProductID.Hex())
				continue
			}
			return nil, err
		}
		resolved.Items = append(resolved.Items, models.ResolvedItem{
			Product:  *p,
			Quantity: item.Quantity,
		})
	}
	return resolved, nil
}

// ListCarts returns every cart. Admin-only.
func (s *CartService) ListCarts(ctx context.Context) ([]models.Cart, error) {
	return s.carts.All(ctx)
}

// AddToCart increments the line item for productID by qty, appending a new
// line when none exists. Stock is not checked here; only checkout enforces
// it. A premium caller may not add a product they own.
func (s *CartService) AddToCart(ctx context.Context, actor auth.Identity, cartID, productID string, qty int) (*models.Cart, error) {
	if qty < 1 {
		return nil, apperr.E(apperr.BadRequest, "quantity must be at least 1")
	}

	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if actor.Role == rbac.RolePremium && product.Owner == actor.Email {
		return nil, apperr.E(apperr.Forbidden, "cannot add your own product to a cart")
	}

	if i := cart.ItemIndex(product.ID); i >= 0 {
		cart.Items[i].Quantity += qty
	} else {
		cart.Items = append(cart.Items, models.LineItem{ProductID: product.ID, Quantity: qty})
	}

	if err := s.carts.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateProductQuantity sets the quantity of an existing line item exactly.
// A quantity of zero or less removes the line instead of storing it.
func (s *CartService) UpdateProductQuantity(ctx context.Context, cartID, productID string, qty int) (*models.Cart, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	pid, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}

	i := cart.ItemIndex(pid)
	if i < 0 {
		return nil, apperr.Ef(apperr.NotFound, "product %s is not in the cart", productID)
	}

	if qty <= 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	} else {
		cart.Items[i].Quantity = qty
	}

	if err := s.carts.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return nil, err
	}
	return cart, nil
}

// ReplaceCartProducts swaps the whole line-item list in one write. Input
// quantities are coerced to at least 1 and duplicate product entries are
// merged so the one-line-per-product invariant holds.
func (s *CartService) ReplaceCartProducts(ctx context.Context, cartID string, items []CartItemInput) (*models.Cart, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	merged := []models.LineItem{}
	index := map[primitive.ObjectID]int{}
	for _, in := range items {
		pid, err := parseProductID(in.Product)
		if err != nil {
			return nil, err
		}
		qty := in.Quantity
		if qty < 1 {
			qty = 1
		}
		if i, ok := index[pid]; ok {
			merged[i].Quantity += qty
			continue
		}
		index[pid] = len(merged)
		merged = append(merged, models.LineItem{ProductID: pid, Quantity: qty})
	}

	if err := s.carts.ReplaceItems(ctx, cart.ID, merged); err != nil {
		return nil, err
	}
	cart.Items = merged
	return cart, nil
}

// RemoveFromCart decrements the line item by one, removing it entirely when
// a single unit is left.
func (s *CartService) RemoveFromCart(ctx context.Context, cartID, productID string) (*models.Cart, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	pid, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}

	i := cart.ItemIndex(pid)
	if i < 0 {
		return nil, apperr.Ef(apperr.NotFound, "product %s is not in the cart", productID)
	}

	if cart.Items[i].Quantity > 1 {
		cart.Items[i].Quantity--
	} else {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	}

	if err := s.carts.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return nil, err
	}
	return cart, nil
}

// EmptyCart clears every line item.
func (s *CartService) EmptyCart(ctx context.Context, cartID string) error {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return err
	}
	return s.carts.ReplaceItems(ctx, cart.ID, nil)
}

// DeleteCart removes the cart record itself.
func (s *CartService) DeleteCart(ctx context.Context, cartID string) error {
	return s.carts.Delete(ctx, cartID)
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

// appliedDecrement tracks a stock decrement so it can be compensated when a
// later persistence step fails.
type appliedDecrement struct {
	productID primitive.ObjectID
	qty       int
}

// FinalizePurchase converts the cart into stock decrements and one ticket.
//
// Each line item is settled with a conditional decrement: the update only
// matches while stock covers the quantity, so two concurrent checkouts of
// the same product cannot drive stock below zero — the loser simply sees a
// failed item. Items that fail stay in the cart and are reported in
// FailedProducts; purchased items are removed. A ticket is created iff the
// accumulated amount is positive. If ticket creation fails, every decrement
// applied so far is returned to stock (best effort) and the whole operation
// surfaces as an internal error.
func (s *CartService) FinalizePurchase(ctx context.Context, cartID, purchaserEmail string) (*CheckoutResult, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	var (
		total     float64
		failed    []models.LineItem
		failedOut = []FailedProduct{}
		applied   []appliedDecrement
	)

	compensate := func() {
		for _, a := range applied {
			if err := s.products.IncrementStock(ctx, a.productID, a.qty); err != nil {
				logger.Error("checkout compensation failed",
					"product_id", a.productID.Hex(), "qty", a.qty, "error", err)
			}
		}
	}

	for _, item := range cart.Items {
		product, err := s.products.FindByID(ctx, item.ProductID.Hex())
		if err != nil {
			if apperr.IsKind(err, apperr.NotFound) {
				// product deleted since it was added; nothing to purchase
				failed = append(failed, item)
				failedOut = append(failedOut, FailedProduct{
					ID:       item.ProductID.Hex(),
					ObjectID: item.ProductID.Hex(),
				})
				continue
			}
			compensate()
			return nil, err
		}

		ok, err := s.products.DecrementStock(ctx, product.ID, item.Quantity)
		if err != nil {
			compensate()
			return nil, err
		}
		if !ok {
			metrics.StockConflicts.Inc()
			failed = append(failed, item)
			failedOut = append(failedOut, FailedProduct{
				ID:       product.ID.Hex(),
				Title:    product.Title,
				ObjectID: product.ID.Hex(),
			})
			continue
		}

		applied = append(applied, appliedDecrement{productID: product.ID, qty: item.Quantity})
		total += float64(item.Quantity) * product.Price
	}

	result := &CheckoutResult{TotalAmount: total, FailedProducts: failedOut}

	if total > 0 {
		ticket := &models.Ticket{
			Code:         uuid.NewString(),
			PurchaseTime: time.Now().UTC(),
			Amount:       total,
			Purchaser:    purchaserEmail,
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			compensate()
			return nil, err
		}
		id := ticket.ID.Hex()
		result.TicketID = &id
		result.TicketCode = ticket.Code

		if err := queue.Dispatch(&jobs.TicketReceiptMail{
			Email:  purchaserEmail,
			Code:   ticket.Code,
			Amount: total,
		}); err != nil {
			logger.Warn("receipt mail not queued", "ticket", ticket.Code, "error", err)
		}
		notification.SendAsync(config.AdminEmail(), &notifications.SaleAlert{
			Code:      ticket.Code,
			Amount:    total,
			Purchaser: purchaserEmail,
		})
	}

	// The purchase is committed once the ticket exists. A failure while
	// rewriting the cart must not undo stock or the receipt; it is logged
	// and the cart is left for the client to reconcile.
	if err := s.carts.ReplaceItems(ctx, cart.ID, failed); err != nil {
		logger.Error("cart rewrite after checkout failed", "cart_id", cartID, "error", err)
	}

	switch {
	case total == 0:
		metrics.RecordCheckout("empty", 0)
	case len(failedOut) > 0:
		metrics.RecordCheckout("partial", total)
	default:
		metrics.RecordCheckout("complete", total)
	}

	if len(applied) > 0 {
		// Stock changed: drop cached listings before anyone re-reads them.
		InvalidateListings()
		event.FireAsync(EventProductsChanged, cartID)
	}
	return result, nil
}

func parseProductID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Ef(apperr.InvalidID, "malformed product id %q", hex)
	}
	return id, nil
}
