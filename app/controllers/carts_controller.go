package controllers

import (
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/ctx"
	"github.com/tiendalabs/tienda/pkg/resource"
)

// ticketResource controls the JSON shape of purchase receipts. Collection
// responses arrive as decoded maps, so fields are picked by key.
type ticketResource struct{ resource.Base }

func (ticketResource) ToArray(v interface{}) resource.Map {
	m, _ := v.(map[string]interface{})
	return resource.Map{
		"id":                m["id"],
		"code":              m["code"],
		"purchase_datetime": m["purchase_datetime"],
		"amount":            m["amount"],
		"purchaser":         m["purchaser"],
	}
}

type CartsController struct {
	carts   *services.CartService
	tickets services.TicketStore
}

func NewCartsController(carts *services.CartService, tickets services.TicketStore) *CartsController {
	return &CartsController{carts: carts, tickets: tickets}
}

// Store creates a new empty cart.
func (cc *CartsController) Store(c *ctx.Context) {
	cart, err := cc.carts.CreateCart(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(cart)
}

// Index lists every cart. Guarded by the carts.view_all capability.
func (cc *CartsController) Index(c *ctx.Context) {
	carts, err := cc.carts.ListCarts(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(carts)
}

// Show serves a cart with its line items resolved to full products.
func (cc *CartsController) Show(c *ctx.Context) {
	cart, err := cc.carts.GetCart(c.Context(), c.Param("cid"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(cart)
}

// AddProduct adds quantity (default 1) of a product to the cart.
func (cc *CartsController) AddProduct(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	// body is optional; quantity defaults to 1
	_, _ = c.ShouldBindJSON(&body)
	if body.Quantity == 0 {
		body.Quantity = 1
	}

	cart, err := cc.carts.AddToCart(c.Context(), id, c.Param("cid"), c.Param("pid"), body.Quantity)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(cart)
}

// UpdateQuantity sets the exact quantity of a line item; zero removes it.
func (cc *CartsController) UpdateQuantity(c *ctx.Context) {
	var body struct {
		Quantity int `json:"quantity" validate:"required,integer"`
	}
	if !c.BindJSON(&body) {
		return
	}

	cart, err := cc.carts.UpdateProductQuantity(c.Context(), c.Param("cid"), c.Param("pid"), body.Quantity)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(cart)
}

// ReplaceItems swaps the whole line-item list in one write.
func (cc *CartsController) ReplaceItems(c *ctx.Context) {
	var body struct {
		Products []services.CartItemInput `json:"products" validate:"required"`
	}
	if !c.BindJSON(&body) {
		return
	}

	cart, err := cc.carts.ReplaceCartProducts(c.Context(), c.Param("cid"), body.Products)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(cart)
}

// RemoveProduct decrements a line item by one, dropping it at zero.
func (cc *CartsController) RemoveProduct(c *ctx.Context) {
	cart, err := cc.carts.RemoveFromCart(c.Context(), c.Param("cid"), c.Param("pid"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(cart)
}

// Empty clears every line item but keeps the cart.
func (cc *CartsController) Empty(c *ctx.Context) {
	if err := cc.carts.EmptyCart(c.Context(), c.Param("cid")); err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]string{"emptied": c.Param("cid")})
}

// Destroy deletes the cart record.
func (cc *CartsController) Destroy(c *ctx.Context) {
	if err := cc.carts.DeleteCart(c.Context(), c.Param("cid")); err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]string{"deleted": c.Param("cid")})
}

// Purchase runs checkout for the cart on behalf of the authenticated buyer.
func (cc *CartsController) Purchase(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	result, err := cc.carts.FinalizePurchase(c.Context(), c.Param("cid"), id.Email)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(result)
}

// MyTickets lists the authenticated buyer's receipts, newest first.
func (cc *CartsController) MyTickets(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	tickets, err := cc.tickets.ListByPurchaser(c.Context(), id.Email)
	if err != nil {
		c.Fail(err)
		return
	}
	resource.CollectionOf(ticketResource{}, tickets).Respond(c.W)
}
