// Package controllers is the HTTP boundary: bind the request, call the
// service, shape the response. No business rules live here beyond mapping
// transport concerns.
package controllers

import (
	"strconv"

	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/ctx"
)

type ProductsController struct {
	products *services.ProductService
}

func NewProductsController(products *services.ProductService) *ProductsController {
	return &ProductsController{products: products}
}

// Index serves the catalog listing with the {limit, page, sort, query}
// contract. An explicit limit=0 returns everything on a single page.
func (pc *ProductsController) Index(c *ctx.Context) {
	q := services.ListQuery{
		Page:  c.QueryInt("page", 1),
		Sort:  c.Query("sort"),
		Query: c.Query("query"),
	}
	if c.HasQuery("limit") {
		limit, err := strconv.Atoi(c.Query("limit"))
		if err != nil {
			c.Error(400, "limit must be an integer")
			return
		}
		q.Limit = limit
		q.LimitSet = true
	}

	listing, err := pc.products.List(c.Context(), q)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(listing)
}

// Show serves one product by id.
func (pc *ProductsController) Show(c *ctx.Context) {
	p, err := pc.products.Get(c.Context(), c.Param("pid"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(p)
}

// Store creates a product for the authenticated caller.
func (pc *ProductsController) Store(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}

	p, err := pc.products.Create(c.Context(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(p)
}

// Update edits a product under the ownership rules.
func (pc *ProductsController) Update(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}

	p, err := pc.products.Update(c.Context(), id, c.Param("pid"), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(p)
}

// Destroy deletes a product under the ownership rules.
func (pc *ProductsController) Destroy(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	if err := pc.products.Delete(c.Context(), id, c.Param("pid")); err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]string{"deleted": c.Param("pid")})
}

// Mocking serves generated products without touching the catalog.
func (pc *ProductsController) Mocking(c *ctx.Context) {
	n := c.QueryInt("count", 100)
	c.Success(map[string]interface{}{"products": pc.products.Mock(n)})
}
