// Package routes declares the HTTP route table. Capability guards live
// here so the full authorization surface is readable in one file.
package routes

import (
	"net/http"
	"time"

	"github.com/tiendalabs/tienda/app/controllers"
	"github.com/tiendalabs/tienda/app/realtime"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/ctx"
	"github.com/tiendalabs/tienda/pkg/metrics"
	"github.com/tiendalabs/tienda/pkg/middleware"
	"github.com/tiendalabs/tienda/pkg/rbac"
	"github.com/tiendalabs/tienda/pkg/router"
	"github.com/tiendalabs/tienda/pkg/ws"
)

// Controllers bundles everything the route table mounts.
type Controllers struct {
	Sessions *controllers.SessionsController
	Products *controllers.ProductsController
	Carts    *controllers.CartsController
	Users    *controllers.UsersController
	Stream   *controllers.StreamController
	GraphQL  http.HandlerFunc
	Hubs     *realtime.Hubs
}

// RegisterAPI mounts the whole API surface on r.
func RegisterAPI(r *router.Router, h Controllers) {
	r.HandleFunc("/metrics", metrics.Handler())
	r.Get("/health", "health", ctx.Wrap(func(c *ctx.Context) {
		c.Success(map[string]string{"status": "ok"})
	}))

	api := r.Group("/api")

	// ── Sessions ──────────────────────────────────────────────────────────
	loginLimiter := middleware.RateLimit(10, time.Minute)

	sessions := api.Group("/sessions")
	sessions.Post("/register", "sessions.register", ctx.Wrap(h.Sessions.Register), loginLimiter)
	sessions.Post("/login", "sessions.login", ctx.Wrap(h.Sessions.Login), loginLimiter)
	sessions.Post("/logout", "sessions.logout", ctx.Wrap(h.Sessions.Logout), middleware.RequireAuth)
	sessions.Get("/current", "sessions.current", ctx.Wrap(h.Sessions.Current), middleware.RequireAuth)
	sessions.Post("/forgot-password", "sessions.forgot", ctx.Wrap(h.Sessions.ForgotPassword), loginLimiter)
	sessions.Post("/reset-password", "sessions.reset", ctx.Wrap(h.Sessions.ResetPassword), loginLimiter)

	// ── Catalog ───────────────────────────────────────────────────────────
	manageProducts := middleware.RequireCapability(rbac.CapManageProducts)

	api.Get("/products/stream", "products.stream", ctx.Wrap(h.Stream.Products))
	api.Get("/mockingproducts", "products.mocking", ctx.Wrap(h.Products.Mocking))
	api.HandleFunc("/graphql", h.GraphQL)

	products := api.Group("/products")
	products.Get("", "products.index", ctx.Wrap(h.Products.Index))
	products.Get("/{pid}", "products.show", ctx.Wrap(h.Products.Show))
	products.Post("", "products.store", ctx.Wrap(h.Products.Store), manageProducts)
	products.Put("/{pid}", "products.update", ctx.Wrap(h.Products.Update), manageProducts)
	products.Delete("/{pid}", "products.destroy", ctx.Wrap(h.Products.Destroy), manageProducts)

	// ── Carts ─────────────────────────────────────────────────────────────
	purchase := middleware.RequireCapability(rbac.CapPurchase)

	carts := api.Group("/carts")
	carts.Post("", "carts.store", ctx.Wrap(h.Carts.Store))
	carts.Get("", "carts.index", ctx.Wrap(h.Carts.Index), middleware.RequireCapability(rbac.CapViewCarts))
	carts.Get("/{cid}", "carts.show", ctx.Wrap(h.Carts.Show))
	carts.Post("/{cid}/products/{pid}", "carts.add", ctx.Wrap(h.Carts.AddProduct), purchase)
	carts.Put("/{cid}/products/{pid}", "carts.quantity", ctx.Wrap(h.Carts.UpdateQuantity), purchase)
	carts.Put("/{cid}", "carts.replace", ctx.Wrap(h.Carts.ReplaceItems), purchase)
	carts.Delete("/{cid}/products/{pid}", "carts.remove", ctx.Wrap(h.Carts.RemoveProduct), purchase)
	carts.Put("/{cid}/empty", "carts.empty", ctx.Wrap(h.Carts.Empty), purchase)
	carts.Delete("/{cid}", "carts.destroy", ctx.Wrap(h.Carts.Destroy), purchase)
	carts.Post("/{cid}/purchase", "carts.purchase", ctx.Wrap(h.Carts.Purchase), purchase)

	api.Get("/tickets", "tickets.mine", ctx.Wrap(h.Carts.MyTickets), middleware.RequireAuth)

	// ── Users ─────────────────────────────────────────────────────────────
	admin := middleware.RequireRole(rbac.RoleAdmin)

	users := api.Group("/users")
	users.Get("", "users.index", ctx.Wrap(h.Users.Index), admin)
	users.Get("/{uid}", "users.show", ctx.Wrap(h.Users.Show), admin)
	users.Put("/premium/{uid}", "users.premium", ctx.Wrap(h.Users.TogglePremium), middleware.RequireCapability(rbac.CapChangeRoles))
	users.Post("/documents", "users.documents", ctx.Wrap(h.Users.UploadDocuments), middleware.RequireAuth)
	users.Post("/{uid}/documents", "users.documents.admin", ctx.Wrap(h.Users.UploadDocuments), admin)

	// ── Realtime ──────────────────────────────────────────────────────────
	// The global Authenticate middleware has already resolved the caller,
	// so the upgrade handlers just pick the identity off the context.
	r.HandleFunc("/ws/products", func(w http.ResponseWriter, req *http.Request) {
		label := ""
		if id, ok := auth.FromCtx(req.Context()); ok {
			label = id.Email
		}
		ws.UpgradeAs(w, req, h.Hubs.Products, label)
	})
	r.HandleFunc("/ws/chat", func(w http.ResponseWriter, req *http.Request) {
		label := ""
		if id, ok := auth.FromCtx(req.Context()); ok {
			label = id.Email
		}
		ws.UpgradeAs(w, req, h.Hubs.Chat, label)
	})
}
