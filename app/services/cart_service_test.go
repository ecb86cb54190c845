package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/repositories"
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// ─── In-memory fakes ──────────────────────────────────────────────────────────

type fakeProducts struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]*models.Product
	listErr error
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{byID: map[primitive.ObjectID]*models.Product{}}
	for _, p := range products {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProducts) FindByID(_ context.Context, hex string) (*models.Product, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, apperr.E(apperr.InvalidID, "invalid id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "product not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindByCode(_ context.Context, code string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.E(apperr.NotFound, "product not found")
}

func (f *fakeProducts) Update(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return apperr.E(apperr.NotFound, "product not found")
	}
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, hex string) error {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return apperr.E(apperr.InvalidID, "invalid id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return apperr.E(apperr.NotFound, "product not found")
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeProducts) List(_ context.Context, _ repositories.ProductListOptions) ([]models.Product, int64, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (f *fakeProducts) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok {
		p.Stock += qty
	}
	return nil
}

func (f *fakeProducts) stockOf(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	require.True(t, ok)
	return p.Stock
}

type fakeCarts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Cart
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{byID: map[primitive.ObjectID]*models.Cart{}}
}

func (f *fakeCarts) Create(_ context.Context) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Cart{ID: primitive.NewObjectID(), Items: []models.LineItem{}}
	f.byID[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeCarts) FindByID(_ context.Context, hex string) (*models.Cart, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, apperr.E(apperr.InvalidID, "invalid id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "cart not found")
	}
	cp := *c
	cp.Items = append([]models.LineItem(nil), c.Items...)
	return &cp, nil
}

func (f *fakeCarts) ReplaceItems(_ context.Context, id primitive.ObjectID, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return apperr.E(apperr.NotFound, "cart not found")
	}
	if items == nil {
		items = []models.LineItem{}
	}
	c.Items = append([]models.LineItem(nil), items...)
	return nil
}

func (f *fakeCarts) Delete(_ context.Context, hex string) error {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return apperr.E(apperr.InvalidID, "invalid id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return apperr.E(apperr.NotFound, "cart not found")
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCarts) All(_ context.Context) ([]models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Cart, 0, len(f.byID))
	for _, c := range f.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCarts) itemsOf(t *testing.T, id primitive.ObjectID) []models.LineItem {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	require.True(t, ok)
	return append([]models.LineItem(nil), c.Items...)
}

type fakeTickets struct {
	mu        sync.Mutex
	created   []models.Ticket
	createErr error
}

func (f *fakeTickets) Create(_ context.Context, tk *models.Ticket) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tk.ID = primitive.NewObjectID()
	f.created = append(f.created, *tk)
	return nil
}

func (f *fakeTickets) FindByCode(_ context.Context, code string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].Code == code {
			cp := f.created[i]
			return &cp, nil
		}
	}
	return nil, apperr.E(apperr.NotFound, "ticket not found")
}

func (f *fakeTickets) ListByPurchaser(_ context.Context, email string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Ticket
	for _, tk := range f.created {
		if tk.Purchaser == email {
			out = append(out, tk)
		}
	}
	return out, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func product(title string, price float64, stock int) *models.Product {
	return &models.Product{
		ID:       primitive.NewObjectID(),
		Title:    title,
		Code:     title + "-code",
		Price:    price,
		Stock:    stock,
		Category: "Test",
		Status:   true,
		Owner:    "admin",
	}
}

func cartWith(t *testing.T, carts *fakeCarts, items ...models.LineItem) *models.Cart {
	t.Helper()
	c, err := carts.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, carts.ReplaceItems(context.Background(), c.ID, items))
	c.Items = items
	return c
}

func buyer() auth.Identity {
	return auth.Identity{UserID: "u1", Email: "buyer@example.com", Role: rbac.RoleUser}
}

// ─── Cart mutation ────────────────────────────────────────────────────────────

func TestAddToCartAppendsAndMerges(t *testing.T) {
	p := product("Keyboard", 25, 10)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	c := cartWith(t, carts)

	svc := services.NewCartService(carts, products, &fakeTickets{})

	got, err := svc.AddToCart(context.Background(), buyer(), c.ID.Hex(), p.ID.Hex(), 2)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	// adding the same product again merges into the existing line
	got, err = svc.AddToCart(context.Background(), buyer(), c.ID.Hex(), p.ID.Hex(), 3)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].Quantity)
}

func TestAddToCartRejectsZeroQuantity(t *testing.T) {
	p := product("Keyboard", 25, 10)
	carts := newFakeCarts()
	c := cartWith(t, carts)
	svc := services.NewCartService(carts, newFakeProducts(p), &fakeTickets{})

	_, err := svc.AddToCart(context.Background(), buyer(), c.ID.Hex(), p.ID.Hex(), 0)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
}

func TestAddToCartRejectsOwnProductForPremium(t *testing.T) {
	p := product("Handmade mug", 12, 3)
	p.Owner = "seller@example.com"
	carts := newFakeCarts()
	c := cartWith(t, carts)
	svc := services.NewCartService(carts, newFakeProducts(p), &fakeTickets{})

	seller := auth.Identity{UserID: "u2", Email: "seller@example.com", Role: rbac.RolePremium}
	_, err := svc.AddToCart(context.Background(), seller, c.ID.Hex(), p.ID.Hex(), 1)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	// a regular user may buy it fine
	_, err = svc.AddToCart(context.Background(), buyer(), c.ID.Hex(), p.ID.Hex(), 1)
	require.NoError(t, err)
}

func TestUpdateProductQuantity(t *testing.T) {
	p := product("Mouse", 15, 10)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 2})
	svc := services.NewCartService(carts, products, &fakeTickets{})

	got, err := svc.UpdateProductQuantity(context.Background(), c.ID.Hex(), p.ID.Hex(), 7)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 7, got.Items[0].Quantity)

	// zero removes the line entirely
	got, err = svc.UpdateProductQuantity(context.Background(), c.ID.Hex(), p.ID.Hex(), 0)
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	// and a further update reports the line as missing
	_, err = svc.UpdateProductQuantity(context.Background(), c.ID.Hex(), p.ID.Hex(), 1)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestReplaceCartProductsMergesDuplicates(t *testing.T) {
	p1 := product("Lamp", 30, 5)
	p2 := product("Desk", 120, 2)
	carts := newFakeCarts()
	c := cartWith(t, carts)
	svc := services.NewCartService(carts, newFakeProducts(p1, p2), &fakeTickets{})

	got, err := svc.ReplaceCartProducts(context.Background(), c.ID.Hex(), []services.CartItemInput{
		{Product: p1.ID.Hex(), Quantity: 2},
		{Product: p2.ID.Hex(), Quantity: 0}, // coerced to 1
		{Product: p1.ID.Hex(), Quantity: 3}, // merged into the first line
	})
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 5, got.Items[0].Quantity)
	assert.Equal(t, 1, got.Items[1].Quantity)
}

func TestRemoveFromCartDecrementsThenRemoves(t *testing.T) {
	p := product("Pen", 2, 100)
	carts := newFakeCarts()
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 2})
	svc := services.NewCartService(carts, newFakeProducts(p), &fakeTickets{})

	got, err := svc.RemoveFromCart(context.Background(), c.ID.Hex(), p.ID.Hex())
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Quantity)

	got, err = svc.RemoveFromCart(context.Background(), c.ID.Hex(), p.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestEmptyCart(t *testing.T) {
	p := product("Pen", 2, 100)
	carts := newFakeCarts()
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 4})
	svc := services.NewCartService(carts, newFakeProducts(p), &fakeTickets{})

	require.NoError(t, svc.EmptyCart(context.Background(), c.ID.Hex()))
	assert.Empty(t, carts.itemsOf(t, c.ID))
}

func TestGetCartSkipsDeletedProducts(t *testing.T) {
	p := product("Chair", 45, 3)
	gone := primitive.NewObjectID()
	carts := newFakeCarts()
	c := cartWith(t, carts,
		models.LineItem{ProductID: p.ID, Quantity: 1},
		models.LineItem{ProductID: gone, Quantity: 2},
	)
	svc := services.NewCartService(carts, newFakeProducts(p), &fakeTickets{})

	resolved, err := svc.GetCart(context.Background(), c.ID.Hex())
	require.NoError(t, err)
	require.Len(t, resolved.Items, 1)
	assert.Equal(t, p.ID, resolved.Items[0].Product.ID)
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

func TestFinalizePurchaseHappyPath(t *testing.T) {
	p := product("Monitor", 10, 5)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	tickets := &fakeTickets{}
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 3})
	svc := services.NewCartService(carts, products, tickets)

	res, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, 2, products.stockOf(t, p.ID))
	assert.Equal(t, 30.0, res.TotalAmount)
	require.NotNil(t, res.TicketID)
	assert.NotEmpty(t, res.TicketCode)
	assert.Empty(t, res.FailedProducts)
	assert.Empty(t, carts.itemsOf(t, c.ID))

	require.Len(t, tickets.created, 1)
	assert.Equal(t, "buyer@example.com", tickets.created[0].Purchaser)
	assert.Equal(t, 30.0, tickets.created[0].Amount)
}

func TestFinalizePurchaseInsufficientStock(t *testing.T) {
	p := product("Rare vinyl", 80, 1)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	tickets := &fakeTickets{}
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 5})
	svc := services.NewCartService(carts, products, tickets)

	res, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, products.stockOf(t, p.ID), "stock must stay untouched")
	assert.Zero(t, res.TotalAmount)
	assert.Nil(t, res.TicketID)
	require.Len(t, res.FailedProducts, 1)
	assert.Equal(t, p.ID.Hex(), res.FailedProducts[0].ID)
	assert.Empty(t, tickets.created)

	// the unpurchasable item stays in the cart
	items := carts.itemsOf(t, c.ID)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestFinalizePurchasePartial(t *testing.T) {
	ok := product("Notebook", 5, 10)
	short := product("Limited print", 50, 1)
	products := newFakeProducts(ok, short)
	carts := newFakeCarts()
	tickets := &fakeTickets{}
	c := cartWith(t, carts,
		models.LineItem{ProductID: ok.ID, Quantity: 4},
		models.LineItem{ProductID: short.ID, Quantity: 3},
	)
	svc := services.NewCartService(carts, products, tickets)

	res, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, 20.0, res.TotalAmount)
	require.NotNil(t, res.TicketID)
	require.Len(t, res.FailedProducts, 1)
	assert.Equal(t, short.ID.Hex(), res.FailedProducts[0].ID)

	assert.Equal(t, 6, products.stockOf(t, ok.ID))
	assert.Equal(t, 1, products.stockOf(t, short.ID))

	// only the failed line remains in the cart
	items := carts.itemsOf(t, c.ID)
	require.Len(t, items, 1)
	assert.Equal(t, short.ID, items[0].ProductID)
}

func TestFinalizePurchaseDeletedProductFails(t *testing.T) {
	gone := primitive.NewObjectID()
	products := newFakeProducts()
	carts := newFakeCarts()
	c := cartWith(t, carts, models.LineItem{ProductID: gone, Quantity: 1})
	svc := services.NewCartService(carts, products, &fakeTickets{})

	res, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.NoError(t, err)
	assert.Nil(t, res.TicketID)
	require.Len(t, res.FailedProducts, 1)
	assert.Equal(t, gone.Hex(), res.FailedProducts[0].ID)
}

func TestFinalizePurchaseCompensatesOnTicketFailure(t *testing.T) {
	p := product("Camera", 300, 4)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	tickets := &fakeTickets{createErr: apperr.E(apperr.Internal, "tickets collection down")}
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 2})
	svc := services.NewCartService(carts, products, tickets)

	_, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.Error(t, err)

	// the applied decrement was returned to stock
	assert.Equal(t, 4, products.stockOf(t, p.ID))
	// the cart was not rewritten
	items := carts.itemsOf(t, c.ID)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestFinalizePurchaseConcurrentCannotOversell(t *testing.T) {
	p := product("Last unit", 50, 1)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	tickets := &fakeTickets{}
	svc := services.NewCartService(carts, products, tickets)

	c1 := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 1})
	c2 := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 1})

	results := make([]*services.CheckoutResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, cid := range []string{c1.ID.Hex(), c2.ID.Hex()} {
		wg.Add(1)
		go func(i int, cid string) {
			defer wg.Done()
			results[i], errs[i] = svc.FinalizePurchase(context.Background(), cid, "buyer@example.com")
		}(i, cid)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.GreaterOrEqual(t, products.stockOf(t, p.ID), 0)

	var winners, losers int
	for _, res := range results {
		if res.TicketID != nil {
			winners++
			assert.Equal(t, 50.0, res.TotalAmount)
		} else {
			losers++
			require.Len(t, res.FailedProducts, 1)
			assert.Equal(t, p.ID.Hex(), res.FailedProducts[0].ID)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
	assert.Len(t, tickets.created, 1)
	assert.Equal(t, 0, products.stockOf(t, p.ID))
}

func TestFinalizePurchaseInvalidatesListingCache(t *testing.T) {
	p := product("Webcam", 25, 3)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 1})
	svc := services.NewCartService(carts, products, &fakeTickets{})

	before := services.ListingRevision()
	_, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.NoError(t, err)
	assert.Greater(t, services.ListingRevision(), before)
}

func TestFinalizePurchaseAllFailedKeepsListingCache(t *testing.T) {
	p := product("Sold out", 25, 0)
	products := newFakeProducts(p)
	carts := newFakeCarts()
	c := cartWith(t, carts, models.LineItem{ProductID: p.ID, Quantity: 1})
	svc := services.NewCartService(carts, products, &fakeTickets{})

	before := services.ListingRevision()
	_, err := svc.FinalizePurchase(context.Background(), c.ID.Hex(), "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, before, services.ListingRevision())
}
