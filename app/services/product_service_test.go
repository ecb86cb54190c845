package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/repositories"
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// recordingProducts captures the query the service builds so the listing
// contract can be asserted without a live Mongo.
type recordingProducts struct {
	*fakeProducts
	lastOpts repositories.ProductListOptions
	results  []models.Product
	total    int64
}

func (r *recordingProducts) List(_ context.Context, q repositories.ProductListOptions) ([]models.Product, int64, error) {
	r.lastOpts = q
	return r.results, r.total, nil
}

func admin() auth.Identity {
	return auth.Identity{Email: "admin@tienda.app", Role: rbac.RoleAdmin}
}

func premium(email string) auth.Identity {
	return auth.Identity{UserID: "p1", Email: email, Role: rbac.RolePremium}
}

func validInput() services.ProductInput {
	return services.ProductInput{
		Title:       "USB cable",
		Description: "Two meter braided cable",
		Code:        "usb-cable-2m",
		Price:       9.5,
		Stock:       20,
		Category:    "Electronics",
	}
}

// ─── Listing contract ─────────────────────────────────────────────────────────

func TestListDefaultsToTenPerPage(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts(), total: 25}
	svc := services.NewProductService(store)

	listing, err := svc.List(context.Background(), services.ListQuery{})
	require.NoError(t, err)

	assert.Equal(t, int64(10), store.lastOpts.Limit)
	assert.Equal(t, int64(0), store.lastOpts.Skip)
	assert.Equal(t, 1, listing.Page)
	assert.Equal(t, 3, listing.TotalPages)
	assert.False(t, listing.HasPrevPage)
	assert.True(t, listing.HasNextPage)
	require.NotNil(t, listing.NextPage)
	assert.Equal(t, 2, *listing.NextPage)
	assert.Nil(t, listing.PrevPage)
}

func TestListExplicitZeroLimitReturnsEverything(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts(), total: 25}
	svc := services.NewProductService(store)

	listing, err := svc.List(context.Background(), services.ListQuery{Limit: 0, LimitSet: true})
	require.NoError(t, err)

	// no skip/limit pushed down: one page holding the full catalog
	assert.Equal(t, int64(0), store.lastOpts.Limit)
	assert.Equal(t, int64(0), store.lastOpts.Skip)
	assert.Equal(t, 1, listing.TotalPages)
	assert.False(t, listing.HasNextPage)
	assert.False(t, listing.HasPrevPage)
}

func TestListNegativeLimitIsRejected(t *testing.T) {
	svc := services.NewProductService(&recordingProducts{fakeProducts: newFakeProducts()})

	_, err := svc.List(context.Background(), services.ListQuery{Limit: -1, LimitSet: true})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
}

func TestListComputesSkipForLaterPages(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts(), total: 42}
	svc := services.NewProductService(store)

	listing, err := svc.List(context.Background(), services.ListQuery{Limit: 5, LimitSet: true, Page: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(10), store.lastOpts.Skip)
	assert.Equal(t, int64(5), store.lastOpts.Limit)
	assert.Equal(t, 3, listing.Page)
	assert.Equal(t, 9, listing.TotalPages)
	require.NotNil(t, listing.PrevPage)
	assert.Equal(t, 2, *listing.PrevPage)
	require.NotNil(t, listing.NextPage)
	assert.Equal(t, 4, *listing.NextPage)
}

func TestListPageBeyondLastIsEmptyNotAnError(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts(), total: 12}
	svc := services.NewProductService(store)

	listing, err := svc.List(context.Background(), services.ListQuery{Limit: 10, LimitSet: true, Page: 5})
	require.NoError(t, err)

	assert.Empty(t, listing.Products)
	assert.Equal(t, 5, listing.Page)
	assert.Equal(t, 2, listing.TotalPages)
	assert.True(t, listing.HasPrevPage)
	assert.False(t, listing.HasNextPage)
}

func TestListCategoryFilter(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts()}
	svc := services.NewProductService(store)

	_, err := svc.List(context.Background(), services.ListQuery{Query: "categoria:Books"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"category": "Books"}, store.lastOpts.Filter)
}

func TestListAvailabilityFilter(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts()}
	svc := services.NewProductService(store)

	_, err := svc.List(context.Background(), services.ListQuery{Query: "disponible:true"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"status": true}, store.lastOpts.Filter)

	_, err = svc.List(context.Background(), services.ListQuery{Query: "disponible:false"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"status": false}, store.lastOpts.Filter)
}

func TestListFreeTextSearchesTitleAndDescription(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts()}
	svc := services.NewProductService(store)

	_, err := svc.List(context.Background(), services.ListQuery{Query: "usb cable"})
	require.NoError(t, err)

	or, ok := store.lastOpts.Filter["$or"].(bson.A)
	require.True(t, ok, "free text must produce an $or filter")
	require.Len(t, or, 2)

	title := or[0].(bson.M)["title"].(primitive.Regex)
	assert.Equal(t, "usb cable", title.Pattern)
	assert.Equal(t, "i", title.Options)
}

func TestListPriceSort(t *testing.T) {
	store := &recordingProducts{fakeProducts: newFakeProducts()}
	svc := services.NewProductService(store)

	_, err := svc.List(context.Background(), services.ListQuery{Sort: "asc"})
	require.NoError(t, err)
	require.Len(t, store.lastOpts.Sort, 1)
	assert.Equal(t, "price", store.lastOpts.Sort[0].Key)
	assert.Equal(t, 1, store.lastOpts.Sort[0].Value)

	_, err = svc.List(context.Background(), services.ListQuery{Sort: "desc"})
	require.NoError(t, err)
	assert.Equal(t, -1, store.lastOpts.Sort[0].Value)

	_, err = svc.List(context.Background(), services.ListQuery{Sort: "price"})
	require.NoError(t, err)
	assert.Nil(t, store.lastOpts.Sort, "unknown sort keeps natural order")
}

// ─── Mutations ────────────────────────────────────────────────────────────────

func TestCreateRequiresManageCapability(t *testing.T) {
	svc := services.NewProductService(newFakeProducts())

	_, err := svc.Create(context.Background(), buyer(), validInput())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestCreateRecordsPremiumOwner(t *testing.T) {
	store := newFakeProducts()
	svc := services.NewProductService(store)

	p, err := svc.Create(context.Background(), premium("seller@example.com"), validInput())
	require.NoError(t, err)
	assert.Equal(t, "seller@example.com", p.Owner)
	assert.True(t, p.Status, "status defaults to available")

	p, err = svc.Create(context.Background(), admin(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Owner)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := services.NewProductService(newFakeProducts())

	in := validInput()
	in.Title = "  "
	_, err := svc.Create(context.Background(), admin(), in)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))

	in = validInput()
	in.Price = -1
	_, err = svc.Create(context.Background(), admin(), in)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
}

func TestUpdateEnforcesOwnership(t *testing.T) {
	p := product("Poster", 8, 40)
	p.Owner = "seller@example.com"
	store := newFakeProducts(p)
	svc := services.NewProductService(store)

	// another premium seller may not touch it
	_, err := svc.Update(context.Background(), premium("other@example.com"), p.ID.Hex(), validInput())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	// the owner may
	_, err = svc.Update(context.Background(), premium("seller@example.com"), p.ID.Hex(), validInput())
	require.NoError(t, err)

	// and admin may edit anything
	_, err = svc.Update(context.Background(), admin(), p.ID.Hex(), validInput())
	require.NoError(t, err)
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	p := product("Sticker pack", 3, 500)
	p.Owner = "seller@example.com"
	store := newFakeProducts(p)
	svc := services.NewProductService(store)

	err := svc.Delete(context.Background(), premium("other@example.com"), p.ID.Hex())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	require.NoError(t, svc.Delete(context.Background(), premium("seller@example.com"), p.ID.Hex()))

	_, err = svc.Get(context.Background(), p.ID.Hex())
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

// ─── Mock catalog ─────────────────────────────────────────────────────────────

func TestMockGeneratesRequestedCount(t *testing.T) {
	svc := services.NewProductService(newFakeProducts())

	out := svc.Mock(7)
	require.Len(t, out, 7)

	codes := map[string]bool{}
	for _, p := range out {
		assert.NotEmpty(t, p.Title)
		assert.True(t, p.Status)
		assert.GreaterOrEqual(t, p.Stock, 1)
		assert.False(t, codes[p.Code], "codes must be unique")
		codes[p.Code] = true
	}

	assert.Len(t, svc.Mock(0), 100)
}
