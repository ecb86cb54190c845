package services

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/repositories"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/cache"
	"github.com/tiendalabs/tienda/pkg/event"
	"github.com/tiendalabs/tienda/pkg/pagination"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// ListQuery is the raw catalog listing request.
//
// Query is either empty, a "categoria:<value>" / "disponible:<bool>" key
// filter, or free text matched case-insensitively against title or
// description. Sort "asc"/"desc" orders by price; anything else keeps
// insertion order. LimitSet distinguishes an explicit limit=0 (return
// everything on one page) from an omitted limit (default 10).
type ListQuery struct {
	Limit    int
	LimitSet bool
	Page     int
	Sort     string
	Query    string
}

// Listing is one page of catalog results.
type Listing struct {
	Products    []models.Product `json:"products"`
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"totalPages"`
	HasPrevPage bool             `json:"hasPrevPage"`
	HasNextPage bool             `json:"hasNextPage"`
	PrevPage    *int             `json:"prevPage"`
	NextPage    *int             `json:"nextPage"`
}

// ProductInput carries the writable fields of a catalog entry.
type ProductInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Code        string   `json:"code" validate:"required,alpha_dash"`
	Price       float64  `json:"price" validate:"required,numeric,gte=0"`
	Stock       int      `json:"stock" validate:"integer,gte=0"`
	Category    string   `json:"category" validate:"required"`
	Status      *bool    `json:"status" validate:"nullable,boolean"`
	Thumbnails  []string `json:"thumbnails" validate:"nullable"`
}

// ProductService owns catalog reads and writes, including the listing
// contract and the per-role mutation rules.
type ProductService struct {
	products ProductStore
}

func NewProductService(products ProductStore) *ProductService {
	return &ProductService{products: products}
}

// ─── Listing ──────────────────────────────────────────────────────────────────

const listingCacheTTL = 30 * time.Second

// List resolves the {limit, page, sort, query} contract into a page of
// products. Results are cached in Redis for a short window; any catalog
// mutation bumps the cache version so stale pages are never served.
func (s *ProductService) List(ctx context.Context, q ListQuery) (*Listing, error) {
	limit := q.Limit
	if !q.LimitSet {
		limit = pagination.DefaultLimit
	}
	if limit < 0 {
		return nil, apperr.E(apperr.BadRequest, "limit must not be negative")
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	key := listingCacheKey(limit, page, q.Sort, q.Query)
	var cached Listing
	if cache.Get(key, &cached) {
		return &cached, nil
	}

	opts := repositories.ProductListOptions{
		Filter: buildFilter(q.Query),
		Sort:   buildSort(q.Sort),
	}
	if limit > 0 {
		opts.Skip = int64(page-1) * int64(limit)
		opts.Limit = int64(limit)
	}

	products, total, err := s.products.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	pg := pagination.NewPage(page, limit, total)
	listing := &Listing{
		Products:    products,
		Total:       total,
		Page:        pg.Page,
		TotalPages:  pg.TotalPages,
		HasPrevPage: pg.HasPrev,
		HasNextPage: pg.HasNext,
	}
	if pg.HasPrev {
		prev := pg.Page - 1
		listing.PrevPage = &prev
	}
	if pg.HasNext {
		next := pg.Page + 1
		listing.NextPage = &next
	}

	cache.Set(key, listing, listingCacheTTL) //nolint:errcheck
	return listing, nil
}

// Get fetches a single product by hex id.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.products.FindByID(ctx, id)
}

// buildFilter translates the query string into a Mongo filter.
func buildFilter(query string) bson.M {
	query = strings.TrimSpace(query)
	if query == "" {
		return bson.M{}
	}

	if key, value, ok := strings.Cut(query, ":"); ok {
		switch key {
		case "categoria":
			return bson.M{"category": value}
		case "disponible":
			return bson.M{"status": value == "true"}
		}
	}

	rx := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": rx},
		bson.M{"description": rx},
	}}
}

// buildSort maps "asc"/"desc" to a price sort; anything else is unsorted.
func buildSort(sort string) bson.D {
	switch sort {
	case "asc":
		return bson.D{{Key: "price", Value: 1}}
	case "desc":
		return bson.D{{Key: "price", Value: -1}}
	}
	return nil
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// Create adds a catalog entry. Only roles holding products.manage may call;
// a premium creator is recorded as the owner, everything else gets "admin".
func (s *ProductService) Create(ctx context.Context, actor auth.Identity, in ProductInput) (*models.Product, error) {
	if !rbac.Can(actor.Role, rbac.CapManageProducts) {
		return nil, apperr.E(apperr.Forbidden, "role may not create products")
	}
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	owner := "admin"
	if actor.Role == rbac.RolePremium {
		owner = actor.Email
	}

	status := true
	if in.Status != nil {
		status = *in.Status
	}

	p := &models.Product{
		Title:       in.Title,
		Description: in.Description,
		Code:        in.Code,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      status,
		Owner:       owner,
		Thumbnails:  in.Thumbnails,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	InvalidateListings()
	event.FireAsync(EventProductsChanged, p.ID.Hex())
	return p, nil
}

// Update edits a catalog entry. Admin edits anything; premium only its own.
func (s *ProductService) Update(ctx context.Context, actor auth.Identity, id string, in ProductInput) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutation(actor, p); err != nil {
		return nil, err
	}
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	p.Title = in.Title
	p.Description = in.Description
	p.Code = in.Code
	p.Price = in.Price
	p.Stock = in.Stock
	p.Category = in.Category
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Thumbnails != nil {
		p.Thumbnails = in.Thumbnails
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}

	InvalidateListings()
	event.FireAsync(EventProductsChanged, p.ID.Hex())
	return p, nil
}

// Delete removes a catalog entry under the same ownership rules as Update.
func (s *ProductService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeMutation(actor, p); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	InvalidateListings()
	event.FireAsync(EventProductsChanged, id)
	return nil
}

func (s *ProductService) authorizeMutation(actor auth.Identity, p *models.Product) error {
	if rbac.Can(actor.Role, rbac.CapManageAnyProduct) {
		return nil
	}
	if rbac.Can(actor.Role, rbac.CapManageProducts) && p.Owner == actor.Email {
		return nil
	}
	return apperr.E(apperr.Forbidden, "product belongs to another owner")
}

func validateProductInput(in ProductInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return apperr.E(apperr.BadRequest, "title is required")
	case strings.TrimSpace(in.Code) == "":
		return apperr.E(apperr.BadRequest, "code is required")
	case in.Price < 0:
		return apperr.E(apperr.BadRequest, "price must not be negative")
	case in.Stock < 0:
		return apperr.E(apperr.BadRequest, "stock must not be negative")
	}
	return nil
}

// ─── Mock products ────────────────────────────────────────────────────────────

var mockCategories = []string{"Electronics", "Books", "Home", "Toys", "Sports"}

// Mock generates n synthetic products without persisting them. Used by the
// mocking endpoint to exercise clients against a large catalog.
func (s *ProductService) Mock(n int) []models.Product {
	if n <= 0 {
		n = 100
	}
	now := time.Now().UTC()
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{
			ID:          primitive.NewObjectID(),
			Title:       fmt.Sprintf("Mock product %d", i+1),
			Description: fmt.Sprintf("Synthetic catalog entry number %d", i+1),
			Code:        uuid.NewString(),
			Price:       float64(rand.Intn(99000)+1000) / 100, //nolint:gosec
			Stock:       rand.Intn(50) + 1,                    //nolint:gosec
			Category:    mockCategories[i%len(mockCategories)],
			Status:      true,
			Owner:       "admin",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return out
}

// ─── Listing cache ────────────────────────────────────────────────────────────

const listingVersionKey = "tienda:products:version"

// listingEpoch is the process-local half of the cache version. The shared
// Redis counter invalidates across instances; the epoch invalidates even
// when Redis is down or a bump happens before Redis reconnects.
var listingEpoch atomic.Int64

func listingCacheKey(limit, page int, sort, query string) string {
	var version int64
	cache.Get(listingVersionKey, &version)
	return fmt.Sprintf("tienda:products:v%d.%d:l%d:p%d:s%s:q%s",
		version, listingEpoch.Load(), limit, page, sort, query)
}

// InvalidateListings bumps the version embedded in every listing cache key.
// Old entries expire on their own TTL. Called by every catalog mutation,
// including checkout stock decrements.
func InvalidateListings() {
	listingEpoch.Add(1)
	if c := cache.Client(); c != nil {
		c.Incr(cache.Ctx, listingVersionKey)
	}
}

// ListingRevision reports the process-local listing cache revision. It moves
// whenever InvalidateListings runs.
func ListingRevision() int64 { return listingEpoch.Load() }
