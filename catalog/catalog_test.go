package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/database"
	"github.com/saiset-co/catalog-service/kvstore"
	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/types"
)

type fixture struct {
	db        *database.CloverDB
	cache     *cache.MemoryCache
	store     *kvstore.MemoryStore
	persisted *cache.PersistedCache
	products  *ProductService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewNop()

	db, err := database.NewCloverDB(context.Background(), log, &types.DatabaseConfig{
		Type: "clover",
		Path: filepath.Join(t.TempDir(), "db"),
	})
	if err != nil {
		t.Fatalf("NewCloverDB: %v", err)
	}
	if err := db.Start(); err != nil {
		t.Fatalf("db.Start: %v", err)
	}
	t.Cleanup(func() { _ = db.Stop() })

	mem, err := cache.NewMemoryCache(context.Background(), log, &types.CacheConfig{Enabled: true, Type: "memory"})
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}

	store := kvstore.NewMemoryStore()
	persisted := cache.NewPersistedCache(store, log)

	return &fixture{
		db:        db,
		cache:     mem,
		store:     store,
		persisted: persisted,
		products:  NewProductService(db, mem, persisted, NewValidator(), log),
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func validProductInput(name string) types.ProductInput {
	return types.ProductInput{
		Name:           strPtr(name),
		Category:       strPtr("valves"),
		Description:    strPtr("A sturdy valve for industrial pipelines."),
		Images:         []string{"/images/valve.svg"},
		Specifications: map[string]string{"Material": "Steel"},
		Features:       []string{"Corrosion resistant"},
	}
}

func TestProductService_SeedAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.products.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != len(SampleProducts) {
		t.Fatalf("seeded %d products, want %d", n, len(SampleProducts))
	}

	again, err := f.products.Seed(ctx)
	if err != nil || again != 0 {
		t.Fatalf("second Seed = %d, %v; want 0, nil", again, err)
	}

	list, err := f.products.List(ctx, types.ProductFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Pagination.Total != int64(len(SampleProducts)) || list.Pagination.Limit != DefaultProductLimit {
		t.Fatalf("pagination = %+v", list.Pagination)
	}
	if list.Products[0].SortOrder != 1 {
		t.Fatalf("expected ascending sortOrder, first is %d", list.Products[0].SortOrder)
	}
	for _, p := range list.Products {
		if p.ID == "" || p.Image == "" {
			t.Fatalf("product missing id or image: %+v", p)
		}
	}
	if len(list.Categories) == 0 {
		t.Fatalf("categories missing")
	}

	featured, err := f.products.List(ctx, types.ProductFilter{Featured: true, Limit: 2})
	if err != nil {
		t.Fatalf("List featured: %v", err)
	}
	if len(featured.Products) != 2 || !featured.Pagination.HasMore {
		t.Fatalf("featured page = %d products, hasMore %v", len(featured.Products), featured.Pagination.HasMore)
	}

	search, err := f.products.List(ctx, types.ProductFilter{Search: "ANTIMICROBIAL"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if len(search.Products) != 1 || search.Products[0].Slug != "wl-1200-medical-antimicrobial-case" {
		t.Fatalf("search matched %+v", search.Products)
	}
}

func TestProductService_ListIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.products.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	first, err := f.products.List(ctx, types.ProductFilter{Category: "industrial"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	key := productsKey(NormalizeProductFilter(types.ProductFilter{Category: "industrial"}))
	if _, ok := f.cache.Get(key); !ok {
		t.Fatalf("listing not cached under %s", key)
	}

	// Writing behind the service's back is invisible until invalidation.
	if _, err := f.db.CreateDocuments(ctx, types.CreateDocumentsRequest{
		Collection: ProductsCollection,
		Data: []map[string]interface{}{{
			"name": "Hidden", "slug": "hidden", "category": "industrial", "active": true, "sortOrder": 9,
		}},
	}); err != nil {
		t.Fatalf("CreateDocuments: %v", err)
	}

	second, _ := f.products.List(ctx, types.ProductFilter{Category: "industrial"})
	if second.Pagination.Total != first.Pagination.Total {
		t.Fatalf("expected cached total %d, got %d", first.Pagination.Total, second.Pagination.Total)
	}

	cache.InvalidateProducts(f.cache)

	third, _ := f.products.List(ctx, types.ProductFilter{Category: "industrial"})
	if third.Pagination.Total != first.Pagination.Total+1 {
		t.Fatalf("expected fresh total %d, got %d", first.Pagination.Total+1, third.Pagination.Total)
	}
}

func TestProductService_CreateGetUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.products.Create(ctx, validProductInput("Ball Valve 200"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Slug != "ball-valve-200" || !created.Active || created.Featured {
		t.Fatalf("unexpected defaults: %+v", created)
	}
	if created.Image != "/images/valve.svg" {
		t.Fatalf("image = %q", created.Image)
	}

	bySlug, err := f.products.Get(ctx, "ball-valve-200")
	if err != nil || bySlug.ID != created.ID {
		t.Fatalf("Get by slug = %+v, %v", bySlug, err)
	}

	if _, err := f.products.Create(ctx, validProductInput("Ball Valve 200")); err == nil {
		t.Fatalf("expected conflict on duplicate slug")
	} else {
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Status() != 409 {
			t.Fatalf("expected 409 AppError, got %v", err)
		}
	}

	updated, err := f.products.Update(ctx, created.ID, types.ProductInput{
		Name:     strPtr("Gate Valve 300"),
		Featured: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != "gate-valve-300" || !updated.Featured || updated.Category != "valves" {
		t.Fatalf("partial update lost data: %+v", updated)
	}

	// The cached single-product entry must not survive the update.
	got, err := f.products.Get(ctx, created.ID)
	if err != nil || got.Name != "Gate Valve 300" {
		t.Fatalf("Get after update = %+v, %v", got, err)
	}

	if err := f.products.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err = f.products.Get(ctx, created.ID)
	if !errors.Is(err, types.ErrProductNotFound) {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}

	docs, total, _ := f.db.ReadDocuments(ctx, types.ReadDocumentsRequest{Collection: ProductsCollection})
	if total != 1 || docs[0]["active"] != false {
		t.Fatalf("soft delete should keep the document inactive: %v", docs)
	}
}

func TestProductService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	input := validProductInput("ab")
	input.Images = []string{" "}

	_, err := f.products.Create(context.Background(), input)

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Kind != types.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(appErr.Details) != 2 {
		t.Fatalf("details = %v", appErr.Details)
	}
}

func TestProductService_CategoriesFallBackToPersistedTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.products.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	categories, err := f.products.Categories(ctx)
	if err != nil || len(categories) == 0 {
		t.Fatalf("Categories = %v, %v", categories, err)
	}

	if _, ok, _ := f.store.Get(cache.DefaultPersistedPrefix + cache.CategoriesKey); !ok {
		t.Fatalf("categories were not persisted")
	}

	// Lose the primary cache and the database contents; the persisted tier answers.
	f.cache.Clear()
	if _, err := f.db.DeleteDocuments(ctx, types.DeleteDocumentsRequest{Collection: ProductsCollection}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}

	again, err := f.products.Categories(ctx)
	if err != nil || strings.Join(again, ",") != strings.Join(categories, ",") {
		t.Fatalf("persisted categories = %v, %v; want %v", again, err, categories)
	}
	if _, ok := f.cache.Get(cache.CategoriesKey); !ok {
		t.Fatalf("persisted hit should repopulate the primary cache")
	}
}

func TestProductService_GetMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.products.Get(context.Background(), "nope")
	if !errors.Is(err, types.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, ok := f.cache.Get(cache.ProductKey("nope")); ok {
		t.Fatalf("errors must not be cached")
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	enabled bool
	err     error
	sent    []*types.Inquiry
}

func (n *recordingNotifier) Enabled() bool { return n.enabled }

func (n *recordingNotifier) NotifyInquiry(_ context.Context, inquiry *types.Inquiry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, inquiry)
	return n.err
}

func validInquiry() types.InquiryInput {
	return types.InquiryInput{
		Name:    "Jane Doe",
		Email:   "  Jane@Example.COM ",
		Country: "Norway",
		Message: "Please send a quote for 50 cases.",
	}
}

func TestInquiryService_Submit(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{enabled: true, err: errors.New("smtp down")}
	inquiries := NewInquiryService(f.db, f.cache, notifier, NewValidator(), logger.NewNop())

	ctx := context.Background()

	if _, err := inquiries.List(ctx, types.InquiryFilter{}); err != nil {
		t.Fatalf("List: %v", err)
	}

	stored, err := inquiries.Submit(ctx, validInquiry(), types.InquirySourceContactForm, types.RequestMeta{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Submit should succeed even when mail fails: %v", err)
	}

	if stored.Email != "jane@example.com" {
		t.Fatalf("email = %q", stored.Email)
	}
	if stored.Status != types.InquiryStatusNew || stored.Priority != types.InquiryPriorityMedium {
		t.Fatalf("defaults = %s/%s", stored.Status, stored.Priority)
	}
	if stored.Source != types.InquirySourceContactForm || stored.IPAddress != "10.0.0.1" || stored.UserAgent != "unknown" {
		t.Fatalf("meta = %+v", stored)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification attempt, got %d", len(notifier.sent))
	}

	list, err := inquiries.List(ctx, types.InquiryFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Pagination.Total != 1 || list.Pagination.Pages != 1 {
		t.Fatalf("submit must invalidate cached listings: %+v", list.Pagination)
	}
}

func TestInquiryService_SubmitRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{enabled: true}
	inquiries := NewInquiryService(f.db, f.cache, notifier, NewValidator(), logger.NewNop())

	input := validInquiry()
	input.Message = "<script>alert(1)</script> hello there"

	_, err := inquiries.Submit(context.Background(), input, types.InquirySourceWebsite, types.RequestMeta{})

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Status() != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("invalid inquiries must not notify")
	}
}

func TestInquiryService_ListPagingAndStatus(t *testing.T) {
	f := newFixture(t)
	inquiries := NewInquiryService(f.db, f.cache, nil, NewValidator(), logger.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := inquiries.Submit(ctx, validInquiry(), "", types.RequestMeta{}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	page, err := inquiries.List(ctx, types.InquiryFilter{Page: 2, Limit: 2, Status: "new"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Inquiries) != 2 || page.Pagination.Pages != 3 || page.Pagination.Page != 2 {
		t.Fatalf("page = %d items, %+v", len(page.Inquiries), page.Pagination)
	}

	closed, _ := inquiries.List(ctx, types.InquiryFilter{Status: types.InquiryStatusClosed})
	if closed.Pagination.Total != 0 {
		t.Fatalf("closed total = %d", closed.Pagination.Total)
	}

	if got := NormalizeInquiryFilter(types.InquiryFilter{Status: "bogus", Limit: 1000}); got.Status != "" || got.Limit != MaxInquiryLimit || got.Page != 1 {
		t.Fatalf("normalized = %+v", got)
	}
}

func TestProductService_Related(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.products.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	input := validProductInput("NANUK 905 Compact Case")
	input.Category = strPtr("Small Cases")
	sibling, err := f.products.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	product, err := f.products.Get(ctx, "nanuk-910-protective-case")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	related, err := f.products.Related(ctx, product, 4)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 1 || related[0].ID != sibling.ID {
		t.Fatalf("related = %+v", related)
	}
}
