package catalog

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	DefaultProductLimit = 20
	MaxProductLimit     = 100

	ProductsTTL = 5 * time.Minute
	// CategoriesPersistTTL bounds how long the second tier may serve a category
	// list after the primary cache lost it.
	CategoriesPersistTTL = time.Hour
)

var productSortFields = map[string]bool{
	"sortOrder": true,
	"name":      true,
	"category":  true,
	"createdAt": true,
	"updatedAt": true,
}

type ProductService struct {
	db        types.DatabaseManager
	cache     types.CacheManager
	persisted *cache.PersistedCache
	validator *Validator
	logger    types.Logger

	list func(ctx context.Context, filter types.ProductFilter) (types.ProductList, error)
	get  func(ctx context.Context, idOrSlug string) (types.Product, error)
}

func NewProductService(db types.DatabaseManager, c types.CacheManager, persisted *cache.PersistedCache, validator *Validator, logger types.Logger) *ProductService {
	if c == nil {
		c = cache.NewNoopCache()
	}
	if persisted == nil {
		persisted = cache.NewPersistedCache(nil, logger)
	}

	s := &ProductService{
		db:        db,
		cache:     c,
		persisted: persisted,
		validator: validator,
		logger:    logger,
	}

	s.list = cache.WithCache(c, s.loadProducts, productsKey, ProductsTTL)
	s.get = cache.WithCache(c, s.loadProduct, cache.ProductKey, ProductsTTL)

	return s
}

// NormalizeProductFilter applies defaults and bounds to a listing request.
func NormalizeProductFilter(filter types.ProductFilter) types.ProductFilter {
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.Category == "all" {
		filter.Category = ""
	}

	filter.Search = strings.TrimSpace(filter.Search)

	if filter.Limit <= 0 {
		filter.Limit = DefaultProductLimit
	}
	filter.Limit = utils.Clamp(filter.Limit, 1, MaxProductLimit)

	if filter.Skip < 0 {
		filter.Skip = 0
	}

	if !productSortFields[filter.SortBy] {
		filter.SortBy = "sortOrder"
	}
	if filter.SortOrder != -1 {
		filter.SortOrder = 1
	}

	return filter
}

func productsKey(filter types.ProductFilter) string {
	return cache.ProductsKey(map[string]interface{}{
		"category":  filter.Category,
		"featured":  filter.Featured,
		"search":    filter.Search,
		"sortBy":    filter.SortBy,
		"sortOrder": filter.SortOrder,
		"limit":     filter.Limit,
		"skip":      filter.Skip,
	})
}

func (s *ProductService) List(ctx context.Context, filter types.ProductFilter) (*types.ProductList, error) {
	list, err := s.list(ctx, NormalizeProductFilter(filter))
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *ProductService) Get(ctx context.Context, idOrSlug string) (*types.Product, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, types.NewAppError(types.KindValidation, "Product ID is required", types.ErrInvalidParameter)
	}

	product, err := s.get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Related lists up to limit other active products of the same category.
func (s *ProductService) Related(ctx context.Context, product *types.Product, limit int) ([]types.Product, error) {
	list, err := s.List(ctx, types.ProductFilter{Category: product.Category, Limit: limit + 1})
	if err != nil {
		return nil, err
	}

	related := make([]types.Product, 0, limit)
	for _, p := range list.Products {
		if p.ID == product.ID || len(related) == limit {
			continue
		}
		related = append(related, p)
	}
	return related, nil
}

// Categories returns the distinct categories of active products, consulting
// the primary cache, then the persisted tier, then the database.
func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	if categories, ok := cache.Lookup[[]string](s.cache, cache.CategoriesKey); ok {
		return categories, nil
	}

	if categories, ok := cache.PersistedLookup[[]string](s.persisted, cache.CategoriesKey); ok {
		s.cache.Set(cache.CategoriesKey, categories, types.DefaultTTL)
		return categories, nil
	}

	docs, _, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: ProductsCollection,
		Filter:     map[string]interface{}{"active": true},
	})
	if err != nil {
		return nil, types.NewAppError(types.KindDatabase, "Failed to fetch categories", err)
	}

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, doc := range docs {
		category, _ := doc["category"].(string)
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	sort.Strings(categories)

	s.cache.Set(cache.CategoriesKey, categories, types.DefaultTTL)
	s.persisted.Set(cache.CategoriesKey, categories, CategoriesPersistTTL)

	return categories, nil
}

func (s *ProductService) Create(ctx context.Context, input types.ProductInput) (*types.Product, error) {
	if errs := s.validator.ValidateProduct(input, false); len(errs) > 0 {
		return nil, types.NewValidationError(errs)
	}

	product := types.Product{
		Name:            SanitizeString(*input.Name),
		Category:        SanitizeString(*input.Category),
		Subcategory:     SanitizeString(deref(input.Subcategory)),
		Description:     SanitizeString(*input.Description),
		LongDescription: SanitizeString(deref(input.LongDescription)),
		Images:          trimAll(input.Images),
		Specifications:  input.Specifications,
		Features:        trimAll(input.Features),
		Applications:    nonNil(input.Applications),
		Certifications:  nonNil(input.Certifications),
		Active:          true,
	}

	product.Slug = GenerateSlug(*input.Name)
	if input.Slug != nil && *input.Slug != "" {
		product.Slug = *input.Slug
	}
	if input.Featured != nil {
		product.Featured = *input.Featured
	}
	if input.Active != nil {
		product.Active = *input.Active
	}
	if input.SortOrder != nil {
		product.SortOrder = *input.SortOrder
	}

	if err := s.ensureSlugFree(ctx, product.Slug, ""); err != nil {
		return nil, err
	}

	doc, err := toDocument(product)
	if err != nil {
		return nil, err
	}

	ids, err := s.db.CreateDocuments(ctx, types.CreateDocumentsRequest{
		Collection: ProductsCollection,
		Data:       []map[string]interface{}{doc},
	})
	if err != nil {
		return nil, types.NewAppError(types.KindDatabase, "Failed to create product", err)
	}

	s.invalidate()

	s.logger.Info("Product created", zap.String("id", ids[0]), zap.String("slug", product.Slug))

	return s.find(ctx, ids[0], false)
}

func (s *ProductService) Update(ctx context.Context, idOrSlug string, input types.ProductInput) (*types.Product, error) {
	existing, err := s.find(ctx, idOrSlug, false)
	if err != nil {
		return nil, err
	}

	if errs := s.validator.ValidateProduct(input, true); len(errs) > 0 {
		return nil, types.NewValidationError(errs)
	}

	updates := make(map[string]interface{})

	slug := ""
	if input.Name != nil {
		name := SanitizeString(*input.Name)
		updates["name"] = name
		if name != existing.Name {
			slug = GenerateSlug(*input.Name)
		}
	}
	if input.Slug != nil && *input.Slug != "" {
		slug = *input.Slug
	}
	if slug != "" && slug != existing.Slug {
		if err := s.ensureSlugFree(ctx, slug, existing.ID); err != nil {
			return nil, err
		}
		updates["slug"] = slug
	}

	setString := func(field string, value *string) {
		if value != nil {
			updates[field] = SanitizeString(*value)
		}
	}
	setString("category", input.Category)
	setString("subcategory", input.Subcategory)
	setString("description", input.Description)
	setString("longDescription", input.LongDescription)

	if input.Images != nil {
		updates["images"] = trimAll(input.Images)
	}
	if input.Specifications != nil {
		updates["specifications"] = input.Specifications
	}
	if input.Features != nil {
		updates["features"] = trimAll(input.Features)
	}
	if input.Applications != nil {
		updates["applications"] = input.Applications
	}
	if input.Certifications != nil {
		updates["certifications"] = input.Certifications
	}
	if input.Featured != nil {
		updates["featured"] = *input.Featured
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if input.SortOrder != nil {
		updates["sortOrder"] = *input.SortOrder
	}

	if len(updates) == 0 {
		return existing, nil
	}

	if err := s.updateProduct(ctx, existing.ID, updates); err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.String("id", existing.ID), zap.Int("fields", len(updates)))

	return s.find(ctx, existing.ID, false)
}

// Delete hides the product from the public catalog. The document is kept.
func (s *ProductService) Delete(ctx context.Context, idOrSlug string) error {
	existing, err := s.find(ctx, idOrSlug, false)
	if err != nil {
		return err
	}

	if err := s.updateProduct(ctx, existing.ID, map[string]interface{}{"active": false}); err != nil {
		return err
	}

	s.logger.Info("Product deactivated", zap.String("id", existing.ID))
	return nil
}

// Seed inserts the sample catalog when the products collection is empty and
// reports how many products were written.
func (s *ProductService) Seed(ctx context.Context) (int, error) {
	_, total, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: ProductsCollection,
		Limit:      1,
	})
	if err != nil {
		return 0, types.WrapError(err, "failed to count products")
	}

	if total > 0 {
		s.logger.Debug("Catalog already seeded", zap.Int64("products", total))
		return 0, nil
	}

	docs := make([]map[string]interface{}, 0, len(SampleProducts))
	for _, product := range SampleProducts {
		doc, err := toDocument(product)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}

	if _, err := s.db.CreateDocuments(ctx, types.CreateDocumentsRequest{
		Collection: ProductsCollection,
		Data:       docs,
	}); err != nil {
		return 0, types.WrapError(err, "failed to seed products")
	}

	s.invalidate()

	s.logger.Info("Catalog seeded with sample products", zap.Int("products", len(docs)))
	return len(docs), nil
}

// Warmup loads the category list and the featured listing into the cache.
func (s *ProductService) Warmup(ctx context.Context) error {
	if _, err := s.Categories(ctx); err != nil {
		return err
	}

	_, err := s.List(ctx, types.ProductFilter{Featured: true})
	return err
}

func (s *ProductService) loadProducts(ctx context.Context, filter types.ProductFilter) (types.ProductList, error) {
	docs, total, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: ProductsCollection,
		Filter:     listFilter(filter),
		Sort:       []types.SortField{{Field: filter.SortBy, Direction: filter.SortOrder}},
		Skip:       filter.Skip,
		Limit:      filter.Limit,
	})
	if err != nil {
		return types.ProductList{}, types.NewAppError(types.KindDatabase, "Failed to fetch products", err)
	}

	products := make([]types.Product, 0, len(docs))
	for _, doc := range docs {
		product, err := decodeProduct(doc)
		if err != nil {
			s.logger.Warn("Skipping malformed product", zap.Error(err))
			continue
		}
		products = append(products, product)
	}

	categories, err := s.Categories(ctx)
	if err != nil {
		return types.ProductList{}, err
	}

	return types.ProductList{
		Products: products,
		Pagination: types.ProductPagination{
			Total:   total,
			Limit:   filter.Limit,
			Skip:    filter.Skip,
			HasMore: int64(filter.Skip+filter.Limit) < total,
		},
		Categories: categories,
	}, nil
}

func (s *ProductService) loadProduct(ctx context.Context, idOrSlug string) (types.Product, error) {
	product, err := s.find(ctx, idOrSlug, true)
	if err != nil {
		return types.Product{}, err
	}
	return *product, nil
}

func (s *ProductService) find(ctx context.Context, idOrSlug string, activeOnly bool) (*types.Product, error) {
	filter := map[string]interface{}{
		"$or": []interface{}{
			map[string]interface{}{"id": idOrSlug},
			map[string]interface{}{"slug": idOrSlug},
		},
	}
	if activeOnly {
		filter["active"] = true
	}

	docs, _, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: ProductsCollection,
		Filter:     filter,
		Limit:      1,
	})
	if err != nil {
		return nil, types.NewAppError(types.KindDatabase, "Failed to fetch product", err)
	}

	if len(docs) == 0 {
		return nil, types.NewAppError(types.KindNotFound, "Product not found", types.ErrProductNotFound)
	}

	product, err := decodeProduct(docs[0])
	if err != nil {
		return nil, types.NewAppError(types.KindInternal, "Failed to fetch product", err)
	}
	return &product, nil
}

func (s *ProductService) ensureSlugFree(ctx context.Context, slug, exceptID string) error {
	filter := map[string]interface{}{"slug": slug}
	if exceptID != "" {
		filter["id"] = map[string]interface{}{"$ne": exceptID}
	}

	_, total, err := s.db.ReadDocuments(ctx, types.ReadDocumentsRequest{
		Collection: ProductsCollection,
		Filter:     filter,
		Limit:      1,
	})
	if err != nil {
		return types.NewAppError(types.KindDatabase, "Failed to check product slug", err)
	}

	if total > 0 {
		return types.NewAppError(types.KindConflict, "Product with this name already exists", types.ErrProductAlreadyExists)
	}
	return nil
}

func (s *ProductService) updateProduct(ctx context.Context, id string, updates map[string]interface{}) error {
	data, err := utils.ToMap(updates)
	if err != nil {
		return types.WrapError(err, "failed to encode product update")
	}

	if _, err := s.db.UpdateDocuments(ctx, types.UpdateDocumentsRequest{
		Collection: ProductsCollection,
		Filter:     map[string]interface{}{"id": id},
		Data:       data,
	}); err != nil {
		return types.NewAppError(types.KindDatabase, "Failed to update product", err)
	}

	s.invalidate()
	return nil
}

func (s *ProductService) invalidate() {
	removed := cache.InvalidateProducts(s.cache)
	s.persisted.Delete(cache.CategoriesKey)

	s.logger.Debug("Product cache invalidated", zap.Int("removed", removed))
}

func listFilter(filter types.ProductFilter) map[string]interface{} {
	query := map[string]interface{}{"active": true}

	if filter.Category != "" {
		query["category"] = filter.Category
	}

	if filter.Featured {
		query["featured"] = true
	}

	if filter.Search != "" {
		pattern := map[string]interface{}{"$regex": "(?i)" + regexp.QuoteMeta(filter.Search)}
		query["$or"] = []interface{}{
			map[string]interface{}{"name": pattern},
			map[string]interface{}{"description": pattern},
			map[string]interface{}{"category": pattern},
		}
	}

	return query
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
