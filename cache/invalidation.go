package cache

import (
	"github.com/saiset-co/catalog-service/types"
)

// InvalidateProducts drops every listing and single-product entry, plus the
// category list that is derived from products.
func InvalidateProducts(c types.CacheManager) int {
	removed := c.InvalidatePrefix(ProductsPrefix)
	removed += c.InvalidatePrefix(ProductPrefix)
	if InvalidateCategories(c) {
		removed++
	}
	return removed
}

func InvalidateCategories(c types.CacheManager) bool {
	return c.Delete(CategoriesKey)
}

func InvalidateInquiries(c types.CacheManager) int {
	return c.InvalidatePrefix(InquiriesPrefix)
}
