package cache

import (
	"fmt"

	"github.com/saiset-co/catalog-service/utils"
)

const (
	ProductsPrefix  = "products:"
	ProductPrefix   = "product:"
	CategoriesKey   = "categories"
	InquiriesPrefix = "inquiries:"
	HealthKey       = "health:check"
)

// StableKey appends the JSON form of fields, with keys sorted, to prefix.
// Equal filters always produce the same key regardless of insertion order.
func StableKey(prefix string, fields map[string]interface{}) string {
	if len(fields) == 0 {
		return prefix + "{}"
	}

	data, err := utils.MarshalSorted(fields)
	if err != nil {
		return prefix + fmt.Sprint(fields)
	}
	return prefix + string(data)
}

func ProductsKey(filters map[string]interface{}) string {
	return StableKey(ProductsPrefix, filters)
}

func ProductKey(id string) string {
	return ProductPrefix + id
}

func InquiriesKey(page, limit int, status string) string {
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("%s%d:%d:%s", InquiriesPrefix, page, limit, status)
}
