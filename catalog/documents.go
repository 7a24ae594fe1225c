package catalog

import (
	"github.com/saiset-co/catalog-service/database"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const (
	ProductsCollection  = "products"
	InquiriesCollection = "inquiries"
)

// toDocument flattens v into the generic shape the document store expects.
// Store-managed fields are dropped so the database assigns them.
func toDocument(v interface{}) (map[string]interface{}, error) {
	doc, err := utils.ToMap(v)
	if err != nil {
		return nil, types.WrapError(err, "failed to encode document")
	}

	delete(doc, database.FieldID)
	delete(doc, database.FieldCreatedAt)
	delete(doc, database.FieldUpdatedAt)
	delete(doc, "image")

	return doc, nil
}

func decodeProduct(doc map[string]interface{}) (types.Product, error) {
	var product types.Product
	if err := utils.UnmarshalConfig(doc, &product); err != nil {
		return types.Product{}, types.WrapError(err, "failed to decode product")
	}

	return withImage(product), nil
}

func decodeInquiry(doc map[string]interface{}) (types.Inquiry, error) {
	var inquiry types.Inquiry
	if err := utils.UnmarshalConfig(doc, &inquiry); err != nil {
		return types.Inquiry{}, types.WrapError(err, "failed to decode inquiry")
	}
	return inquiry, nil
}

// withImage fills the single image field clients use for thumbnails.
func withImage(p types.Product) types.Product {
	p.Image = types.DefaultProductImage
	if len(p.Images) > 0 && p.Images[0] != "" {
		p.Image = p.Images[0]
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	return p
}
