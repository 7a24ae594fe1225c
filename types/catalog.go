package types

import "context"

const (
	InquiryStatusNew       = "new"
	InquiryStatusContacted = "contacted"
	InquiryStatusQuoted    = "quoted"
	InquiryStatusClosed    = "closed"

	InquiryPriorityLow    = "low"
	InquiryPriorityMedium = "medium"
	InquiryPriorityHigh   = "high"

	InquirySourceWebsite     = "website"
	InquirySourceContactForm = "contact_form"
	InquirySourceEmail       = "email"
	InquirySourcePhone       = "phone"
)

const DefaultProductImage = "/images/products/default.svg"

type Product struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	Category        string            `json:"category"`
	Subcategory     string            `json:"subcategory,omitempty"`
	Description     string            `json:"description"`
	LongDescription string            `json:"longDescription,omitempty"`
	Images          []string          `json:"images"`
	Image           string            `json:"image,omitempty"`
	Specifications  map[string]string `json:"specifications"`
	Features        []string          `json:"features"`
	Applications    []string          `json:"applications,omitempty"`
	Certifications  []string          `json:"certifications,omitempty"`
	Featured        bool              `json:"featured"`
	Active          bool              `json:"active"`
	SortOrder       int               `json:"sortOrder"`
	CreatedAt       int64             `json:"createdAt"`
	UpdatedAt       int64             `json:"updatedAt"`
}

// ProductInput is the writable part of a product. Pointer fields distinguish
// "not sent" from zero values on partial updates.
type ProductInput struct {
	Name            *string           `json:"name,omitempty"`
	Slug            *string           `json:"slug,omitempty"`
	Category        *string           `json:"category,omitempty"`
	Subcategory     *string           `json:"subcategory,omitempty"`
	Description     *string           `json:"description,omitempty"`
	LongDescription *string           `json:"longDescription,omitempty"`
	Images          []string          `json:"images,omitempty"`
	Specifications  map[string]string `json:"specifications,omitempty"`
	Features        []string          `json:"features,omitempty"`
	Applications    []string          `json:"applications,omitempty"`
	Certifications  []string          `json:"certifications,omitempty"`
	Featured        *bool             `json:"featured,omitempty"`
	Active          *bool             `json:"active,omitempty"`
	SortOrder       *int              `json:"sortOrder,omitempty"`
}

type ProductFilter struct {
	Category  string
	Featured  bool
	Search    string
	SortBy    string
	SortOrder int
	Limit     int
	Skip      int
}

type ProductPagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Skip    int   `json:"skip"`
	HasMore bool  `json:"hasMore"`
}

type ProductList struct {
	Products   []Product         `json:"products"`
	Pagination ProductPagination `json:"pagination"`
	Categories []string          `json:"categories"`
}

type Inquiry struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone,omitempty"`
	Country         string   `json:"country"`
	Company         string   `json:"company,omitempty"`
	ProductInterest string   `json:"productInterest,omitempty"`
	ProductID       string   `json:"productId,omitempty"`
	ProductName     string   `json:"productName,omitempty"`
	Quantity        string   `json:"quantity,omitempty"`
	Message         string   `json:"message"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	Source          string   `json:"source"`
	IPAddress       string   `json:"ipAddress,omitempty"`
	UserAgent       string   `json:"userAgent,omitempty"`
	Notes           []string `json:"notes,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
	UpdatedAt       int64    `json:"updatedAt"`
}

type InquiryInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Country         string `json:"country"`
	Company         string `json:"company,omitempty"`
	ProductInterest string `json:"productInterest,omitempty"`
	ProductID       string `json:"productId,omitempty"`
	ProductName     string `json:"productName,omitempty"`
	Quantity        string `json:"quantity,omitempty"`
	Message         string `json:"message"`
}

type InquiryFilter struct {
	Page   int
	Limit  int
	Status string
}

type InquiryPagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type InquiryList struct {
	Inquiries  []Inquiry         `json:"inquiries"`
	Pagination InquiryPagination `json:"pagination"`
}

type ProductService interface {
	List(ctx context.Context, filter ProductFilter) (*ProductList, error)
	Get(ctx context.Context, idOrSlug string) (*Product, error)
	Related(ctx context.Context, product *Product, limit int) ([]Product, error)
	Create(ctx context.Context, input ProductInput) (*Product, error)
	Update(ctx context.Context, idOrSlug string, input ProductInput) (*Product, error)
	Delete(ctx context.Context, idOrSlug string) error
	Categories(ctx context.Context) ([]string, error)
}

type InquiryService interface {
	Submit(ctx context.Context, input InquiryInput, source string, meta RequestMeta) (*Inquiry, error)
	List(ctx context.Context, filter InquiryFilter) (*InquiryList, error)
	NotificationsEnabled() bool
}

type RequestMeta struct {
	IPAddress string
	UserAgent string
}
