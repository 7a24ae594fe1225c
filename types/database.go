package types

import "context"

type DatabaseManager interface {
	LifecycleManager
	CreateCollection(name string) error
	DropCollection(name string) error
	CreateDocuments(ctx context.Context, request CreateDocumentsRequest) ([]string, error)
	ReadDocuments(ctx context.Context, request ReadDocumentsRequest) ([]map[string]interface{}, int64, error)
	UpdateDocuments(ctx context.Context, request UpdateDocumentsRequest) (int64, error)
	DeleteDocuments(ctx context.Context, request DeleteDocumentsRequest) (int64, error)
	Ping(ctx context.Context) error
}

type SortField struct {
	Field     string
	Direction int
}

type CreateDocumentsRequest struct {
	Collection string
	Data       []map[string]interface{}
}

// ReadDocumentsRequest filters use field equality, operator maps such as
// {"$gte": 1} and an "$or" key holding a list of sub-filters.
type ReadDocumentsRequest struct {
	Collection string
	Filter     map[string]interface{}
	Sort       []SortField
	Skip       int
	Limit      int
}

type UpdateDocumentsRequest struct {
	Collection string
	Filter     map[string]interface{}
	Data       map[string]interface{}
	Upsert     bool
}

type DeleteDocumentsRequest struct {
	Collection string
	Filter     map[string]interface{}
}

type DatabaseManagerCreator func(config *DatabaseConfig) (DatabaseManager, error)
