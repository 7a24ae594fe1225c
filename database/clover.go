package database

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"

	// cloverIDField is the internal object id clover adds to every document.
	cloverIDField = "_id"
	pingProbe     = "__ping"
)

type CloverDB struct {
	db     *clover.DB
	logger types.Logger
	config *types.DatabaseConfig
	now    func() time.Time
	state  atomic.Value
}

func NewCloverDB(ctx context.Context, logger types.Logger, config *types.DatabaseConfig) (*CloverDB, error) {
	if config.Path == "" {
		return nil, types.Errorf(types.ErrDatabaseConnectionFailed, "database path is empty")
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, types.WrapError(err, "failed to create database directory")
	}

	db, err := clover.Open(config.Path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open CloverDB")
	}

	cdb := &CloverDB{
		db:     db,
		logger: logger,
		config: config,
		now:    time.Now,
	}

	cdb.state.Store(StateStopped)
	return cdb, nil
}

func (c *CloverDB) Start() error {
	if !c.transitionState(StateStopped, StateStarting) {
		return types.ErrDatabaseIsRunning
	}

	defer func() {
		if c.getState() == StateStarting {
			c.setState(StateRunning)
		}
	}()

	c.logger.Info("CloverDB started", zap.String("path", c.config.Path))
	return nil
}

func (c *CloverDB) Stop() error {
	if !c.transitionState(StateRunning, StateStopping) {
		return types.ErrDatabaseIsNotRunning
	}

	defer func() {
		c.setState(StateStopped)
	}()

	err := c.db.Close()
	if err != nil {
		return types.WrapError(err, "failed to close CloverDB")
	}

	c.logger.Info("CloverDB stopped gracefully")
	return nil
}

func (c *CloverDB) IsRunning() bool {
	return c.getState() == StateRunning
}

// Ping performs a cheap metadata lookup to prove the store still answers.
func (c *CloverDB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.db.HasCollection(pingProbe); err != nil {
		return types.WrapError(err, "database ping failed")
	}

	return nil
}

func (c *CloverDB) CreateCollection(collectionName string) error {
	if collectionName == "" {
		return types.ErrCollectionNameEmpty
	}

	return c.ensureCollection(collectionName)
}

func (c *CloverDB) DropCollection(collectionName string) error {
	exists, err := c.db.HasCollection(collectionName)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		return nil
	}

	err = c.db.DropCollection(collectionName)
	if err != nil {
		return types.WrapError(err, "failed to drop collection")
	}

	return nil
}

func (c *CloverDB) CreateDocuments(ctx context.Context, request types.CreateDocumentsRequest) ([]string, error) {
	if request.Collection == "" {
		return nil, types.ErrCollectionNameEmpty
	}

	if len(request.Data) == 0 {
		return nil, types.ErrDocumentsEmpty
	}

	if err := c.ensureCollection(request.Collection); err != nil {
		return nil, err
	}

	docs := make([]*clover.Document, 0, len(request.Data))
	ids := make([]string, 0, len(request.Data))
	now := c.now().UnixMilli()

	for _, data := range request.Data {
		id, _ := data[FieldID].(string)
		if id == "" {
			id = uuid.New().String()
		}

		doc := clover.NewDocument()
		for key, value := range data {
			doc.Set(key, value)
		}
		doc.Set(FieldID, id)
		if _, ok := data[FieldCreatedAt]; !ok {
			doc.Set(FieldCreatedAt, now)
		}
		doc.Set(FieldUpdatedAt, now)

		docs = append(docs, doc)
		ids = append(ids, id)
	}

	if err := c.db.Insert(request.Collection, docs...); err != nil {
		return nil, types.WrapError(err, "failed to insert documents")
	}

	return ids, nil
}

func (c *CloverDB) ReadDocuments(ctx context.Context, request types.ReadDocumentsRequest) ([]map[string]interface{}, int64, error) {
	exists, err := c.db.HasCollection(request.Collection)
	if err != nil {
		return nil, 0, types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		return []map[string]interface{}{}, 0, nil
	}

	criteria, err := buildCriteria(request.Filter)
	if err != nil {
		return nil, 0, err
	}

	totalCount, err := c.query(request.Collection, criteria).Count()
	if err != nil {
		return nil, 0, types.WrapError(err, "failed to count documents")
	}

	query := c.query(request.Collection, criteria)

	if len(request.Sort) > 0 {
		options := make([]clover.SortOption, 0, len(request.Sort))
		for _, field := range request.Sort {
			options = append(options, clover.SortOption{Field: field.Field, Direction: field.Direction})
		}
		query = query.Sort(options...)
	}

	if request.Skip > 0 {
		query = query.Skip(request.Skip)
	}

	if request.Limit > 0 {
		query = query.Limit(request.Limit)
	}

	cloverDocs, err := query.FindAll()
	if err != nil {
		return nil, 0, types.WrapError(err, "failed to find documents")
	}

	results := make([]map[string]interface{}, 0, len(cloverDocs))
	for _, doc := range cloverDocs {
		docMap := make(map[string]interface{})

		if err := doc.Unmarshal(&docMap); err != nil {
			c.logger.Warn("Skipping undecodable document",
				zap.String("collection", request.Collection),
				zap.Error(err))
			continue
		}

		delete(docMap, cloverIDField)
		results = append(results, docMap)
	}

	return results, int64(totalCount), nil
}

func (c *CloverDB) UpdateDocuments(ctx context.Context, request types.UpdateDocumentsRequest) (int64, error) {
	exists, err := c.db.HasCollection(request.Collection)
	if err != nil {
		return 0, types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		if !request.Upsert {
			return 0, nil
		}
		if err := c.ensureCollection(request.Collection); err != nil {
			return 0, err
		}
	}

	criteria, err := buildCriteria(request.Filter)
	if err != nil {
		return 0, err
	}

	count, err := c.query(request.Collection, criteria).Count()
	if err != nil {
		return 0, types.WrapError(err, "failed to count matching documents")
	}

	if count == 0 {
		if !request.Upsert {
			return 0, nil
		}

		fresh := make(map[string]interface{}, len(request.Data))
		for key, value := range request.Filter {
			if _, isOperator := value.(map[string]interface{}); isOperator || strings.HasPrefix(key, "$") {
				continue
			}
			fresh[key] = value
		}
		for key, value := range request.Data {
			fresh[key] = value
		}

		if _, err := c.CreateDocuments(ctx, types.CreateDocumentsRequest{
			Collection: request.Collection,
			Data:       []map[string]interface{}{fresh},
		}); err != nil {
			return 0, err
		}

		return 1, nil
	}

	updateMap := make(map[string]interface{}, len(request.Data)+1)
	for key, value := range request.Data {
		if key == FieldID || key == FieldCreatedAt {
			continue
		}
		updateMap[key] = value
	}
	updateMap[FieldUpdatedAt] = c.now().UnixMilli()

	if err := c.query(request.Collection, criteria).Update(updateMap); err != nil {
		return 0, types.WrapError(err, "failed to update documents")
	}

	return int64(count), nil
}

func (c *CloverDB) DeleteDocuments(ctx context.Context, request types.DeleteDocumentsRequest) (int64, error) {
	exists, err := c.db.HasCollection(request.Collection)
	if err != nil {
		return 0, types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		return 0, nil
	}

	criteria, err := buildCriteria(request.Filter)
	if err != nil {
		return 0, err
	}

	count, err := c.query(request.Collection, criteria).Count()
	if err != nil {
		return 0, types.WrapError(err, "failed to count matching documents")
	}

	if count == 0 {
		return 0, nil
	}

	if err := c.query(request.Collection, criteria).Delete(); err != nil {
		return 0, types.WrapError(err, "failed to delete documents")
	}

	return int64(count), nil
}

func (c *CloverDB) ensureCollection(name string) error {
	exists, err := c.db.HasCollection(name)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}

	if exists {
		return nil
	}

	if err := c.db.CreateCollection(name); err != nil {
		return types.WrapError(err, "failed to create collection")
	}

	return nil
}

func (c *CloverDB) query(collection string, criteria *clover.Criteria) *clover.Query {
	query := c.db.Query(collection)
	if criteria != nil {
		query = query.Where(criteria)
	}
	return query
}

// buildCriteria turns a Mongo-style filter into a single clover criteria.
// Top-level keys are joined with AND; "$or" holds a list of sub-filters.
// A nil result means "match everything".
func buildCriteria(filter map[string]interface{}) (*clover.Criteria, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var result *clover.Criteria
	for _, key := range keys {
		var criteria *clover.Criteria
		var err error

		if key == "$or" {
			criteria, err = buildOr(filter[key])
		} else {
			criteria, err = fieldCriteria(key, filter[key])
		}
		if err != nil {
			return nil, err
		}

		result = and(result, criteria)
	}

	return result, nil
}

func buildOr(value interface{}) (*clover.Criteria, error) {
	var branches []map[string]interface{}

	switch v := value.(type) {
	case []map[string]interface{}:
		branches = v
	case []interface{}:
		for _, item := range v {
			branch, ok := item.(map[string]interface{})
			if !ok {
				return nil, types.Errorf(types.ErrInvalidParameter, "$or entries must be objects")
			}
			branches = append(branches, branch)
		}
	default:
		return nil, types.Errorf(types.ErrInvalidParameter, "$or must be a list")
	}

	var result *clover.Criteria
	for _, branch := range branches {
		criteria, err := buildCriteria(branch)
		if err != nil {
			return nil, err
		}
		if criteria == nil {
			continue
		}
		if result == nil {
			result = criteria
		} else {
			result = result.Or(criteria)
		}
	}

	return result, nil
}

func fieldCriteria(key string, value interface{}) (*clover.Criteria, error) {
	operators, ok := value.(map[string]interface{})
	if !ok {
		return clover.Field(key).Eq(value), nil
	}

	var result *clover.Criteria
	for op, opValue := range operators {
		var criteria *clover.Criteria

		switch op {
		case "$eq":
			criteria = clover.Field(key).Eq(opValue)
		case "$ne":
			criteria = clover.Field(key).Neq(opValue)
		case "$gt":
			criteria = clover.Field(key).Gt(opValue)
		case "$gte":
			criteria = clover.Field(key).GtEq(opValue)
		case "$lt":
			criteria = clover.Field(key).Lt(opValue)
		case "$lte":
			criteria = clover.Field(key).LtEq(opValue)
		case "$in", "$nin":
			values, err := toSlice(opValue)
			if err != nil {
				return nil, err
			}
			criteria = clover.Field(key).In(values...)
			if op == "$nin" {
				criteria = criteria.Not()
			}
		case "$exists":
			if exists, _ := opValue.(bool); exists {
				criteria = clover.Field(key).Exists()
			} else {
				criteria = clover.Field(key).NotExists()
			}
		case "$regex":
			pattern, ok := opValue.(string)
			if !ok {
				return nil, types.Errorf(types.ErrInvalidParameter, "$regex on %s must be a string", key)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, types.Errorf(types.ErrInvalidParameter, "$regex on %s: %v", key, err)
			}
			criteria = clover.Field(key).Like(pattern)
		default:
			return nil, types.Errorf(types.ErrInvalidParameter, "unsupported operator %s", op)
		}

		result = and(result, criteria)
	}

	return result, nil
}

func toSlice(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	default:
		return nil, types.Errorf(types.ErrInvalidParameter, "expected a list, got %T", value)
	}
}

func and(left, right *clover.Criteria) *clover.Criteria {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	default:
		return left.And(right)
	}
}

// ToInt64 reads a numeric document field regardless of how the store decoded it.
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (c *CloverDB) getState() State {
	return c.state.Load().(State)
}

func (c *CloverDB) setState(newState State) bool {
	currentState := c.getState()
	return c.state.CompareAndSwap(currentState, newState)
}

func (c *CloverDB) transitionState(from, to State) bool {
	return c.state.CompareAndSwap(from, to)
}
