package database

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	saimetrics "github.com/saiset-co/catalog-service/metrics"
	"github.com/saiset-co/catalog-service/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

var customDatabaseCreators sync.Map

func RegisterDatabaseManager(databaseType string, creator types.DatabaseManagerCreator) {
	customDatabaseCreators.Store(databaseType, creator)
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (types.DatabaseManager, error) {
	dbConfig := config.GetConfig().Database
	if dbConfig == nil {
		return nil, types.Errorf(types.ErrConfigIsNil, "database")
	}

	var impl types.DatabaseManager
	var err error

	switch dbConfig.Type {
	case "clover":
		impl, err = NewCloverDB(ctx, logger, dbConfig)
	default:
		creator, exists := customDatabaseCreators.Load(dbConfig.Type)
		if !exists {
			return nil, types.Errorf(types.ErrDatabaseTypeUnknown, "type: %s", dbConfig.Type)
		}
		impl, err = creator.(types.DatabaseManagerCreator)(dbConfig)
	}

	if err != nil {
		return nil, err
	}

	return newInstrumentedDatabaseManager(logger, metrics, impl), nil
}

// instrumentedDatabaseManager wraps an implementation with lifecycle guards and
// per-operation timing.
type instrumentedDatabaseManager struct {
	impl    types.DatabaseManager
	logger  types.Logger
	metrics types.MetricsManager
	state   atomic.Value
}

func newInstrumentedDatabaseManager(logger types.Logger, metrics types.MetricsManager, impl types.DatabaseManager) types.DatabaseManager {
	if metrics == nil {
		metrics = saimetrics.NewNoop()
	}

	instrumented := &instrumentedDatabaseManager{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}

	instrumented.state.Store(StateStopped)
	return instrumented
}

func (dm *instrumentedDatabaseManager) Start() error {
	if !dm.transitionState(StateStopped, StateStarting) {
		return types.ErrDatabaseIsRunning
	}

	defer func() {
		if dm.getState() == StateStarting {
			dm.setState(StateRunning)
		}
	}()

	err := dm.impl.Start()
	if err != nil {
		dm.setState(StateStopped)
		return err
	}

	dm.logger.Info("Database manager started")
	return nil
}

func (dm *instrumentedDatabaseManager) Stop() error {
	if !dm.transitionState(StateRunning, StateStopping) {
		return types.ErrDatabaseIsNotRunning
	}

	defer func() {
		dm.setState(StateStopped)
	}()

	err := dm.impl.Stop()
	if err != nil {
		dm.logger.Error("Failed to stop database implementation", zap.Error(err))
		return err
	}

	dm.logger.Info("Database manager stopped gracefully")
	return nil
}

func (dm *instrumentedDatabaseManager) IsRunning() bool {
	return dm.getState() == StateRunning
}

func (dm *instrumentedDatabaseManager) Ping(ctx context.Context) error {
	return dm.impl.Ping(ctx)
}

func (dm *instrumentedDatabaseManager) CreateDocuments(ctx context.Context, request types.CreateDocumentsRequest) ([]string, error) {
	defer dm.observe("create", request.Collection, time.Now())
	ids, err := dm.impl.CreateDocuments(ctx, request)
	dm.fail("create", request.Collection, err)
	return ids, err
}

func (dm *instrumentedDatabaseManager) ReadDocuments(ctx context.Context, request types.ReadDocumentsRequest) ([]map[string]interface{}, int64, error) {
	defer dm.observe("read", request.Collection, time.Now())
	docs, total, err := dm.impl.ReadDocuments(ctx, request)
	dm.fail("read", request.Collection, err)
	return docs, total, err
}

func (dm *instrumentedDatabaseManager) UpdateDocuments(ctx context.Context, request types.UpdateDocumentsRequest) (int64, error) {
	defer dm.observe("update", request.Collection, time.Now())
	n, err := dm.impl.UpdateDocuments(ctx, request)
	dm.fail("update", request.Collection, err)
	return n, err
}

func (dm *instrumentedDatabaseManager) DeleteDocuments(ctx context.Context, request types.DeleteDocumentsRequest) (int64, error) {
	defer dm.observe("delete", request.Collection, time.Now())
	n, err := dm.impl.DeleteDocuments(ctx, request)
	dm.fail("delete", request.Collection, err)
	return n, err
}

func (dm *instrumentedDatabaseManager) CreateCollection(collectionName string) error {
	return dm.impl.CreateCollection(collectionName)
}

func (dm *instrumentedDatabaseManager) DropCollection(collectionName string) error {
	return dm.impl.DropCollection(collectionName)
}

func (dm *instrumentedDatabaseManager) observe(operation, collection string, started time.Time) {
	dm.metrics.Histogram("database_operation_duration_seconds",
		[]float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		map[string]string{"operation": operation, "collection": collection},
	).ObserveDuration(started)
}

func (dm *instrumentedDatabaseManager) fail(operation, collection string, err error) {
	if err == nil {
		return
	}
	dm.metrics.Counter("database_operation_errors_total", map[string]string{
		"operation":  operation,
		"collection": collection,
	}).Inc()
	dm.logger.Error("Database operation failed",
		zap.String("operation", operation),
		zap.String("collection", collection),
		zap.Error(err))
}

// Helper methods for state management

func (dm *instrumentedDatabaseManager) getState() State {
	return dm.state.Load().(State)
}

func (dm *instrumentedDatabaseManager) setState(newState State) bool {
	currentState := dm.getState()
	return dm.state.CompareAndSwap(currentState, newState)
}

func (dm *instrumentedDatabaseManager) transitionState(from, to State) bool {
	return dm.state.CompareAndSwap(from, to)
}
