package kvstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

// NewStore builds the backing store of the persisted cache. It returns nil,
// without error, when persistence is disabled or the store type is "none".
func NewStore(ctx context.Context, config types.ConfigManager, logger types.Logger) (types.KeyValueStoreManager, error) {
	pcConfig := config.GetConfig().PersistedCache
	if pcConfig == nil || !pcConfig.Enabled || pcConfig.Store == nil {
		return nil, nil
	}

	var store types.KeyValueStoreManager
	var err error

	switch pcConfig.Store.Type {
	case "", "none":
		return nil, nil
	case "memory":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(logger, pcConfig.Store.Config)
	case "redis":
		store, err = NewRedisStore(ctx, logger, pcConfig.Store.Config)
	default:
		return nil, types.Errorf(types.ErrStoreTypeUnknown, "type: %s", pcConfig.Store.Type)
	}

	if err != nil {
		return nil, err
	}

	logger.Info("Key-value store initialized", zap.String("type", store.Type()))
	return store, nil
}
