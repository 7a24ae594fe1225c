package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/saiset-co/catalog-service/logger"
	"github.com/saiset-co/catalog-service/types"
)

type staticConfig struct {
	cfg *types.ServiceConfig
}

func (s staticConfig) Load() error { return nil }

func (s staticConfig) GetConfig() *types.ServiceConfig { return s.cfg }

func exerciseStore(t *testing.T, store types.KeyValueStore) {
	t.Helper()

	if _, ok, err := store.Get("missing"); ok || err != nil {
		t.Fatalf("get missing = %v, %v", ok, err)
	}

	if err := store.Set("b", "2"); err != nil {
		t.Fatalf("set b: %v", err)
	}
	if err := store.Set("a", "1"); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := store.Set("a", "3"); err != nil {
		t.Fatalf("overwrite a: %v", err)
	}

	value, ok, err := store.Get("a")
	if err != nil || !ok || value != "3" {
		t.Fatalf("get a = %q, %v, %v", value, ok, err)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys = %v", keys)
	}

	if err := store.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove("a"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if _, ok, _ := store.Get("a"); ok {
		t.Fatalf("a still present after remove")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	store, err := NewSQLiteStore(logger.NewNop(), map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if err := store.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer store.Stop()

	exerciseStore(t, store)
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name     string
		config   *types.PersistedCacheConfig
		wantType string
		wantErr  bool
	}{
		{name: "disabled", config: &types.PersistedCacheConfig{Enabled: false}},
		{name: "none", config: &types.PersistedCacheConfig{Enabled: true, Store: &types.StoreConfig{Type: "none"}}},
		{name: "memory", config: &types.PersistedCacheConfig{Enabled: true, Store: &types.StoreConfig{Type: "memory"}}, wantType: "memory"},
		{name: "unknown", config: &types.PersistedCacheConfig{Enabled: true, Store: &types.StoreConfig{Type: "etcd"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := staticConfig{cfg: &types.ServiceConfig{PersistedCache: tt.config}}

			store, err := NewStore(context.Background(), cfg, logger.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantType == "" {
				if store != nil {
					t.Fatalf("expected nil store, got %s", store.Type())
				}
				return
			}
			if store == nil || store.Type() != tt.wantType {
				t.Fatalf("store = %v, want type %s", store, tt.wantType)
			}
		})
	}
}
