package cache

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saiset-co/catalog-service/logger"
)

type mapStore struct {
	mu      sync.Mutex
	data    map[string]string
	failSet bool
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (s *mapStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("quota exceeded")
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *mapStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func TestPersistedCache_NilStoreIsNoop(t *testing.T) {
	p := NewPersistedCache(nil, logger.NewNop())

	p.Set("k", "v", time.Minute)
	if _, ok := p.Get("k"); ok {
		t.Fatalf("nil store returned a value")
	}
	p.Delete("k")
	p.Clear()

	if p.Available() {
		t.Fatalf("nil store reported available")
	}

	var nilCache *PersistedCache
	if nilCache.Available() {
		t.Fatalf("nil cache reported available")
	}
}

func TestPersistedCache_RoundTripAndExpiry(t *testing.T) {
	clock := newFakeClock()
	store := newMapStore()
	p := NewPersistedCache(store, logger.NewNop(), WithPersistedClock(clock.Now))

	p.Set("categories", []string{"a", "b"}, time.Minute)

	raw, ok, _ := store.Get(DefaultPersistedPrefix + "categories")
	if !ok || !strings.Contains(raw, `"ttl":60000`) {
		t.Fatalf("unexpected stored form %q", raw)
	}

	got, ok := PersistedLookup[[]string](p, "categories")
	if !ok || len(got) != 2 || got[1] != "b" {
		t.Fatalf("lookup = %v, %v", got, ok)
	}

	clock.Advance(time.Minute)
	if _, ok := p.Get("categories"); ok {
		t.Fatalf("expected entry to expire")
	}
	if _, ok, _ := store.Get(DefaultPersistedPrefix + "categories"); ok {
		t.Fatalf("expired entry was not removed from the store")
	}
}

func TestPersistedCache_StoreFailureIsSilent(t *testing.T) {
	store := newMapStore()
	store.failSet = true
	p := NewPersistedCache(store, logger.NewNop())

	p.Set("k", "v", time.Minute)
	if _, ok := p.Get("k"); ok {
		t.Fatalf("expected miss after failed set")
	}
}

func TestPersistedCache_CorruptEntryIsMiss(t *testing.T) {
	store := newMapStore()
	store.data[DefaultPersistedPrefix+"k"] = "{not json"
	p := NewPersistedCache(store, logger.NewNop())

	if _, ok := p.Get("k"); ok {
		t.Fatalf("expected miss for corrupt entry")
	}
}

func TestPersistedCache_ClearKeepsForeignKeys(t *testing.T) {
	store := newMapStore()
	store.data["other"] = "keep"
	p := NewPersistedCache(store, logger.NewNop(), WithPrefix("test:"))

	p.Set("a", 1, time.Minute)
	p.Set("b", 2, time.Minute)
	p.Clear()

	keys, _ := store.Keys()
	if len(keys) != 1 || keys[0] != "other" {
		t.Fatalf("keys after clear = %v", keys)
	}
}
