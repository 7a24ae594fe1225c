package kvstore

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/saiset-co/catalog-service/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

type MemoryStore struct {
	data  map[string]string
	mu    sync.RWMutex
	state atomic.Value
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{data: make(map[string]string)}
	s.state.Store(StateStopped)
	return s
}

func (s *MemoryStore) Type() string {
	return "memory"
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServiceIsRunning
	}
	return nil
}

func (s *MemoryStore) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServiceIsNotRunning
	}
	return nil
}

func (s *MemoryStore) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}
