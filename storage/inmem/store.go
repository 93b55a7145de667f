package inmem

import (
	"context"
	"sync"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

type store struct {
	table map[string]string
	mutex sync.RWMutex
}

var _ storage.Store = (*store)(nil)

func NewStore() storage.Store {
	return &store{table: make(map[string]string)}
}

func (s *store) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if v, ok := s.table[key]; ok {
		return v, nil
	}
	return "", storage.ErrNotFound
}

func (s *store) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.table[key] = value
	return nil
}

func (s *store) Delete(_ context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, k := range keys {
		delete(s.table, k)
	}
	return nil
}
