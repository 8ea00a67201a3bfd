package livestate

import (
	"sync"
)

type memoryStore struct {
	values map[string][]byte
	mu     sync.Mutex
}

func NewMemory() *memoryStore {
	return &memoryStore{values: map[string][]byte{}}
}

func (m *memoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, found := m.values[key]
	if !found {
		return nil, false, nil
	}

	return append([]byte{}, value...), true, nil
}

func (m *memoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte{}, value...)

	return nil
}
