package synchronizer

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrNotExist represents a storage key that holds no value
	ErrNotExist = errors.New("storage key does not exist")
)

// Storage represents a persistent key/value store of JSON documents.
// Set always overwrites the whole value.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
}

// NewMemoryStorage returns an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string][]byte),
		m:    &sync.Mutex{},
	}
}

// MemoryStorage represents a storage kept in process memory
type MemoryStorage struct {
	data map[string][]byte
	m    *sync.Mutex
}

// Get returns a copy of the value stored under key
func (s *MemoryStorage) Get(key string) ([]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of data under key
func (s *MemoryStorage) Set(key string, data []byte) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}
