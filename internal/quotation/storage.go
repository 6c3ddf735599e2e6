package quotation

import (
	"context"
	"sync"
)

// Storage persists serialized quotation documents under a key. Load returns
// nil data and a nil error when nothing is stored.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, document []byte) error
	Delete(ctx context.Context, key string) error
}

type namedStorage interface {
	Name() string
}

func storageName(s Storage) string {
	if n, ok := s.(namedStorage); ok {
		return n.Name()
	}
	return "custom"
}

// MemoryStorage keeps documents in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: map[string][]byte{}}
}

func (s *MemoryStorage) Name() string { return "memory" }

func (s *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (s *MemoryStorage) Save(_ context.Context, key string, document []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), document...)
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}
