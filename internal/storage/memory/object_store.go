package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultObjectBaseURL — базовый адрес, из которого строятся URL объектов in-memory хранилища.
const DefaultObjectBaseURL = "https://storage.local"

// objectStoreInMemory — in-memory реализация ObjectStore.
type objectStoreInMemory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

// NewObjectStore создаёт in-memory хранилище объектов; пустой baseURL заменяется на DefaultObjectBaseURL.
func NewObjectStore(baseURL string) *objectStoreInMemory {
	if baseURL == "" {
		baseURL = DefaultObjectBaseURL
	}
	return &objectStoreInMemory{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

// Put сохраняет копию данных; повторная загрузка по тому же ключу перезаписывает объект.
func (s *objectStoreInMemory) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	own := make([]byte, len(data))
	copy(own, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = own
	return nil
}

// ResolveURL возвращает URL загруженного объекта или ErrObjectNotFound.
func (s *objectStoreInMemory) ResolveURL(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
	}
	return s.baseURL + "/" + key, nil
}

// Delete удаляет объект; отсутствие объекта ошибкой не считается.
func (s *objectStoreInMemory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get возвращает копию объекта (используется в тестах).
func (s *objectStoreInMemory) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Len возвращает количество сохранённых объектов (используется в тестах).
func (s *objectStoreInMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ domain.ObjectStore = (*objectStoreInMemory)(nil)
