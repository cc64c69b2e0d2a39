package mock

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ObjectStore — заглушка ObjectStore поверх реального хранилища.
type ObjectStore struct {
	inner domain.ObjectStore

	mu    sync.Mutex
	errs  map[string]error
	calls map[string]int
}

// NewObjectStore оборачивает inner; по умолчанию все вызовы успешны.
func NewObjectStore(inner domain.ObjectStore) *ObjectStore {
	return &ObjectStore{
		inner: inner,
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// Fail настраивает ошибку для операции; nil снимает её.
func (m *ObjectStore) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// Calls возвращает число вызовов операции.
func (m *ObjectStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *ObjectStore) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	return m.errs[op]
}

func (m *ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if err := m.record(OpPut); err != nil {
		return err
	}
	return m.inner.Put(ctx, key, data)
}

func (m *ObjectStore) ResolveURL(ctx context.Context, key string) (string, error) {
	if err := m.record(OpResolve); err != nil {
		return "", err
	}
	return m.inner.ResolveURL(ctx, key)
}

func (m *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := m.record(OpDelete); err != nil {
		return err
	}
	return m.inner.Delete(ctx, key)
}

var _ domain.ObjectStore = (*ObjectStore)(nil)
