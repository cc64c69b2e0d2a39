// Package mock содержит конфигурируемые обёртки над портами хранилищ для тестов:
// они делегируют во вложенную реализацию, считают вызовы и по запросу возвращают ошибки.
package mock

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Операции, по которым ведётся учёт вызовов.
const (
	OpFind      = "find"
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSubscribe = "subscribe"
	OpPut       = "put"
	OpResolve   = "resolve"
)

// DocumentStore — заглушка DocumentStore поверх реального хранилища.
type DocumentStore struct {
	inner domain.DocumentStore

	// BeforeFind вызывается перед каждым Find (например, чтобы выровнять конкурентные чтения).
	BeforeFind func(collection string, q domain.Query)

	mu    sync.Mutex
	errs  map[string]error
	calls map[string]int
}

// NewDocumentStore оборачивает inner; по умолчанию все вызовы успешны.
func NewDocumentStore(inner domain.DocumentStore) *DocumentStore {
	return &DocumentStore{
		inner: inner,
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// Fail настраивает ошибку для операции; nil снимает её.
func (m *DocumentStore) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// Calls возвращает число вызовов операции.
func (m *DocumentStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *DocumentStore) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	return m.errs[op]
}

func (m *DocumentStore) Find(ctx context.Context, collection string, q domain.Query) ([]domain.Record, error) {
	if err := m.record(OpFind); err != nil {
		return nil, err
	}
	if m.BeforeFind != nil {
		m.BeforeFind(collection, q)
	}
	return m.inner.Find(ctx, collection, q)
}

func (m *DocumentStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := m.record(OpInsert); err != nil {
		return "", err
	}
	return m.inner.Insert(ctx, collection, fields)
}

func (m *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := m.record(OpUpdate); err != nil {
		return err
	}
	return m.inner.Update(ctx, collection, id, fields)
}

func (m *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := m.record(OpDelete); err != nil {
		return err
	}
	return m.inner.Delete(ctx, collection, id)
}

func (m *DocumentStore) Subscribe(ctx context.Context, collection string) (domain.Subscription, error) {
	if err := m.record(OpSubscribe); err != nil {
		return nil, err
	}
	return m.inner.Subscribe(ctx, collection)
}

var _ domain.DocumentStore = (*DocumentStore)(nil)
