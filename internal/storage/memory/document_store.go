package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// storedRecord хранит документ вместе с порядковым номером вставки.
type storedRecord struct {
	seq    uint64
	fields map[string]any
}

// documentStoreInMemory — in-memory реализация DocumentStore для локальной разработки и тестов.
// Каждая мутация рассылает подписчикам полный текущий набор записей коллекции.
type documentStoreInMemory struct {
	mu          sync.RWMutex
	seq         uint64
	collections map[string]map[string]*storedRecord
	subscribers map[string]map[*subscription]struct{}
}

// NewDocumentStore возвращает in-memory хранилище документов.
func NewDocumentStore() *documentStoreInMemory {
	return &documentStoreInMemory{
		collections: make(map[string]map[string]*storedRecord),
		subscribers: make(map[string]map[*subscription]struct{}),
	}
}

// Find возвращает копии записей, удовлетворяющих запросу, в порядке вставки (если не задан OrderBy).
func (s *documentStoreInMemory) Find(ctx context.Context, collection string, q domain.Query) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return q.Apply(s.snapshotLocked(collection)), nil
}

// Insert сохраняет копию полей под новым uuid.
func (s *documentStoreInMemory) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*storedRecord)
		s.collections[collection] = docs
	}
	s.seq++
	docs[id] = &storedRecord{seq: s.seq, fields: domain.CloneFields(fields)}
	s.broadcastLocked(collection)
	return id, nil
}

// Update сливает поля с существующей записью.
func (s *documentStoreInMemory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	merged := domain.CloneFields(doc.fields)
	for k, v := range fields {
		merged[k] = v
	}
	doc.fields = merged
	s.broadcastLocked(collection)
	return nil
}

// Delete удаляет запись; отсутствие записи ошибкой не считается, как и в document store.
func (s *documentStoreInMemory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return nil
	}
	delete(s.collections[collection], id)
	s.broadcastLocked(collection)
	return nil
}

// Subscribe регистрирует подписчика и сразу отдаёт ему текущий набор записей.
// Подписка закрывается по Close или отмене ctx.
func (s *documentStoreInMemory) Subscribe(ctx context.Context, collection string) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		events: make(chan domain.SnapshotEvent, 1),
		done:   make(chan struct{}),
	}
	sub.detach = func() { s.unsubscribe(collection, sub) }

	s.mu.Lock()
	subs, ok := s.subscribers[collection]
	if !ok {
		subs = make(map[*subscription]struct{})
		s.subscribers[collection] = subs
	}
	subs[sub] = struct{}{}
	sub.deliver(domain.SnapshotEvent{Records: s.snapshotLocked(collection)})
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// FailSubscribers завершает все подписки коллекции терминальной ошибкой (используется в тестах).
func (s *documentStoreInMemory) FailSubscribers(collection string, err error) {
	s.mu.Lock()
	subs := s.subscribers[collection]
	delete(s.subscribers, collection)
	s.mu.Unlock()

	for sub := range subs {
		sub.fail(err)
	}
}

// SubscriberCount возвращает число активных подписок коллекции (используется в тестах).
func (s *documentStoreInMemory) SubscriberCount(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[collection])
}

func (s *documentStoreInMemory) unsubscribe(collection string, sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers[collection], sub)
}

// snapshotLocked возвращает копии всех записей коллекции в порядке вставки.
func (s *documentStoreInMemory) snapshotLocked(collection string) []domain.Record {
	docs := s.collections[collection]
	records := make([]domain.Record, 0, len(docs))
	for id, doc := range docs {
		records = append(records, domain.Record{ID: id, Fields: domain.CloneFields(doc.fields)})
	}
	sortBySeq(records, docs)
	return records
}

func (s *documentStoreInMemory) broadcastLocked(collection string) {
	subs := s.subscribers[collection]
	if len(subs) == 0 {
		return
	}
	records := s.snapshotLocked(collection)
	for sub := range subs {
		event := domain.SnapshotEvent{Records: make([]domain.Record, len(records))}
		for i, rec := range records {
			event.Records[i] = rec.Clone()
		}
		sub.deliver(event)
	}
}

var _ domain.DocumentStore = (*documentStoreInMemory)(nil)
