// Package sequence выдаёт сквозные номера (например, orderNumber позиций корзины)
// как max(field)+1 по коллекции document store.
package sequence

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/keylock"
)

// Mode определяет поведение аллокатора при конкурентных вызовах.
type Mode string

const (
	// ModeOptimistic читает максимум и вставляет без координации:
	// два одновременных вызова могут получить одинаковый номер.
	ModeOptimistic Mode = "optimistic"
	// ModeSerialized удерживает блокировку коллекции на время чтения и вставки в Assign.
	ModeSerialized Mode = "serialized"
)

// ParseMode разбирает режим из конфигурации; пустая строка — ModeOptimistic.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeOptimistic:
		return ModeOptimistic, nil
	case ModeSerialized:
		return ModeSerialized, nil
	default:
		return "", fmt.Errorf("unknown allocator mode %q", raw)
	}
}

// Allocator вычисляет следующий номер последовательности по текущему максимуму.
type Allocator struct {
	store   domain.DocumentStore
	mode    Mode
	retry   RetryConfig
	locks   *keylock.Locker
	logger  *log.Entry
	metrics *metrics.CatalogMetrics
}

// Option настраивает Allocator.
type Option func(*Allocator)

// WithMode задаёт режим конкурентного поведения.
func WithMode(mode Mode) Option {
	return func(a *Allocator) {
		if mode != "" {
			a.mode = mode
		}
	}
}

// WithRetry включает повторы чтения максимума.
func WithRetry(cfg RetryConfig) Option {
	return func(a *Allocator) {
		a.retry = cfg
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CatalogMetrics) Option {
	return func(a *Allocator) {
		a.metrics = m
	}
}

// NewAllocator создаёт аллокатор поверх document store.
func NewAllocator(store domain.DocumentStore, opts ...Option) *Allocator {
	a := &Allocator{
		store:  store,
		mode:   ModeOptimistic,
		retry:  NoRetry(),
		locks:  keylock.New(),
		logger: log.New().WithField("component", "sequence-allocator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode возвращает текущий режим.
func (a *Allocator) Mode() Mode { return a.mode }

// Allocate возвращает max(field)+1 по коллекции или 1, если записей с этим полем нет.
// Сам по себе вызов ничего не резервирует: корректность гарантирована только при последовательных вызовах.
func (a *Allocator) Allocate(ctx context.Context, collection, field string) (int64, error) {
	next, err := a.allocate(ctx, collection, field)
	a.metrics.RecordAllocation(string(a.mode), err)
	return next, err
}

func (a *Allocator) allocate(ctx context.Context, collection, field string) (int64, error) {
	query := domain.Query{OrderBy: field, Descending: true, Limit: 1}

	var next int64
	err := executeWithRetry(ctx, a.retry, a.logger, "allocate", func() error {
		records, err := a.store.Find(ctx, collection, query)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			next = 1
			return nil
		}
		current, ok := domain.AsInt64(records[0].Fields[field])
		if !ok {
			return permanent(fmt.Errorf("record %s has non-numeric %s %v", records[0].ID, field, records[0].Fields[field]))
		}
		if current == math.MaxInt64 {
			return permanent(fmt.Errorf("record %s: %s sequence is exhausted", records[0].ID, field))
		}
		next = current + 1
		return nil
	})
	if err != nil {
		a.logger.WithFields(log.Fields{
			"collection": collection,
			"field":      field,
			"error":      err,
		}).Warn("Sequence allocation failed")
		return 0, domain.NewCatalogError(domain.ErrAllocationQueryFailed, domain.SagaStepAllocate, "", err)
	}
	return next, nil
}

// Assign выделяет номер и вставляет fields с этим номером в поле field.
// В ModeSerialized чтение максимума и вставка выполняются под блокировкой коллекции,
// поэтому конкурентные вызовы в пределах процесса получают уникальные номера.
func (a *Allocator) Assign(ctx context.Context, collection, field string, fields map[string]any) (string, int64, error) {
	if a.mode == ModeSerialized {
		unlock := a.locks.Lock(collection)
		defer unlock()
	}

	next, err := a.Allocate(ctx, collection, field)
	if err != nil {
		return "", 0, err
	}

	doc := domain.CloneFields(fields)
	doc[field] = next
	id, err := a.store.Insert(ctx, collection, doc)
	if err != nil {
		a.logger.WithFields(log.Fields{
			"collection": collection,
			"field":      field,
			"number":     next,
			"error":      err,
		}).Warn("Failed to insert sequenced record")
		return "", 0, domain.NewCatalogError(domain.ErrRecordCreateFailed, domain.SagaStepCreateRecord, "", err)
	}

	a.logger.WithFields(log.Fields{
		"collection": collection,
		"record_id":  id,
		field:        next,
	}).Debug("Sequence number assigned")
	return id, next, nil
}
