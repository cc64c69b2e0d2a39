// Package orphan удаляет записи товаров, оставшиеся без изображения после сбоя саги.
package orphan

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepGrace     = 15 * time.Minute
	defaultSweepBatchSize = 100
)

// ProductDeleter удаляет товар вместе с изображением (catalog.Service).
type ProductDeleter interface {
	DeleteProduct(ctx context.Context, productID string) error
}

// SweepOptions задает параметры воркера очистки.
type SweepOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.CatalogMetrics
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

// SweepOption настраивает Sweeper.
type SweepOption func(*SweepOptions)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) SweepOption {
	return func(opts *SweepOptions) {
		opts.Logger = logger
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CatalogMetrics) SweepOption {
	return func(opts *SweepOptions) {
		opts.Metrics = m
	}
}

// WithInterval задает интервал между циклами очистки.
func WithInterval(interval time.Duration) SweepOption {
	return func(opts *SweepOptions) {
		opts.Interval = interval
	}
}

// WithGrace задает минимальный возраст записи без изображения.
// Должен быть заметно больше длительности саги, иначе будут удалены записи незавершённых саг.
func WithGrace(grace time.Duration) SweepOption {
	return func(opts *SweepOptions) {
		opts.Grace = grace
	}
}

// WithBatchSize ограничивает число удалений за один цикл.
func WithBatchSize(batchSize int) SweepOption {
	return func(opts *SweepOptions) {
		opts.BatchSize = batchSize
	}
}

// Sweeper периодически ищет записи с пустым image старше grace и удаляет их.
type Sweeper struct {
	store     domain.DocumentStore
	deleter   ProductDeleter
	logger    *log.Entry
	metrics   *metrics.CatalogMetrics
	interval  time.Duration
	grace     time.Duration
	batchSize int
}

// NewSweeper создает воркер очистки.
func NewSweeper(store domain.DocumentStore, deleter ProductDeleter, options ...SweepOption) *Sweeper {
	opts := SweepOptions{
		Interval:  defaultSweepInterval,
		Grace:     defaultSweepGrace,
		BatchSize: defaultSweepBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orphan-sweeper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultSweepGrace
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}

	return &Sweeper{
		store:     store,
		deleter:   deleter,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		grace:     opts.Grace,
		batchSize: opts.BatchSize,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.store == nil || s.deleter == nil {
		s.logger.Warn("orphan sweeper is disabled: store or deleter is nil")
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.Sweep(ctx, time.Now().UTC())
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	s.metrics.RecordSweep(deleted, err)
	if err != nil {
		s.logger.WithError(err).WithField("deleted", deleted).Warn("orphan sweep failed")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("orphan sweep completed")
	}
}

// Sweep удаляет не более batchSize записей без изображения, созданных раньше now-grace.
// Записи без createdAt не трогаются: их возраст неизвестен.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	records, err := s.store.Find(ctx, domain.CollectionProducts, domain.Where(domain.FieldImage, ""))
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-s.grace)
	deleted := 0
	var errs []error
	for _, rec := range records {
		if deleted >= s.batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		product := domain.ProductFromRecord(rec)
		if product.HasImage() || product.CreatedAt.IsZero() || product.CreatedAt.After(cutoff) {
			continue
		}

		if err := s.deleter.DeleteProduct(ctx, product.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
		s.logger.WithFields(log.Fields{
			"product_id": product.ID,
			"title":      product.Title,
			"created_at": product.CreatedAt,
		}).Info("orphaned product removed")
	}

	return deleted, errors.Join(errs...)
}
