// Package mirror поддерживает локальную копию каталога по потоку полных снимков из document store.
package mirror

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Mirror принадлежит одному подписчику. Каждое событие подписки полностью заменяет снимок,
// читатель Updates всегда получает последний снимок, а не очередь устаревших.
type Mirror struct {
	sub     domain.Subscription
	cancel  context.CancelFunc
	updates chan domain.CatalogSnapshot
	done    chan struct{}
	logger  *log.Entry
	metrics *metrics.CatalogMetrics
	now     func() time.Time

	mu           sync.RWMutex
	latest       domain.CatalogSnapshot
	hasLatest    bool
	err          error
	unsubscribed bool

	closeOnce sync.Once
}

// Option настраивает Mirror.
type Option func(*Mirror)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(cm *metrics.CatalogMetrics) Option {
	return func(m *Mirror) {
		m.metrics = cm
	}
}

// WithClock подменяет источник времени для ReceivedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Mirror) {
		if now != nil {
			m.now = now
		}
	}
}

// Subscribe открывает подписку на коллекцию товаров. Каждый вызов создаёт независимое зеркало.
// Зеркало пусто, пока не придёт первое событие.
func Subscribe(ctx context.Context, store domain.DocumentStore, opts ...Option) (*Mirror, error) {
	m := &Mirror{
		updates: make(chan domain.CatalogSnapshot, 1),
		done:    make(chan struct{}),
		logger:  log.New().WithField("component", "catalog-mirror"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := store.Subscribe(subCtx, domain.CollectionProducts)
	if err != nil {
		cancel()
		return nil, domain.NewCatalogError(domain.ErrSubscription, "", "", err)
	}
	m.sub = sub
	m.cancel = cancel

	m.metrics.RecordMirrorSubscribed()
	go m.run(subCtx)
	return m, nil
}

// Updates возвращает канал снимков; он закрывается после Unsubscribe или терминальной ошибки.
func (m *Mirror) Updates() <-chan domain.CatalogSnapshot { return m.updates }

// Latest возвращает последний снимок; false до первого события.
func (m *Mirror) Latest() (domain.CatalogSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.hasLatest
}

// Done закрывается, когда зеркало перестало получать события.
func (m *Mirror) Done() <-chan struct{} { return m.done }

// Err возвращает терминальную ошибку подписки (ErrSubscription) или nil.
func (m *Mirror) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Unsubscribe освобождает поток и дожидается остановки; повторный вызов безопасен.
func (m *Mirror) Unsubscribe() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.unsubscribed = true
		m.mu.Unlock()

		m.cancel()
		m.sub.Close()
	})
	<-m.done
}

func (m *Mirror) run(ctx context.Context) {
	defer func() {
		m.sub.Close()
		m.cancel()
		m.metrics.RecordMirrorUnsubscribed()
		close(m.updates)
		close(m.done)
	}()

	var version uint64
	for event := range m.sub.Events() {
		if event.Err != nil {
			m.fail(event.Err)
			return
		}

		version++
		snapshot := domain.SnapshotFromRecords(event.Records, version, m.now())

		m.mu.Lock()
		m.latest = snapshot
		m.hasLatest = true
		m.mu.Unlock()

		m.metrics.RecordMirrorSnapshot(snapshot.Len())
		m.publish(snapshot)
	}

	m.mu.RLock()
	unsubscribed := m.unsubscribed
	m.mu.RUnlock()
	if !unsubscribed && ctx.Err() == nil {
		m.fail(domain.ErrSubscriptionClosed)
	}
}

// publish заменяет непрочитанный снимок новым. Отправитель единственный, поэтому вторая отправка не блокируется.
func (m *Mirror) publish(snapshot domain.CatalogSnapshot) {
	select {
	case <-m.updates:
	default:
	}
	select {
	case m.updates <- snapshot:
	default:
	}
}

func (m *Mirror) fail(cause error) {
	err := domain.NewCatalogError(domain.ErrSubscription, "", "", cause)
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.logger.WithError(cause).Warn("Catalog subscription terminated")
}
