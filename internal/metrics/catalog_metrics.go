package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты, используемые в label'ах result.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// CatalogMetrics содержит метрики саги каталога, аллокатора, зеркала и очистки сирот.
// Все методы безопасно вызывать на nil-получателе: метрики в сервисах опциональны.
type CatalogMetrics struct {
	// Сага создания товара
	sagaStarted   prometheus.Counter
	sagaCompleted prometheus.Counter
	sagaFailed    *prometheus.CounterVec
	compensations *prometheus.CounterVec
	orphansLeft   prometheus.Counter
	sagaDuration  prometheus.Histogram
	stepDuration  *prometheus.HistogramVec
	activeSagas   prometheus.Gauge

	// Аллокатор последовательностей
	allocations *prometheus.CounterVec

	// Зеркало каталога
	mirrorSnapshots     prometheus.Counter
	mirrorProducts      prometheus.Gauge
	mirrorSubscriptions prometheus.Gauge

	// Очистка осиротевших записей
	sweepRuns    *prometheus.CounterVec
	sweepDeleted prometheus.Counter
}

// NewCatalogMetrics создаёт метрики в DefaultRegisterer.
func NewCatalogMetrics() *CatalogMetrics {
	return NewCatalogMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCatalogMetricsWithRegisterer создаёт метрики в указанном реестре (nil — DefaultRegisterer).
func NewCatalogMetricsWithRegisterer(registerer prometheus.Registerer) *CatalogMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CatalogMetrics{
		sagaStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_saga_started_total",
			Help: "Total number of product creation sagas started",
		}),
		sagaCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_saga_completed_total",
			Help: "Total number of product creation sagas completed successfully",
		}),
		sagaFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_saga_failed_total",
			Help: "Total number of product creation sagas failed, by error kind",
		}, []string{"kind"}),
		compensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_saga_compensations_total",
			Help: "Total number of compensating actions executed",
		}, []string{"step", "result"}),
		orphansLeft: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_orphans_left_total",
			Help: "Total number of product records left without an image",
		}),
		sagaDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_catalog_saga_duration_seconds",
			Help:    "Duration of product creation sagas in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_catalog_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		activeSagas: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_catalog_active_sagas",
			Help: "Number of product creation sagas in flight",
		}),
		allocations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_sequence_allocations_total",
			Help: "Total number of sequence number allocations",
		}, []string{"mode", "result"}),
		mirrorSnapshots: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_mirror_snapshots_total",
			Help: "Total number of catalog snapshots received by mirrors",
		}),
		mirrorProducts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_mirror_products",
			Help: "Number of products in the most recent catalog snapshot",
		}),
		mirrorSubscriptions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_mirror_active_subscriptions",
			Help: "Number of open catalog mirror subscriptions",
		}),
		sweepRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_orphan_sweep_runs_total",
			Help: "Total number of orphan sweep iterations",
		}, []string{"result"}),
		sweepDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orphan_sweep_deleted_total",
			Help: "Total number of orphaned products removed by the sweeper",
		}),
	}
}

// RecordSagaStarted увеличивает счётчик запущенных саг и число активных.
func (m *CatalogMetrics) RecordSagaStarted() {
	if m == nil {
		return
	}
	m.sagaStarted.Inc()
	m.activeSagas.Inc()
}

// RecordSagaFinished уменьшает число активных саг и фиксирует длительность.
func (m *CatalogMetrics) RecordSagaFinished(duration time.Duration) {
	if m == nil {
		return
	}
	m.activeSagas.Dec()
	m.sagaDuration.Observe(duration.Seconds())
}

// RecordSagaCompleted увеличивает счётчик успешных саг.
func (m *CatalogMetrics) RecordSagaCompleted() {
	if m == nil {
		return
	}
	m.sagaCompleted.Inc()
}

// RecordSagaFailed увеличивает счётчик неудачных саг с видом ошибки.
func (m *CatalogMetrics) RecordSagaFailed(kind string) {
	if m == nil {
		return
	}
	m.sagaFailed.WithLabelValues(kind).Inc()
}

// RecordOrphanLeft фиксирует запись, оставленную без изображения.
func (m *CatalogMetrics) RecordOrphanLeft() {
	if m == nil {
		return
	}
	m.orphansLeft.Inc()
}

// RecordCompensation фиксирует выполнение компенсирующего шага.
func (m *CatalogMetrics) RecordCompensation(step string, err error) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(step, resultLabel(err)).Inc()
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *CatalogMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordAllocation фиксирует выдачу номера последовательности.
func (m *CatalogMetrics) RecordAllocation(mode string, err error) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(mode, resultLabel(err)).Inc()
}

// RecordMirrorSnapshot фиксирует полученный снимок каталога.
func (m *CatalogMetrics) RecordMirrorSnapshot(products int) {
	if m == nil {
		return
	}
	m.mirrorSnapshots.Inc()
	m.mirrorProducts.Set(float64(products))
}

// RecordMirrorSubscribed увеличивает число открытых подписок зеркала.
func (m *CatalogMetrics) RecordMirrorSubscribed() {
	if m == nil {
		return
	}
	m.mirrorSubscriptions.Inc()
}

// RecordMirrorUnsubscribed уменьшает число открытых подписок зеркала.
func (m *CatalogMetrics) RecordMirrorUnsubscribed() {
	if m == nil {
		return
	}
	m.mirrorSubscriptions.Dec()
}

// RecordSweep фиксирует итерацию очистки и число удалённых записей.
func (m *CatalogMetrics) RecordSweep(deleted int, err error) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(resultLabel(err)).Inc()
	if deleted > 0 {
		m.sweepDeleted.Add(float64(deleted))
	}
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
