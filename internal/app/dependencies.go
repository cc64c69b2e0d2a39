package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/orphan"
	"github.com/vladislavdragonenkov/storefront/internal/service/sequence"
)

// Dependencies содержит все сервисы приложения поверх выбранных хранилищ.
type Dependencies struct {
	Documents domain.DocumentStore
	Objects   domain.ObjectStore
	Metrics   *metrics.CatalogMetrics
	Catalog   *catalog.Service
	Cart      *cart.Service
	Allocator *sequence.Allocator
	// Sweeper равен nil, если очистка сирот отключена.
	Sweeper *orphan.Sweeper
	Logger  *log.Entry
}

// NewDependencies собирает сервисы по конфигурации. producer и cm могут быть nil.
func NewDependencies(
	cfg Config,
	documents domain.DocumentStore,
	objects domain.ObjectStore,
	producer *kafka.Producer,
	cm *metrics.CatalogMetrics,
	logger *log.Entry,
) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	compensation, err := catalog.ParseCompensationMode(cfg.SagaCompensation)
	if err != nil {
		return nil, err
	}
	mode, err := sequence.ParseMode(cfg.AllocatorMode)
	if err != nil {
		return nil, err
	}

	allocator := sequence.NewAllocator(documents,
		sequence.WithMode(mode),
		sequence.WithRetry(cfg.RetryConfig()),
		sequence.WithLogger(logger.WithField("layer", "sequence")),
		sequence.WithMetrics(cm),
	)

	catalogSvc := catalog.NewService(documents, objects,
		catalog.WithCompensation(compensation),
		catalog.WithLogger(logger.WithField("layer", "catalog")),
		catalog.WithMetrics(cm),
		catalog.WithKafkaProducer(producer),
	)

	deps := &Dependencies{
		Documents: documents,
		Objects:   objects,
		Metrics:   cm,
		Catalog:   catalogSvc,
		Cart:      cart.NewService(documents, allocator, identity.ContextProvider{}, logger.WithField("layer", "cart"), producer),
		Allocator: allocator,
		Logger:    logger,
	}

	if cfg.OrphanSweepInterval > 0 {
		deps.Sweeper = orphan.NewSweeper(documents, catalogSvc,
			orphan.WithLogger(logger.WithField("layer", "orphan-sweeper")),
			orphan.WithMetrics(cm),
			orphan.WithInterval(cfg.OrphanSweepInterval),
			orphan.WithGrace(cfg.OrphanGrace),
			orphan.WithBatchSize(cfg.OrphanBatchSize),
		)
	}

	return deps, nil
}
