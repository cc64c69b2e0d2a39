package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies — адаптеры хранилищ, выбранные драйвером.
type runtimeDependencies struct {
	documents      domain.DocumentStore
	objects        domain.ObjectStore
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory document and object stores")
		return &runtimeDependencies{
			documents: memory.NewDocumentStore(),
			objects:   memory.NewObjectStore(cfg.ObjectBaseURL),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithMaxOpenConns(cfg.PostgresMaxConns))
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		baseURL := cfg.ObjectBaseURL
		if baseURL == "" {
			baseURL = memory.DefaultObjectBaseURL
		}

		return &runtimeDependencies{
			documents: postgres.NewDocumentStore(store, logger.WithField("storage", "postgres")),
			objects:   postgres.NewObjectStore(store, baseURL),
			storageChecker: healthcheck.NewSimpleChecker("document-store", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}
