// Package catalog реализует сагу создания товара: проверка уникальности названия,
// создание записи, загрузка изображения, получение URL и связывание.
package catalog

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/keylock"
)

// CompensationMode задаёт поведение саги при отказе шагов после создания записи.
type CompensationMode string

const (
	// CompensationNone оставляет запись без изображения и сообщает её id в ошибке.
	CompensationNone CompensationMode = "none"
	// CompensationRollback удаляет загруженный объект и созданную запись.
	// В этом режиме проверка названия и вставка сериализуются по названию.
	CompensationRollback CompensationMode = "rollback"
)

// ParseCompensationMode разбирает режим из конфигурации; пустая строка — CompensationNone.
func ParseCompensationMode(raw string) (CompensationMode, error) {
	switch CompensationMode(raw) {
	case "", CompensationNone:
		return CompensationNone, nil
	case CompensationRollback:
		return CompensationRollback, nil
	default:
		return "", fmt.Errorf("unknown compensation mode %q", raw)
	}
}

// ProductInput — входные данные создания товара. CreatedBy передаётся явно вызывающим.
type ProductInput struct {
	Title     string
	Price     float64
	Category  string
	Image     []byte
	CreatedBy string
}

// Service выполняет сагу каталога поверх document store и object store.
type Service struct {
	products domain.DocumentStore
	objects  domain.ObjectStore
	mode     CompensationMode
	titles   *keylock.Locker
	logger   *log.Entry
	metrics  *metrics.CatalogMetrics
	producer *kafka.Producer // опциональный Kafka producer для событий каталога
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithCompensation задаёт режим компенсации.
func WithCompensation(mode CompensationMode) Option {
	return func(s *Service) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CatalogMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithKafkaProducer включает публикацию событий каталога.
func WithKafkaProducer(producer *kafka.Producer) Option {
	return func(s *Service) {
		s.producer = producer
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(products domain.DocumentStore, objects domain.ObjectStore, opts ...Option) *Service {
	s := &Service{
		products: products,
		objects:  objects,
		mode:     CompensationNone,
		titles:   keylock.New(),
		logger:   log.New().WithField("component", "catalog-saga"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode возвращает режим компенсации.
func (s *Service) Mode() CompensationMode { return s.mode }

// CreateProduct выполняет шаги саги строго последовательно и возвращает id созданного товара.
// Отмена ctx вызывающим не прерывает уже начатые удалённые вызовы.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	product, err := s.CreateLinkedProduct(ctx, in)
	if err != nil {
		return "", err
	}
	return product.ID, nil
}

// CreateLinkedProduct выполняет ту же сагу, что и CreateProduct, и возвращает товар
// в состоянии после связывания: с id и URL изображения.
func (s *Service) CreateLinkedProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	title := domain.NormalizeTitle(in.Title)
	if err := validateInput(in, title); err != nil {
		return domain.Product{}, err
	}

	ctx = context.WithoutCancel(ctx)
	logger := s.logger.WithFields(log.Fields{
		"title":      title,
		"created_by": in.CreatedBy,
	})

	started := time.Now()
	s.metrics.RecordSagaStarted()
	defer func() { s.metrics.RecordSagaFinished(time.Since(started)) }()

	product, err := s.checkAndInsert(ctx, title, in)
	if err != nil {
		return domain.Product{}, s.failed(ctx, logger, title, err)
	}
	logger = logger.WithField("product_id", product.ID)

	url, err := s.attachImage(ctx, product.ID, in.Image)
	if err != nil {
		return domain.Product{}, s.failed(ctx, logger, title, err)
	}
	product.Image = url

	s.metrics.RecordSagaCompleted()
	logger.WithField("duration", time.Since(started)).Info("Product created")
	s.publish(kafka.EventTypeProductCreated, product.ID, title, map[string]any{
		"price":      in.Price,
		"created_by": in.CreatedBy,
	})
	return product, nil
}

// checkAndInsert выполняет шаги 1–2. В режиме rollback они выполняются под блокировкой названия.
func (s *Service) checkAndInsert(ctx context.Context, title string, in ProductInput) (domain.Product, error) {
	if s.mode == CompensationRollback {
		unlock := s.titles.Lock(title)
		defer unlock()
	}

	err := s.runStep(domain.SagaStepCheckTitle, func() error {
		existing, err := s.products.Find(ctx, domain.CollectionProducts, domain.Where(domain.FieldTitle, title))
		if err != nil {
			return domain.NewCatalogError(domain.ErrRecordCreateFailed, domain.SagaStepCheckTitle, "", err)
		}
		if len(existing) > 0 {
			return domain.NewCatalogError(domain.ErrDuplicateTitle, domain.SagaStepCheckTitle, "",
				fmt.Errorf("title %q is taken by %s", title, existing[0].ID))
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Title:     title,
		Price:     in.Price,
		Category:  in.Category,
		CreatedBy: in.CreatedBy,
		CreatedAt: s.now(),
	}

	err = s.runStep(domain.SagaStepCreateRecord, func() error {
		var err error
		product.ID, err = s.products.Insert(ctx, domain.CollectionProducts, product.Fields())
		if err != nil {
			return domain.NewCatalogError(domain.ErrRecordCreateFailed, domain.SagaStepCreateRecord, "", err)
		}
		return nil
	})
	return product, err
}

// attachImage выполняет шаги 3–5 и возвращает URL, записанный в товар.
func (s *Service) attachImage(ctx context.Context, id string, image []byte) (string, error) {
	key := domain.ProductImageKey(id)

	err := s.runStep(domain.SagaStepUploadAsset, func() error {
		if err := s.objects.Put(ctx, key, image); err != nil {
			return domain.NewCatalogError(domain.ErrAssetUploadFailed, domain.SagaStepUploadAsset, id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	var url string
	err = s.runStep(domain.SagaStepResolveURL, func() error {
		var err error
		url, err = s.objects.ResolveURL(ctx, key)
		if err != nil {
			return domain.NewCatalogError(domain.ErrURLResolveFailed, domain.SagaStepResolveURL, id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	err = s.runStep(domain.SagaStepLinkImage, func() error {
		fields := map[string]any{domain.FieldID: id, domain.FieldImage: url}
		if err := s.products.Update(ctx, domain.CollectionProducts, id, fields); err != nil {
			return domain.NewCatalogError(domain.ErrLinkUpdateFailed, domain.SagaStepLinkImage, id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (s *Service) runStep(step domain.SagaStep, fn func() error) error {
	started := time.Now()
	err := fn()
	s.metrics.RecordStepDuration(string(step), time.Since(started))
	return err
}

func validateInput(in ProductInput, title string) error {
	switch {
	case in.CreatedBy == "":
		return domain.ErrNotAuthenticated
	case title == "":
		return domain.ErrTitleRequired
	case len(in.Image) == 0:
		return domain.ErrImageRequired
	}
	return domain.ValidatePrice(in.Price)
}

func (s *Service) publish(eventType kafka.EventType, productID, title string, metadata map[string]any) {
	if s.producer == nil {
		return
	}

	event := kafka.NewCatalogEvent(eventType, productID, title, metadata)
	if err := s.producer.Publish(event); err != nil {
		// Kafka опциональна: ошибка публикации не влияет на результат саги
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"product_id": productID,
		}).Warn("failed to publish catalog event to kafka")
	}
}
