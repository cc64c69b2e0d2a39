// Package cart добавляет товары в корзину с присвоением сквозного orderNumber.
package cart

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/sequence"
)

// Service создаёт позиции корзины.
type Service struct {
	products  domain.DocumentStore
	allocator *sequence.Allocator
	identity  domain.IdentityProvider
	logger    *log.Entry
	producer  *kafka.Producer
}

// NewService создаёт сервис корзины. Номера позиций выдаёт allocator в коллекции Carts.
func NewService(products domain.DocumentStore, allocator *sequence.Allocator, identity domain.IdentityProvider, logger *log.Entry, producer *kafka.Producer) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &Service{
		products:  products,
		allocator: allocator,
		identity:  identity,
		logger:    logger,
		producer:  producer,
	}
}

// AddToCart копирует текущий снимок товара в корзину пользователя из ctx.
// Товар ищется по полю id, которое появляется только после связывания изображения,
// поэтому запись-сирота в корзину не попадает.
func (s *Service) AddToCart(ctx context.Context, productID string) (domain.CartItem, error) {
	if productID == "" {
		return domain.CartItem{}, domain.ErrProductIDRequired
	}

	owner, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return domain.CartItem{}, err
	}
	if owner == "" {
		return domain.CartItem{}, domain.ErrNotAuthenticated
	}

	ctx = context.WithoutCancel(ctx)
	logger := s.logger.WithFields(log.Fields{
		"product_id": productID,
		"owner":      owner,
	})

	records, err := s.products.Find(ctx, domain.CollectionProducts, domain.Where(domain.FieldID, productID))
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("load product %s: %w", productID, err)
	}
	if len(records) == 0 {
		return domain.CartItem{}, domain.NewCatalogError(domain.ErrProductNotFound, domain.SagaStepLoadProduct, productID, nil)
	}

	item := domain.NewCartItem(domain.ProductFromRecord(records[0]), owner)
	recordID, number, err := s.allocator.Assign(ctx, domain.CollectionCarts, domain.FieldOrderNumber, item.Fields())
	if err != nil {
		logger.WithError(err).Warn("Failed to add product to cart")
		return domain.CartItem{}, err
	}
	item.RecordID = recordID
	item.OrderNumber = number

	logger.WithField("order_number", number).Info("Product added to cart")
	s.publish(item)
	return item, nil
}

func (s *Service) publish(item domain.CartItem) {
	if s.producer == nil {
		return
	}
	event := kafka.NewCartEvent(kafka.EventTypeCartItemAdded, item.RecordID, item.ID, item.Owner, item.OrderNumber)
	if err := s.producer.Publish(event); err != nil {
		s.logger.WithError(err).WithField("record_id", item.RecordID).Warn("failed to publish cart event to kafka")
	}
}
