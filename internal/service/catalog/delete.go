package catalog

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// DeleteProduct удаляет изображение товара, затем его запись.
// Пока изображение не удалено, запись остаётся: по ней повторный вызов или sweeper
// найдут объект снова. Отсутствующий объект ошибкой не считается.
func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	if productID == "" {
		return domain.ErrProductIDRequired
	}
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.WithField("product_id", productID)

	if err := s.objects.Delete(ctx, domain.ProductImageKey(productID)); err != nil {
		logger.WithError(err).Warn("Failed to delete product image, record kept")
		return fmt.Errorf("delete image of product %s: %w", productID, err)
	}

	if err := s.products.Delete(ctx, domain.CollectionProducts, productID); err != nil {
		logger.WithError(err).Warn("Failed to delete product record")
		return fmt.Errorf("delete product %s: %w", productID, err)
	}

	logger.Info("Product deleted")
	s.publish(kafka.EventTypeProductDeleted, productID, "", nil)
	return nil
}
