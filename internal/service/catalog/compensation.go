package catalog

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// failed фиксирует отказ шага и, в режиме rollback, выполняет компенсации.
// Основной вид ошибки сохраняется; отказ компенсации присоединяется как ErrCompensationFailed.
func (s *Service) failed(ctx context.Context, logger *log.Entry, title string, err error) error {
	var catalogErr *domain.CatalogError
	if !errors.As(err, &catalogErr) {
		catalogErr = domain.NewCatalogError(domain.ErrRecordCreateFailed, "", "", err)
	}

	kind := domain.ErrorKind(catalogErr)
	s.metrics.RecordSagaFailed(kind)
	logger.WithFields(log.Fields{
		"step":  catalogErr.Step,
		"kind":  kind,
		"error": catalogErr.Err,
	}).Warn("Catalog saga step failed")

	if catalogErr.ProductID == "" {
		s.publish(kafka.EventTypeSagaFailed, "", title, map[string]any{
			"step": string(catalogErr.Step),
			"kind": kind,
		})
		return catalogErr
	}

	if s.mode != CompensationRollback {
		s.metrics.RecordOrphanLeft()
		logger.WithField("step", catalogErr.Step).Warn("Product record left without image")
		s.publish(kafka.EventTypeProductOrphaned, catalogErr.ProductID, title, map[string]any{
			"step": string(catalogErr.Step),
			"kind": kind,
		})
		return catalogErr
	}

	if compErr := s.compensate(ctx, logger, catalogErr.ProductID, catalogErr.Step); compErr != nil {
		s.metrics.RecordOrphanLeft()
		return errors.Join(catalogErr, compErr)
	}

	catalogErr.Compensated = true
	s.publish(kafka.EventTypeSagaCompensated, catalogErr.ProductID, title, map[string]any{
		"step": string(catalogErr.Step),
		"kind": kind,
	})
	return catalogErr
}

// compensate откатывает шаги в обратном порядке: сначала объект (если загрузка прошла), затем запись.
func (s *Service) compensate(ctx context.Context, logger *log.Entry, productID string, failedStep domain.SagaStep) error {
	var errs []error

	if failedStep == domain.SagaStepResolveURL || failedStep == domain.SagaStepLinkImage {
		err := s.objects.Delete(ctx, domain.ProductImageKey(productID))
		s.metrics.RecordCompensation(string(domain.SagaStepDeleteAsset), err)
		if err != nil {
			logger.WithError(err).Error("Failed to delete uploaded image during compensation")
			errs = append(errs, domain.NewCatalogError(domain.ErrCompensationFailed, domain.SagaStepDeleteAsset, productID, err))
		}
	}

	err := s.products.Delete(ctx, domain.CollectionProducts, productID)
	s.metrics.RecordCompensation(string(domain.SagaStepDeleteRecord), err)
	if err != nil {
		logger.WithError(err).Error("Failed to delete product record during compensation")
		errs = append(errs, domain.NewCatalogError(domain.ErrCompensationFailed, domain.SagaStepDeleteRecord, productID, err))
	}

	if len(errs) == 0 {
		logger.WithField("step", failedStep).Info("Catalog saga compensated")
	}
	return errors.Join(errs...)
}
