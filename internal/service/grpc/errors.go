package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// codeForError сопоставляет таксономию ошибок каталога кодам gRPC.
func codeForError(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrPriceInvalid),
		errors.Is(err, domain.ErrImageRequired),
		errors.Is(err, domain.ErrProductIDRequired):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrDuplicateTitle):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrNotAuthenticated):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrProductNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrSubscription),
		errors.Is(err, domain.ErrAllocationQueryFailed):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// statusFromError логирует ошибку и переводит её в gRPC-статус.
// Сообщение CatalogError сохраняется: в нём шаг и id осиротевшего товара.
func (s *CatalogService) statusFromError(err error, operation string) error {
	code := codeForError(err)
	fields := log.Fields{
		"operation": operation,
		"code":      code.String(),
		"kind":      domain.ErrorKind(err),
	}
	if id, ok := domain.OrphanedProductID(err); ok {
		fields["product_id"] = id
	}

	entry := s.logger.WithError(err).WithFields(fields)
	if code == codes.Internal || code == codes.Unavailable {
		entry.Error("Catalog request failed")
	} else {
		entry.Debug("Catalog request rejected")
	}

	return status.Error(code, err.Error())
}
