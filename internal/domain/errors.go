package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTitle — товар с таким названием уже существует.
	ErrDuplicateTitle = errors.New("duplicate product title")
	// ErrRecordCreateFailed — не удалось создать запись в document store.
	ErrRecordCreateFailed = errors.New("record create failed")
	// ErrAssetUploadFailed — не удалось загрузить изображение в object store.
	ErrAssetUploadFailed = errors.New("asset upload failed")
	// ErrURLResolveFailed — не удалось получить URL загруженного изображения.
	ErrURLResolveFailed = errors.New("url resolve failed")
	// ErrLinkUpdateFailed — не удалось записать URL изображения в запись товара.
	ErrLinkUpdateFailed = errors.New("link update failed")
	// ErrAllocationQueryFailed — не удалось прочитать текущий максимум последовательности.
	ErrAllocationQueryFailed = errors.New("allocation query failed")
	// ErrSubscription — подписка на изменения завершилась ошибкой (терминальное событие).
	ErrSubscription = errors.New("subscription error")
	// ErrNotAuthenticated — операция требует идентификатора пользователя.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCompensationFailed — компенсирующее действие саги не выполнилось.
	ErrCompensationFailed = errors.New("compensation failed")

	// ErrTitleRequired — пустое название товара.
	ErrTitleRequired = errors.New("title is required")
	// ErrPriceInvalid — отрицательная или нечисловая цена.
	ErrPriceInvalid = errors.New("price must be a non-negative number")
	// ErrImageRequired — не передано изображение товара.
	ErrImageRequired = errors.New("image is required")
	// ErrProductIDRequired — не передан идентификатор товара.
	ErrProductIDRequired = errors.New("product id is required")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrRecordNotFound возвращается хранилищем, если документа нет.
	ErrRecordNotFound = errors.New("record not found")
	// ErrObjectNotFound возвращается object store, если ключ не загружен.
	ErrObjectNotFound = errors.New("object not found")
	// ErrUnsupportedFilter — оператор фильтра не поддерживается хранилищем.
	ErrUnsupportedFilter = errors.New("unsupported filter operator")
	// ErrSubscriptionClosed — подписка уже закрыта.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// CatalogError описывает отказ шага саги или аллокатора.
// Kind — одна из sentinel-ошибок таксономии, Err — исходная причина.
type CatalogError struct {
	Kind      error
	Step      SagaStep
	ProductID string
	Err       error
	// Compensated выставляется, когда созданная запись уже удалена компенсацией.
	Compensated bool
}

// NewCatalogError конструирует ошибку с указанием шага и (опционально) id осиротевшей записи.
func NewCatalogError(kind error, step SagaStep, productID string, cause error) *CatalogError {
	return &CatalogError{Kind: kind, Step: step, ProductID: productID, Err: cause}
}

func (e *CatalogError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Step != "" {
		fmt.Fprintf(&b, " (step=%s", e.Step)
		if e.ProductID != "" {
			fmt.Fprintf(&b, ", product_id=%s", e.ProductID)
		}
		if e.Compensated {
			b.WriteString(", compensated")
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap позволяет errors.Is находить как вид ошибки, так и исходную причину.
func (e *CatalogError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// OrphanedProductID возвращает id записи, оставшейся без изображения, если ошибка её описывает.
func OrphanedProductID(err error) (string, bool) {
	var catalogErr *CatalogError
	if !errors.As(err, &catalogErr) || catalogErr.ProductID == "" || catalogErr.Compensated {
		return "", false
	}
	switch {
	case errors.Is(catalogErr.Kind, ErrAssetUploadFailed),
		errors.Is(catalogErr.Kind, ErrURLResolveFailed),
		errors.Is(catalogErr.Kind, ErrLinkUpdateFailed):
		return catalogErr.ProductID, true
	default:
		return "", false
	}
}

// ErrorKind возвращает sentinel-вид ошибки для метрик и логов.
func ErrorKind(err error) string {
	kinds := []error{
		ErrDuplicateTitle,
		ErrRecordCreateFailed,
		ErrAssetUploadFailed,
		ErrURLResolveFailed,
		ErrLinkUpdateFailed,
		ErrAllocationQueryFailed,
		ErrSubscription,
		ErrNotAuthenticated,
		ErrTitleRequired,
		ErrPriceInvalid,
		ErrImageRequired,
		ErrProductNotFound,
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return strings.ReplaceAll(kind.Error(), " ", "_")
		}
	}
	return "unknown"
}
