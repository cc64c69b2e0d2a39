package domain

import "context"

// DocumentStore описывает удалённое eventually-consistent хранилище документов.
// Операции не транзакционны между собой, доставка событий at-least-once.
type DocumentStore interface {
	// Find возвращает записи коллекции, удовлетворяющие запросу.
	Find(ctx context.Context, collection string, q Query) ([]Record, error)
	// Insert создаёт запись и возвращает сгенерированный хранилищем id.
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update сливает fields с существующей записью; ErrRecordNotFound, если её нет.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete удаляет запись.
	Delete(ctx context.Context, collection, id string) error
	// Subscribe открывает поток полных снимков коллекции.
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// SnapshotEvent несёт полный текущий набор записей коллекции или терминальную ошибку.
type SnapshotEvent struct {
	Records []Record
	Err     error
}

// Subscription — поток событий изменения коллекции.
type Subscription interface {
	// Events закрывается после терминального события или Close.
	Events() <-chan SnapshotEvent
	// Close освобождает поток; повторный вызов безопасен.
	Close()
}

// ObjectStore описывает хранилище бинарных объектов.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	ResolveURL(ctx context.Context, key string) (string, error)
	// Delete используется только компенсациями и очисткой сирот.
	Delete(ctx context.Context, key string) error
}

// IdentityProvider возвращает текущего пользователя или ErrNotAuthenticated.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepCheckTitle      SagaStep = "check_title"
	SagaStepCreateRecord    SagaStep = "create_record"
	SagaStepUploadAsset     SagaStep = "upload_asset"
	SagaStepResolveURL      SagaStep = "resolve_url"
	SagaStepLinkImage       SagaStep = "link_image"
	SagaStepDeleteRecord    SagaStep = "delete_record"
	SagaStepDeleteAsset     SagaStep = "delete_asset"
	SagaStepAllocate        SagaStep = "allocate"
	SagaStepInsertCart      SagaStep = "insert_cart_item"
	SagaStepLoadProduct     SagaStep = "load_product"
	SagaStepResolveIdentity SagaStep = "resolve_identity"
)
