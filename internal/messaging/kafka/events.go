package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События каталога
	EventTypeProductCreated   EventType = "catalog.product.created"
	EventTypeProductDeleted   EventType = "catalog.product.deleted"
	EventTypeProductOrphaned  EventType = "catalog.product.orphaned"
	EventTypeSagaFailed       EventType = "catalog.saga.failed"
	EventTypeSagaCompensated  EventType = "catalog.saga.compensated"
	EventTypeOrphansCollected EventType = "catalog.orphans.collected"

	// События корзины
	EventTypeCartItemAdded EventType = "cart.item.added"
)

// Topics для Kafka
const (
	TopicCatalogEvents   = "storefront.catalog.events"
	TopicCartEvents      = "storefront.cart.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Заголовки сообщений. HeaderEventType ставит producer, остальные — DLQ.
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Event — доменное событие, которое знает свой топик и ключ партиционирования.
type Event interface {
	Type() EventType
	Topic() string
	Key() string
}

// CatalogEvent представляет событие каталога; ключ сообщения — id товара.
type CatalogEvent struct {
	EventType EventType      `json:"event_type"`
	ProductID string         `json:"product_id"`
	Title     string         `json:"title,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CartEvent представляет событие корзины; ключ сообщения — владелец корзины.
type CartEvent struct {
	EventType   EventType      `json:"event_type"`
	RecordID    string         `json:"record_id"`
	ProductID   string         `json:"product_id"`
	Owner       string         `json:"owner"`
	OrderNumber int64          `json:"order_number"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (e *CatalogEvent) Type() EventType { return e.EventType }
func (e *CatalogEvent) Topic() string   { return TopicCatalogEvents }
func (e *CatalogEvent) Key() string     { return e.ProductID }

func (e *CartEvent) Type() EventType { return e.EventType }
func (e *CartEvent) Topic() string   { return TopicCartEvents }
func (e *CartEvent) Key() string     { return e.Owner }

// NewCatalogEvent создает новое событие каталога
func NewCatalogEvent(eventType EventType, productID, title string, metadata map[string]any) *CatalogEvent {
	return &CatalogEvent{
		EventType: eventType,
		ProductID: productID,
		Title:     title,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// NewCartEvent создает новое событие корзины
func NewCartEvent(eventType EventType, recordID, productID, owner string, orderNumber int64) *CartEvent {
	return &CartEvent{
		EventType:   eventType,
		RecordID:    recordID,
		ProductID:   productID,
		Owner:       owner,
		OrderNumber: orderNumber,
		Timestamp:   time.Now().UTC(),
	}
}
