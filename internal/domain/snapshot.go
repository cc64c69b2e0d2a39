package domain

import "time"

// CatalogSnapshot — неизменяемый снимок каталога, полученный из одного события подписки.
type CatalogSnapshot struct {
	products   []Product
	version    uint64
	receivedAt time.Time
}

// NewCatalogSnapshot копирует products, чтобы снимок нельзя было изменить снаружи.
func NewCatalogSnapshot(products []Product, version uint64, receivedAt time.Time) CatalogSnapshot {
	own := make([]Product, len(products))
	copy(own, products)
	return CatalogSnapshot{products: own, version: version, receivedAt: receivedAt}
}

// SnapshotFromRecords строит снимок из полного набора записей коллекции.
func SnapshotFromRecords(records []Record, version uint64, receivedAt time.Time) CatalogSnapshot {
	products := make([]Product, 0, len(records))
	for _, rec := range records {
		products = append(products, ProductFromRecord(rec))
	}
	return CatalogSnapshot{products: products, version: version, receivedAt: receivedAt}
}

// Products возвращает копию списка товаров.
func (s CatalogSnapshot) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Len — количество товаров в снимке.
func (s CatalogSnapshot) Len() int { return len(s.products) }

// Version — порядковый номер события подписки (начиная с 1).
func (s CatalogSnapshot) Version() uint64 { return s.version }

// ReceivedAt — момент получения события.
func (s CatalogSnapshot) ReceivedAt() time.Time { return s.receivedAt }

// Find ищет товар по id.
func (s CatalogSnapshot) Find(id string) (Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
