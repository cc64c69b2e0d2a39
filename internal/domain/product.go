package domain

import (
	"math"
	"strings"
	"time"
)

const (
	// CollectionProducts — коллекция каталога.
	CollectionProducts = "Product"
	// ProductImagePrefix — префикс ключей изображений в object store.
	ProductImagePrefix = "Products/"

	FieldID        = "id"
	FieldTitle     = "title"
	FieldPrice     = "price"
	FieldCategory  = "category"
	FieldImage     = "image"
	FieldCreatedBy = "createdBy"
	FieldCreatedAt = "createdAt"
)

// Product — запись каталога.
type Product struct {
	// ID назначается хранилищем при вставке и дальше не меняется.
	ID    string
	Title string
	Price float64
	// Category используется только фильтрами зеркала; может быть пустой.
	Category string
	// Image пуст до успешной загрузки и связывания, затем выставляется ровно один раз.
	Image     string
	CreatedBy string
	CreatedAt time.Time
}

// ProductImageKey детерминированно строит ключ изображения из id товара.
func ProductImageKey(productID string) string {
	return ProductImagePrefix + productID + ".png"
}

// NormalizeTitle убирает пробелы по краям; уникальность проверяется по нормализованному значению.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidatePrice проверяет, что цена — конечное неотрицательное число.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return ErrPriceInvalid
	}
	return nil
}

// HasImage сообщает, связана ли запись с загруженным изображением.
func (p Product) HasImage() bool {
	return p.Image != ""
}

// Fields возвращает поля для вставки в document store (без id: его назначает хранилище).
func (p Product) Fields() map[string]any {
	fields := map[string]any{
		FieldTitle:     p.Title,
		FieldPrice:     p.Price,
		FieldImage:     p.Image,
		FieldCreatedBy: p.CreatedBy,
	}
	if p.Category != "" {
		fields[FieldCategory] = p.Category
	}
	if !p.CreatedAt.IsZero() {
		fields[FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

// ProductFromRecord собирает товар из документа хранилища.
// Неизвестные или битые поля игнорируются: зеркало не должно падать на чужих данных.
func ProductFromRecord(rec Record) Product {
	p := Product{
		ID:        rec.ID,
		Title:     AsString(rec.Fields[FieldTitle]),
		Category:  AsString(rec.Fields[FieldCategory]),
		Image:     AsString(rec.Fields[FieldImage]),
		CreatedBy: AsString(rec.Fields[FieldCreatedBy]),
	}
	if price, ok := AsFloat(rec.Fields[FieldPrice]); ok {
		p.Price = price
	}
	if raw, ok := rec.Fields[FieldCreatedAt].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			p.CreatedAt = ts
		}
	}
	return p
}
