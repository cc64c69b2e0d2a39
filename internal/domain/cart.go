package domain

const (
	// CollectionCarts — коллекция позиций корзины; orderNumber сквозной по всей коллекции.
	CollectionCarts = "Carts"

	FieldOrderNumber = "orderNumber"
	FieldQuantity    = "quantity"
	FieldOwner       = "email"
)

// CartItem — позиция корзины. ID совпадает с id товара и не уникален в пределах корзины.
type CartItem struct {
	// RecordID — id документа позиции, назначенный хранилищем.
	RecordID    string
	ID          string
	Title       string
	Price       float64
	Image       string
	CreatedBy   string
	OrderNumber int64
	Quantity    int
	Owner       string
}

// NewCartItem строит позицию из снимка товара для владельца owner.
func NewCartItem(product Product, owner string) CartItem {
	return CartItem{
		ID:        product.ID,
		Title:     product.Title,
		Price:     product.Price,
		Image:     product.Image,
		CreatedBy: product.CreatedBy,
		Quantity:  1,
		Owner:     owner,
	}
}

// Fields возвращает поля позиции для вставки; orderNumber проставляет аллокатор.
func (c CartItem) Fields() map[string]any {
	return map[string]any{
		FieldID:        c.ID,
		FieldTitle:     c.Title,
		FieldPrice:     c.Price,
		FieldImage:     c.Image,
		FieldCreatedBy: c.CreatedBy,
		FieldQuantity:  c.Quantity,
		FieldOwner:     c.Owner,
	}
}

// CartItemFromRecord собирает позицию корзины из документа хранилища.
func CartItemFromRecord(rec Record) CartItem {
	item := CartItem{
		RecordID:  rec.ID,
		ID:        AsString(rec.Fields[FieldID]),
		Title:     AsString(rec.Fields[FieldTitle]),
		Image:     AsString(rec.Fields[FieldImage]),
		CreatedBy: AsString(rec.Fields[FieldCreatedBy]),
		Owner:     AsString(rec.Fields[FieldOwner]),
	}
	if price, ok := AsFloat(rec.Fields[FieldPrice]); ok {
		item.Price = price
	}
	if n, ok := AsInt64(rec.Fields[FieldOrderNumber]); ok {
		item.OrderNumber = n
	}
	if q, ok := AsInt64(rec.Fields[FieldQuantity]); ok {
		item.Quantity = int(q)
	}
	return item
}
