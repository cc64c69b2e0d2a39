package mirror

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Predicate отбирает товары снимка.
type Predicate func(domain.Product) bool

// FilterCatalog применяет предикат к снимку; nil-предикат пропускает всё. Хранилище не затрагивается.
func FilterCatalog(snapshot domain.CatalogSnapshot, pred Predicate) []domain.Product {
	products := snapshot.Products()
	if pred == nil {
		return products
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// TitleContains — регистронезависимый поиск подстроки в названии без обрезки пробелов;
// пустая строка подходит всем.
func TitleContains(substr string) Predicate {
	needle := fold(substr)
	return func(p domain.Product) bool {
		return needle == "" || strings.Contains(fold(p.Title), needle)
	}
}

// InCategory — регистронезависимое совпадение категории; пустая категория подходит всем.
func InCategory(category string) Predicate {
	want := fold(strings.TrimSpace(category))
	return func(p domain.Product) bool {
		return want == "" || fold(p.Category) == want
	}
}

// All объединяет предикаты по И.
func All(preds ...Predicate) Predicate {
	return func(p domain.Product) bool {
		for _, pred := range preds {
			if pred != nil && !pred(p) {
				return false
			}
		}
		return true
	}
}

// fold создаёт Caser на каждый вызов: Caser хранит состояние и не должен разделяться между горутинами.
func fold(s string) string {
	return cases.Fold().String(s)
}
