package grpcsvc

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/mirror"
)

func productMap(p domain.Product) map[string]any {
	out := map[string]any{
		domain.FieldID:        p.ID,
		domain.FieldTitle:     p.Title,
		domain.FieldPrice:     p.Price,
		domain.FieldCategory:  p.Category,
		domain.FieldImage:     p.Image,
		domain.FieldCreatedBy: p.CreatedBy,
	}
	if !p.CreatedAt.IsZero() {
		out[domain.FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func toProductStruct(p domain.Product) (*structpb.Struct, error) {
	return newStruct(productMap(p))
}

func toCartItemStruct(item domain.CartItem) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"recordId":              item.RecordID,
		domain.FieldID:          item.ID,
		domain.FieldTitle:       item.Title,
		domain.FieldPrice:       item.Price,
		domain.FieldImage:       item.Image,
		domain.FieldCreatedBy:   item.CreatedBy,
		domain.FieldOrderNumber: item.OrderNumber,
		domain.FieldQuantity:    item.Quantity,
		domain.FieldOwner:       item.Owner,
	})
}

// toSnapshotStruct кодирует отфильтрованный снимок как {version, products}.
func toSnapshotStruct(snapshot domain.CatalogSnapshot, pred mirror.Predicate) (*structpb.Struct, error) {
	products := mirror.FilterCatalog(snapshot, pred)
	list := make([]any, 0, len(products))
	for _, p := range products {
		list = append(list, productMap(p))
	}
	return newStruct(map[string]any{
		responseFieldVersion:  snapshot.Version(),
		responseFieldProducts: list,
	})
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
