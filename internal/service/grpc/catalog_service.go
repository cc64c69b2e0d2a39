package grpcsvc

import (
	"context"
	"encoding/base64"
	"math"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/mirror"
	"github.com/vladislavdragonenkov/storefront/internal/service/sequence"
	catalogv1 "github.com/vladislavdragonenkov/storefront/proto/catalog/v1"
)

const (
	requestFieldTitle         = "title"
	requestFieldPrice         = "price"
	requestFieldCategory      = "category"
	requestFieldImageBase64   = "imageBase64"
	requestFieldTitleContains = "titleContains"

	responseFieldVersion  = "version"
	responseFieldProducts = "products"
)

// CatalogView отдаёт последний снимок каталога (обычно долгоживущее зеркало процесса).
type CatalogView interface {
	Latest() (domain.CatalogSnapshot, bool)
}

// Dependencies — зависимости gRPC-сервиса каталога.
type Dependencies struct {
	Catalog   *catalog.Service
	Cart      *cart.Service
	Allocator *sequence.Allocator
	// Products нужен для отдельных зеркал потоковых подписок.
	Products domain.DocumentStore
	View     CatalogView
	Metrics  *metrics.CatalogMetrics
}

// CatalogService реализует gRPC API каталога, корзины и зеркала.
type CatalogService struct {
	catalogv1.UnimplementedCatalogServiceServer

	deps   Dependencies
	logger *log.Entry
}

// NewCatalogService конструирует сервис с зависимостями.
func NewCatalogService(deps Dependencies, logger *log.Entry) *CatalogService {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-grpc")
	}
	return &CatalogService{deps: deps, logger: logger}
}

// CreateProduct запускает сагу создания товара от имени пользователя из метаданных.
func (s *CatalogService) CreateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	createdBy, ok := identity.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, domain.ErrNotAuthenticated.Error())
	}

	fields := req.GetFields()
	image, err := base64.StdEncoding.DecodeString(fields[requestFieldImageBase64].GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be base64: %v", requestFieldImageBase64, err)
	}

	in := catalog.ProductInput{
		Title:     fields[requestFieldTitle].GetStringValue(),
		Price:     priceFromValue(fields[requestFieldPrice]),
		Category:  fields[requestFieldCategory].GetStringValue(),
		Image:     image,
		CreatedBy: createdBy,
	}

	product, err := s.deps.Catalog.CreateLinkedProduct(ctx, in)
	if err != nil {
		return nil, s.statusFromError(err, "create_product")
	}
	return toProductStruct(product)
}

// DeleteProduct удаляет товар и его изображение.
func (s *CatalogService) DeleteProduct(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.deps.Catalog.DeleteProduct(ctx, strings.TrimSpace(req.GetValue())); err != nil {
		return nil, s.statusFromError(err, "delete_product")
	}
	return &emptypb.Empty{}, nil
}

// AllocateOrderNumber выдаёт следующий номер позиции корзины без вставки.
func (s *CatalogService) AllocateOrderNumber(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.deps.Allocator.Allocate(ctx, domain.CollectionCarts, domain.FieldOrderNumber)
	if err != nil {
		return nil, s.statusFromError(err, "allocate_order_number")
	}
	return wrapperspb.Int64(n), nil
}

// AddToCart добавляет товар в корзину пользователя из метаданных.
func (s *CatalogService) AddToCart(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	item, err := s.deps.Cart.AddToCart(ctx, strings.TrimSpace(req.GetValue()))
	if err != nil {
		return nil, s.statusFromError(err, "add_to_cart")
	}
	return toCartItemStruct(item)
}

// FilterCatalog фильтрует последний снимок зеркала; к хранилищу не обращается.
func (s *CatalogService) FilterCatalog(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.View == nil {
		return nil, status.Error(codes.Unavailable, "catalog mirror is not configured")
	}
	snapshot, ok := s.deps.View.Latest()
	if !ok {
		return nil, status.Error(codes.Unavailable, "catalog mirror has not received a snapshot yet")
	}
	return toSnapshotStruct(snapshot, predicateFromRequest(req))
}

// SubscribeCatalog открывает отдельное зеркало на время потока и отправляет каждый новый снимок.
func (s *CatalogService) SubscribeCatalog(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	logger := s.logger.WithField("operation", "subscribe_catalog")

	m, err := mirror.Subscribe(ctx, s.deps.Products,
		mirror.WithLogger(logger),
		mirror.WithMetrics(s.deps.Metrics),
	)
	if err != nil {
		return s.statusFromError(err, "subscribe_catalog")
	}
	defer m.Unsubscribe()

	pred := predicateFromRequest(req)
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case snapshot, ok := <-m.Updates():
			if !ok {
				if err := m.Err(); err != nil {
					return s.statusFromError(err, "subscribe_catalog")
				}
				return nil
			}
			msg, err := toSnapshotStruct(snapshot, pred)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				logger.WithError(err).Debug("Catalog stream send failed")
				return err
			}
		}
	}
}

func predicateFromRequest(req *structpb.Struct) mirror.Predicate {
	fields := req.GetFields()
	return mirror.All(
		mirror.TitleContains(fields[requestFieldTitleContains].GetStringValue()),
		mirror.InCategory(fields[requestFieldCategory].GetStringValue()),
	)
}

// priceFromValue возвращает NaN для отсутствующей или нечисловой цены, чтобы её отклонила валидация саги.
func priceFromValue(v *structpb.Value) float64 {
	if v == nil {
		return math.NaN()
	}
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
		return math.NaN()
	}
	return v.GetNumberValue()
}

var _ catalogv1.CatalogServiceServer = (*CatalogService)(nil)
