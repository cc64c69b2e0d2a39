package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/mirror"
	"github.com/vladislavdragonenkov/storefront/internal/version"
	catalogv1 "github.com/vladislavdragonenkov/storefront/proto/catalog/v1"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает хранилища, сервисы каталога, gRPC и HTTP-метрики и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if runtime.closeFn == nil {
			return
		}
		if err := runtime.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	// Kafka опциональна: ошибка подключения не мешает работе каталога.
	kafkaProducer, _ := initKafkaProducer(cfg, logger)
	defer closeKafka(kafkaProducer, logger)

	catalogMetrics := metrics.NewCatalogMetrics()
	deps, err := NewDependencies(cfg, runtime.documents, runtime.objects, kafkaProducer, catalogMetrics, logger)
	if err != nil {
		return err
	}

	catalogMirror, err := mirror.Subscribe(ctx, runtime.documents,
		mirror.WithLogger(logger.WithField("layer", "mirror")),
		mirror.WithMetrics(catalogMetrics),
	)
	if err != nil {
		return err
	}
	defer catalogMirror.Unsubscribe()

	if deps.Sweeper != nil {
		go deps.Sweeper.Run(ctx)
	}

	serviceLogger := logger.WithField("layer", "grpc")
	catalogService := grpcsvc.NewCatalogService(grpcsvc.Dependencies{
		Catalog:   deps.Catalog,
		Cart:      deps.Cart,
		Allocator: deps.Allocator,
		Products:  runtime.documents,
		View:      catalogMirror,
		Metrics:   catalogMetrics,
	}, serviceLogger)

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor(), grpcsvc.IdentityUnaryInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor(), grpcsvc.IdentityStreamInterceptor()),
	)

	catalogv1.RegisterCatalogServiceServer(grpcServer, catalogService)
	grpcMetrics.InitializeMetrics(grpcServer)

	// Reflection для grpcurl.
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if runtime.storageChecker != nil {
		healthHandler.RegisterChecker("document-store", runtime.storageChecker)
	}
	healthHandler.RegisterChecker("catalog-mirror", newMirrorChecker(catalogMirror))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stoppedCh := make(chan struct{})
		go func() {
			healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newMirrorChecker: degraded до первого снимка, unhealthy после обрыва подписки.
func newMirrorChecker(m *mirror.Mirror) healthcheck.Checker {
	return healthcheck.NewStatusChecker("catalog-mirror", func() (healthcheck.Status, string) {
		if err := m.Err(); err != nil {
			return healthcheck.StatusUnhealthy, err.Error()
		}
		if _, ok := m.Latest(); !ok {
			return healthcheck.StatusDegraded, "waiting for first snapshot"
		}
		return healthcheck.StatusHealthy, ""
	})
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
