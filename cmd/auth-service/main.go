package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/storefront-auth/internal/cache"
	"github.com/pribylovaa/storefront-auth/internal/config"
	"github.com/pribylovaa/storefront-auth/internal/events"
	"github.com/pribylovaa/storefront-auth/internal/interceptors"
	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/metrics"
	"github.com/pribylovaa/storefront-auth/internal/service"
	"github.com/pribylovaa/storefront-auth/internal/storage/postgres"
	grpcsrv "github.com/pribylovaa/storefront-auth/internal/transport/grpc"
	httpapi "github.com/pribylovaa/storefront-auth/internal/transport/http"
	"github.com/pribylovaa/storefront-auth/pkg/authv1"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Подключение к БД c таймаутом и миграции.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	if err != nil {
		dbCancel()
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer str.Close()
	log.Info("postgres_connected")

	err = postgres.Migrate(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations_applied")

	m := metrics.New(prometheus.DefaultRegisterer)
	issuerOpts := []issuer.Option{issuer.WithMetrics(m)}

	// Кэш refresh-токенов: опционально.
	if cfg.Redis.RedisURL != "" {
		rc, err := cache.NewRedisCache(rootCtx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rc.Close() }()
		issuerOpts = append(issuerOpts, issuer.WithRefreshCache(rc))
		log.Info("redis_connected")
	} else {
		log.Info("redis_disabled")
	}

	// Публикация событий: опционально.
	var pub events.Publisher = events.NopPublisher{}
	if cfg.Broker.URL != "" {
		ap, err := events.DialAMQP(rootCtx, events.AMQPConfig{
			URL:            cfg.Broker.URL,
			Exchange:       cfg.Broker.Exchange,
			MaxRetries:     5,
			ConfirmTimeout: 5 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("amqp connect: %w", err)
		}
		pub = ap
		log.Info("amqp_connected", slog.String("exchange", cfg.Broker.Exchange))
	} else {
		log.Info("amqp_disabled")
	}
	defer func() { _ = pub.Close() }()

	iss, err := issuer.New(cfg.Auth, str, str, issuerOpts...)
	if err != nil {
		return err
	}

	svc := service.New(str, iss, pub)
	log.Info("service_initialized")

	var ready atomic.Bool

	// REST API, health и метрики.
	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr: httpAddr,
		Handler: httpapi.NewRouter(svc, httpapi.Options{
			Logger:         log,
			Timeout:        cfg.Timeouts.Service,
			Metrics:        m,
			MetricsHandler: promhttp.Handler(),
			Ready: func(ctx context.Context) error {
				if !ready.Load() {
					return errors.New("not ready")
				}
				return str.Ping(ctx)
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http_listen_start", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}()

	grpc_prometheus.EnableHandlingTimeHistogram()

	// gRPC-сервер и интерсепторы.
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLogging(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	authv1.RegisterTokenServiceServer(grpcServer, grpcsrv.NewTokenServer(svc))

	// Рефлексия: только в local/dev.
	if cfg.Env == envLocal || cfg.Env == envDev {
		reflection.Register(grpcServer)
	}

	startRefreshJanitor(rootCtx, iss, log, cfg.Janitor.Period, cfg.Janitor.Retention)

	addr := cfg.GRPC.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = httpSrv.Shutdown(context.Background())
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	log.Info("grpc_listen_start", slog.String("addr", addr))

	grpc_prometheus.Register(grpcServer)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	ready.Store(true)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("grpc_serve_failed", slog.String("err", err.Error()))
		}
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}

	return nil
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// startRefreshJanitor периодически удаляет refresh-токены, истёкшие раньше,
// чем retention назад.
func startRefreshJanitor(ctx context.Context, iss *issuer.Issuer, log *slog.Logger, period, retention time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := iss.Sweep(ctx, retention)
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				log.Debug("refresh_janitor_swept", slog.Int64("deleted", n))
			}
		}
	}()
}
