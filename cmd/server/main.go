package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"regtrack/internal/auth"
	"regtrack/internal/config"
	"regtrack/internal/database"
	"regtrack/internal/handlers"
	"regtrack/internal/logger"
	"regtrack/internal/metrics"
	"regtrack/internal/middleware"
	"regtrack/internal/notify"
	"regtrack/internal/server"
	"regtrack/internal/service"
)

const serviceName = "regtrack"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		DSN:         cfg.DBDSN,
		MaxAttempts: cfg.DBConnectAttempts,
		Logger:      lg,
	})
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()
	svc := service.New(db, service.WithLogger(lg), service.WithMetrics(m))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: server.NewRouter(server.Deps{
			Handler:  handlers.New(svc, lg, cfg.OnboardingToken),
			Verifier: auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
			Users:    svc,
			Limiter:  middleware.NewTenantRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m),
			Metrics:  m,
			Logger:   lg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RelayEnabled() {
		pub, err := notify.ConnectNATS(cfg.NATSURL, serviceName, lg)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()

		relay := notify.NewRelay(svc, pub, cfg.NATSSubjectPrefix,
			notify.WithInterval(cfg.RelayInterval),
			notify.WithLogger(lg),
			notify.WithMetrics(m),
		)
		g.Go(func() error { return relay.Run(ctx) })
	} else {
		lg.Warn("NATS_URL is not set; notifications stay in the outbox")
	}

	g.Go(func() error {
		lg.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		lg.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
