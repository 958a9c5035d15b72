package main

import (
	"context"
	"log"
	"net"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/messaging-service/internal/api/http"
	"github.com/spec-kit/messaging-service/internal/api/http/handlers"
	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/avatar"
	"github.com/spec-kit/messaging-service/internal/config"
	"github.com/spec-kit/messaging-service/internal/events"
	"github.com/spec-kit/messaging-service/internal/netguard"
	"github.com/spec-kit/messaging-service/internal/observability"
	"github.com/spec-kit/messaging-service/internal/persistence"
	"github.com/spec-kit/messaging-service/internal/repository"
	"github.com/spec-kit/messaging-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)

	metrics := observability.NewMetrics()

	var (
		userRepo    repository.UserRepository
		messageRepo repository.MessageRepository
		checks      []handlers.DependencyCheck
	)
	if pool := pg.PoolHandle(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
		messageRepo = repository.NewMessageRepository(pool)
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Pinger: pg})
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		userRepo = repository.NewMemoryUserRepository()
		messageRepo = repository.NewMemoryMessageRepository()
	}
	checks = append(checks, handlers.DependencyCheck{Name: "redis", Pinger: redis})

	resolver := netguard.NewResolver(net.DefaultResolver, netguard.ResolverOptions{
		Timeout:  cfg.Resolver.Timeout(),
		Cache:    persistence.NewResolverCache(redis),
		CacheTTL: cfg.Resolver.CacheTTL(),
		Logger:   logger.Named("resolver"),
		Recorder: metrics,
	})
	avatarBuilder := avatar.NewBuilder(cfg.Avatar, resolver, logger.Named("avatar"))
	safeDialer := netguard.NewSafeDialer(resolver, nil)
	avatarProbe := handlers.PingFunc(func(ctx context.Context) error {
		return safeDialer.Probe(ctx, avatarBuilder.Host(), "443")
	})

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL(), auth.SystemClock{})
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret, auth.SystemClock{})
	authMiddleware := auth.NewAuthMiddleware(verifier, logger.Named("auth"), metrics)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger.Named("notifications")).RegisterHandlers()
	closeNATS := func() {}
	if cfg.NATS.URL != "" {
		nc, err := events.ConnectNATS(cfg.NATS.URL, logger)
		if err != nil {
			logger.Fatal("failed to connect nats", zap.Error(err))
		}
		closeNATS = func() { _ = nc.Drain() }
		events.NewNATSBridge(nc, cfg.NATS.SubjectPrefix, logger.Named("nats")).Register(dispatcher)
	}

	authService := service.NewAuthService(cfg.Auth, userRepo, issuer, logger)
	messageService := service.NewMessageService(messageRepo, dispatcher, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks, avatarProbe),
		Users:          handlers.NewUsersHandler(authService, avatarBuilder),
		Messages:       handlers.NewMessagesHandler(messageService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			logger.Info("shutting down http server")
			// Storage outlives in-flight requests.
			defer pg.Close()
			defer redis.Close()
			defer closeNATS()
			return app.ShutdownWithContext(ctx)
		},
	})

	exitCode := <-wait
	logger.Info("service stopped", zap.Int("exit_code", exitCode))
	_ = logger.Sync()
	os.Exit(exitCode)
}
