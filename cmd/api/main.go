package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/factory-workflow/internal/api/http"
	"github.com/spec-kit/factory-workflow/internal/api/http/handlers"
	"github.com/spec-kit/factory-workflow/internal/auth"
	"github.com/spec-kit/factory-workflow/internal/config"
	"github.com/spec-kit/factory-workflow/internal/events"
	"github.com/spec-kit/factory-workflow/internal/observability"
	"github.com/spec-kit/factory-workflow/internal/persistence"
	"github.com/spec-kit/factory-workflow/internal/repository"
	"github.com/spec-kit/factory-workflow/internal/service"
	"github.com/spec-kit/factory-workflow/internal/worker"
)

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

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartInvalidationRelay(dispatcher, redis.Client, cfg.Push.RedisChannel, logger)

	pool := pg.PoolHandle()
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		ItemRepo:       repository.NewItemRepository(pool),
		HistoryRepo:    repository.NewHistoryRepository(pool),
		DepartmentRepo: repository.NewDepartmentRepository(pool),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	assignmentService := service.NewAssignmentService(workflowService)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Items:          handlers.NewItemsHandler(workflowService, assignmentService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
