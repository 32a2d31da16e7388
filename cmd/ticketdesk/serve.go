package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticketdesk/internal/api/http"
	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/render"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/ticketapi"
	"github.com/spec-kit/ticketdesk/internal/worker"
)

func runServe(args []string) error {
	var envFiles []string
	var policyFile, addr string

	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "env file(s) to load before reading the environment")
	flagSet.StringVar(&policyFile, "policy", "", "YAML authorization policy (overrides AUTH_POLICY_FILE)")
	flagSet.StringVar(&addr, "addr", "", "listen address host:port (overrides APP_HOST/APP_PORT)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if policyFile != "" {
		cfg.Auth.PolicyFile = policyFile
	}
	if addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		cfg.App.Host, cfg.App.Port = host, port
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	policy, err := auth.LoadPolicy(cfg.Auth.PolicyFile)
	if err != nil {
		return err
	}

	sessionStore, viewStore := stores(redis)
	dispatcher := events.NewInMemoryDispatcher(logger)
	journal := service.NewJournalService(dispatcher, repository.NewActionRepository(pg.PoolHandle()), logger)
	worker.StartActionJournal(journal)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	client := ticketapi.NewClient(cfg.Upstream, logger)
	views := service.NewTicketViewService(service.TicketViewDependencies{
		API:           client,
		Views:         viewStore,
		Policy:        policy,
		Dispatcher:    dispatcher,
		Logger:        logger,
		ViewTTL:       cfg.View.TTL(),
		MaxImageBytes: cfg.View.MaxImageBytes,
	})
	sessions := service.NewSessionService(cfg.Auth, sessionStore)

	renderer, err := render.New(cfg.App.Name, cfg.View.AllowRawHTML)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             int(cfg.View.MaxImageBytes) + 1<<20,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, renderer, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, client, metrics),
		Tickets:        handlers.NewTicketViewHandler(views, journal, renderer, cfg.View.MaxImageBytes),
		Sessions:       handlers.NewSessionHandler(sessions, cfg.Auth.CookieSecure),
		AuthMiddleware: auth.NewAuthMiddleware(sessions.TokenManager(), sessionStore),
		Policy:         policy,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("ticket_api", cfg.Upstream.BaseURL))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	return app.Shutdown()
}

// stores picks Redis-backed session and view stores when Redis is configured.
func stores(redis *persistence.Redis) (repository.SessionStore, repository.ViewStore) {
	if redis.Configured() {
		return repository.NewRedisSessionStore(redis.Client), repository.NewRedisViewStore(redis.Client)
	}
	return repository.NewMemorySessionStore(), repository.NewMemoryViewStore()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
