// Package server boots the application: configuration, storage backends,
// the HTTP and gRPC listeners, the queue workers and the scheduler, plus a
// graceful teardown in reverse order on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tiendalabs/tienda/app/controllers"
	"github.com/tiendalabs/tienda/app/jobs"
	"github.com/tiendalabs/tienda/app/realtime"
	"github.com/tiendalabs/tienda/app/repositories"
	"github.com/tiendalabs/tienda/app/routes"
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/pkg/cache"
	"github.com/tiendalabs/tienda/pkg/database"
	grpcsrv "github.com/tiendalabs/tienda/pkg/grpc"
	"github.com/tiendalabs/tienda/pkg/logger"
	"github.com/tiendalabs/tienda/pkg/metrics"
	"github.com/tiendalabs/tienda/pkg/middleware"
	"github.com/tiendalabs/tienda/pkg/notification"
	"github.com/tiendalabs/tienda/pkg/queue"
	"github.com/tiendalabs/tienda/pkg/reqid"
	"github.com/tiendalabs/tienda/pkg/router"
	"github.com/tiendalabs/tienda/pkg/schedule"
	"github.com/tiendalabs/tienda/pkg/session"
	"github.com/tiendalabs/tienda/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// Start boots everything and blocks until the process is signalled.
func Start() error {
	if err := config.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage backends ──────────────────────────────────────────────────

	conn, err := database.Connect(ctx, config.MongoURI(), config.MongoDB())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			logger.Error("mongo teardown failed", "error", err)
		}
	}()

	if err := cache.Connect(); err != nil {
		// sessions and listing cache degrade; the app still serves
		logger.Warn("redis unavailable, continuing without cache", "error", err)
	}
	defer cache.Close() //nolint:errcheck

	storage.Connect()
	queue.UseMongo(conn.DB)
	if hook := config.Get("SLACK_WEBHOOK_URL", ""); hook != "" {
		notification.SetSlackWebhook(hook)
	}

	// warn+ records also land in a capped collection for later inspection
	mongoLog := logger.NewMongoHandler(conn.DB, "logs", slog.LevelWarn)
	logger.Attach(mongoLog)
	defer mongoLog.Close()

	// ── Wiring ────────────────────────────────────────────────────────────

	productRepo := repositories.NewProductRepository(conn.DB)
	cartRepo := repositories.NewCartRepository(conn.DB)
	ticketRepo := repositories.NewTicketRepository(conn.DB)
	userRepo := repositories.NewUserRepository(conn.DB)
	messageRepo := repositories.NewMessageRepository(conn.DB)
	tokenRepo := repositories.NewTokenRepository(conn.DB)

	productSvc := services.NewProductService(productRepo)
	cartSvc := services.NewCartService(cartRepo, productRepo, ticketRepo)
	authSvc := services.NewAuthService(userRepo, cartRepo, tokenRepo)
	userSvc := services.NewUserService(userRepo)

	hubs := realtime.New(productSvc, userRepo, messageRepo)
	hubs.Start(ctx)

	graphqlHandler, err := controllers.NewGraphQLHandler(productSvc)
	if err != nil {
		return fmt.Errorf("graphql schema: %w", err)
	}

	// ── Background workers ────────────────────────────────────────────────

	jobs.RegisterAll()
	if c := cache.Client(); c != nil {
		queue.SetDriver(queue.NewRedisDriver(c))
	}
	queue.StartWorkers(ctx, 4)

	schedule.Every(1).Hours().Name("purge-reset-tokens").Run(func() {
		purgeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if n, err := authSvc.PurgeExpiredTokens(purgeCtx); err != nil {
			logger.Error("reset token purge failed", "error", err)
		} else if n > 0 {
			logger.Info("purged expired reset tokens", "count", n)
		}
	})
	go schedule.Start(ctx)

	// ── HTTP ──────────────────────────────────────────────────────────────

	r := router.New()
	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		session.Middleware(session.DefaultOptions()),
		middleware.CORS(middleware.DefaultCORSOptions()),
		middleware.Authenticate,
	)

	routes.RegisterAPI(r, routes.Controllers{
		Sessions: controllers.NewSessionsController(authSvc),
		Products: controllers.NewProductsController(productSvc),
		Carts:    controllers.NewCartsController(cartSvc, ticketRepo),
		Users:    controllers.NewUsersController(userSvc),
		Stream:   controllers.NewStreamController(hubs),
		GraphQL:  graphqlHandler,
		Hubs:     hubs,
	})

	httpSrv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", httpSrv.Addr, "env", config.AppEnv())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ── gRPC health ───────────────────────────────────────────────────────

	grpcServer, _, err := grpcsrv.Start(config.GRPCPort())
	if err != nil {
		logger.Warn("grpc listener disabled", "error", err)
	} else {
		defer grpcsrv.Stop(grpcServer)
	}

	// ── Wait and drain ────────────────────────────────────────────────────

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http drain: %w", err)
	}
	logger.Info("http drained")
	return nil
}
