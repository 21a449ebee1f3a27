package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/config"
	"github.com/iliyamo/book-panel/internal/database"
	"github.com/iliyamo/book-panel/internal/handler"
	"github.com/iliyamo/book-panel/internal/middleware"
	"github.com/iliyamo/book-panel/internal/queue"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/router"
	"github.com/iliyamo/book-panel/internal/service"
	"github.com/iliyamo/book-panel/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, done, err := setup()
		if err != nil {
			return err
		}
		defer done()
		return serve(cmd.Context(), cfg, log)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, done, err := setup()
		if err != nil {
			return err
		}
		defer done()
		db, err := database.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(context.Background(), db); err != nil {
			return err
		}
		log.Info("schema applied", zap.String("driver", cfg.DB.Driver))
		return nil
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else if cfg.Redis.Enabled {
		log.Warn("redis unreachable, cache and rate limit disabled", zap.String("addr", cfg.Redis.Address()))
	}

	blobs, err := storage.NewLocal(cfg.Storage.UploadDir, log)
	if err != nil {
		return err
	}

	opts := []service.Option{service.WithOversell(cfg.Order.AllowOversell)}
	if cfg.AMQP.Enabled {
		pub := queue.NewPublisher(cfg.AMQP.URL, log)
		// stopped after the HTTP server so in-flight handlers can still enqueue
		pubCtx, stopPub := context.WithCancel(context.Background())
		pubDone := make(chan struct{})
		go func() {
			pub.Run(pubCtx)
			close(pubDone)
		}()
		defer func() {
			stopPub()
			<-pubDone
			_ = pub.Close()
		}()
		opts = append(opts, service.WithPublisher(pub))
	}

	books := repository.NewBookRepo(db)
	readerRepo := repository.NewReaderRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	activityRepo := repository.NewActivityRepo(db)

	readers := service.NewReaderRegistry(readerRepo, orderRepo, log, opts...)
	catalog := service.NewCatalogService(books, repository.NewLanguageRepo(db), repository.NewCategoryRepo(db), blobs, log, opts...)
	orders := service.NewOrderService(orderRepo, books, readers, catalog, activityRepo, log, opts...)
	activity := service.NewActivityService(activityRepo, orderRepo, readerRepo, opts...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORS())

	router.Register(e, router.Handlers{
		Health:     &handler.Health{DB: db, Redis: rdb},
		Books:      handler.NewBookHandler(catalog, log),
		Languages:  handler.NewMasterHandler(catalog.Languages, "Language", log),
		Categories: handler.NewMasterHandler(catalog.Categories, "Category", log),
		Readers:    handler.NewReaderHandler(readers, log),
		Orders:     handler.NewOrderHandler(orders, log),
		Activity:   handler.NewActivityHandler(activity, log),
	}, cfg.Storage.UploadDir,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		middleware.NewRedisCache(cfg.Cache, rdb, log),
	)

	addr := ":" + cfg.App.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.App.Env), zap.String("db", cfg.DB.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
