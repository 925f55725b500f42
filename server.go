package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/middlewares"
	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/utils"
	"github.com/almacen/inventory_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "3000"

// newRouter builds the engine with the middleware chain every request goes through.
func newRouter(app *App, ready *middlewares.Readiness, limiter *middlewares.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ErrorLogger(app.logger))
	r.Use(middlewares.Recovery(app.logger))
	r.Use(cors.New(corsConfig()))
	r.Use(ready.Gate("/", "/healthz"))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Use(middlewares.SessionMiddleware())
	registerRoutes(r, app, ready)
	return r
}

// corsConfig allows every origin outside production. In production only
// CORS_ALLOWED_ORIGINS is accepted, and an empty list denies all.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if config.IsProduction() {
		cfg.AllowOrigins = config.CORSAllowedOrigins()
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", middlewares.UserHeader, middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	return cfg
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	logger := config.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := registerValidators(); err != nil {
		logger.WithError(err).Fatal("register binding validators")
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen first; the readiness gate answers 503 until the database is migrated.
	app := &App{logger: logger}
	ready := &middlewares.Readiness{}
	var limiter *middlewares.RateLimiter
	if config.RateLimitEnabled() && !config.RedisDisabled() {
		limiter = middlewares.NewRateLimiter(nil, int64(config.RateLimitMaxRequests()), config.RateLimitWindow(), logger)
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(app, ready, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": port}).Info("http server listening")

	db, err := config.ConnectDatabaseWithRetry(sigCtx)
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer closeDatabase(db, logger)

	var rdb *redis.Client
	var locker *redislock.Client
	if config.RedisDisabled() {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_DISABLED=true; running without cache, locks or rate limiting")
	} else {
		rdb, locker, err = config.ConnectRedisWithRetry(sigCtx, 5)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).WithError(err).Warn("redis unavailable; running without cache, locks or rate limiting")
		} else if limiter != nil {
			limiter.SetClient(rdb)
		}
	}

	if config.SkipMigrations() {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping migrations on startup")
	} else if err := runMigrations(sigCtx, db, locker, logger); err != nil {
		logger.WithError(err).Fatal("run migrations")
	}

	publisher, err := config.NewEventPublisher(config.SaleEventsSink())
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "events"}).WithError(err).Error("sale events disabled")
		publisher = nil
	}

	app.store = models.NewStore(db,
		models.WithCache(rdb),
		models.WithLocker(locker),
		models.WithLogger(logger),
		models.WithEvents(publisher != nil),
	)
	if gcs := utils.NewGCSStoreFromEnv(); gcs != nil {
		app.objects = gcs
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	dispatcherDone := make(chan struct{})
	if publisher != nil {
		go func() {
			defer close(dispatcherDone)
			workflow.NewOutboxDispatcher(db, publisher, logger).Run(dispatcherCtx)
		}()
	} else {
		close(dispatcherDone)
	}

	ready.SetReady(true)
	logger.WithFields(logrus.Fields{
		"port":   port,
		"driver": db.Dialector.Name(),
		"events": config.SaleEventsSink(),
	}).Info("server ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background work before draining requests.
	ready.SetReady(false)
	cancelDispatcher()
	<-dispatcherDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// runMigrations holds a Redis lock when one is available so that only one
// instance migrates at a time.
func runMigrations(ctx context.Context, db *gorm.DB, locker *redislock.Client, logger *logrus.Logger) error {
	release, _ := utils.TryLock(ctx, locker, logger, "migrationLock", 5*time.Minute, 2*time.Minute)
	defer release()

	applied, err := models.MigrateTable(ctx, db, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"field": "migrations", "applied": applied}).Info("migrations up to date")
	return nil
}

// closeDatabase releases the pool. A gorm handle without a *sql.DB is logged, not ignored.
func closeDatabase(db *gorm.DB, logger *logrus.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		config.LogError(logger, "main", "closeDatabase", "get sql.DB from gorm", nil, err)
		return err
	}
	if err := sqlDB.Close(); err != nil {
		config.LogError(logger, "main", "closeDatabase", "close database pool", nil, err)
		return err
	}
	return nil
}
