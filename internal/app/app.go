// Package app wires configuration, stores, the import service, background
// jobs and the HTTP server into a runnable process.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tabstash/internal/config"
	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabstash/internal/importer"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
	"github.com/MrSnakeDoc/tabstash/internal/redis"
	"github.com/MrSnakeDoc/tabstash/internal/scheduler"
	"github.com/MrSnakeDoc/tabstash/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/tabstash/internal/store/redis"
	"github.com/MrSnakeDoc/tabstash/internal/store/sqlite"
	"github.com/MrSnakeDoc/tabstash/internal/store/tiered"
	"github.com/MrSnakeDoc/tabstash/internal/version"
)

type App struct {
	cfg              *config.Config
	logger           logger.Logger
	server           *httpserver.Server
	db               *sqlite.Store
	redisClient      *goredis.Client
	bookmarkImporter *scheduler.BookmarkImporter
	janitor          *scheduler.ReplayJanitor
}

// New builds the application. Redis is optional; when configured it must
// answer within the connect timeout or New fails.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	loggerClient.Info("opening database", logger.String("path", cfg.DatabasePath))
	db, err := sqlite.Open(cfg.DatabasePath, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var redisClient *goredis.Client
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		loggerClient.Info("Redis initialized successfully")
	} else {
		loggerClient.Info("redis not configured, idempotency records kept in memory")
	}

	fallbacks := &tiered.Counter{}
	readyChecks := map[string]deps.Pinger{"sqlite": db}

	var resources domain.ResourceStore = db
	if cfg.FallbackEnabled {
		resources = tiered.NewResourceStore(db, memory.NewResourceStore(), fallbacks, loggerClient)
	}

	var replays domain.ReplayStore = memory.NewReplayStore(cfg.ReplayTTL)
	if redisClient != nil {
		redisReplays := redisstore.NewReplayStore(redisClient, cfg.ReplayTTL)
		readyChecks["redis"] = redisReplays
		replays = redisReplays
		if cfg.FallbackEnabled {
			replays = tiered.NewReplayStore(redisReplays, memory.NewReplayStore(cfg.ReplayTTL), fallbacks, loggerClient)
		}
	}

	service := importer.NewService(resources, replays, loggerClient)
	janitor := scheduler.NewReplayJanitor(replays, loggerClient, cfg.ReplayCleanupInterval)

	var bookmarkImporter *scheduler.BookmarkImporter
	var bookmarkReloadTrigger chan struct{}
	if cfg.BookmarksEnabled() {
		loggerClient.Info("bookmark file configured, initializing bookmark importer",
			logger.String("file", cfg.BookmarkFile),
			logger.String("owner_id", cfg.BookmarkOwner))
		bookmarkReloadTrigger = make(chan struct{}, 1)
		bookmarkImporter = scheduler.NewBookmarkImporter(
			cfg.BookmarkFile,
			cfg.BookmarkOwner,
			service,
			loggerClient,
			cfg.ReloadInterval,
			bookmarkReloadTrigger,
		)
	} else {
		loggerClient.Info("bookmark file not configured, bookmark import disabled")
	}

	d := deps.Deps{
		Logger:                loggerClient,
		StartTime:             time.Now(),
		Version:               version.Version,
		Commit:                version.Commit,
		BuildDate:             version.BuildDate,
		GoVersion:             version.GoVersion,
		Importer:              service,
		ReadyChecks:           readyChecks,
		BookmarkReloadTrigger: bookmarkReloadTrigger,
		AdminCIDRS:            cfg.AdminCIDRS,
		TrustProxy:            cfg.TrustProxy,
		ImportBurst:           cfg.ImportBurst,
		ImportRefillPerMin:    cfg.ImportRefillPerMin,
		MaxRequestBodyBytes:   cfg.MaxRequestBodyBytes,
	}
	if cfg.FallbackEnabled {
		d.FallbackCount = fallbacks.Load
	}

	return &App{
		cfg:              cfg,
		logger:           loggerClient,
		server:           httpserver.New(cfg, loggerClient, d),
		db:               db,
		redisClient:      redisClient,
		bookmarkImporter: bookmarkImporter,
		janitor:          janitor,
	}, nil
}

// Run serves until SIGINT/SIGTERM, then shuts down in reverse start order.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting tabstash v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("tabstash %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.janitor.Start(ctx)
	a.logger.Info("replay janitor started",
		logger.Duration("interval", a.cfg.ReplayCleanupInterval))

	if a.bookmarkImporter != nil {
		if err := a.bookmarkImporter.Start(ctx); err != nil {
			a.logger.Error("bookmark importer started without an initial import, waiting for the next reload",
				logger.Error(err))
		} else {
			a.logger.Info("bookmark importer started",
				logger.Duration("interval", a.cfg.ReloadInterval))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.bookmarkImporter != nil {
		a.bookmarkImporter.Stop()
	}
	a.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.close()

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ tabstash stopped cleanly")
	return nil
}

func (a *App) close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
	} else {
		a.logger.Info("✅ Database closed cleanly")
	}
}
