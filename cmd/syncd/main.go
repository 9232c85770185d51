package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"traderlaunchpad/internal/config"
	cronrunner "traderlaunchpad/internal/cron"
	"traderlaunchpad/internal/db"
	"traderlaunchpad/internal/handler"
	"traderlaunchpad/internal/lease"
	"traderlaunchpad/internal/logger"
	"traderlaunchpad/internal/models"
	gormrepository "traderlaunchpad/internal/repository/gorm"
	"traderlaunchpad/internal/service"
)

func main() {
	cfgPath := os.Getenv("TL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	secretsKey := strings.TrimSpace(os.Getenv(cfg.Secrets.KeyEnv))
	if secretsKey == "" {
		logger.Warn("secrets key not set, tokens will be stored unencrypted",
			zap.String("env", cfg.Secrets.KeyEnv))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	leaseMgr := lease.New(redisClient, cfg.Lease.TTL)

	store := gormrepository.New(dbConn.Gorm, cfg.Sync.BatchSize)
	syncService := service.NewBrokerSyncService(store, logger, cfg)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Redis: redisClient}
	healthHandler.Register(engine)
	connectionHandler := &handler.ConnectionHandler{Repo: store, SecretsKey: secretsKey}
	connectionHandler.Register(engine)
	syncHandler := &handler.SyncHandler{Svc: syncService, SecretsKey: secretsKey}
	syncHandler.Register(engine)
	tradeHandler := &handler.TradeHandler{Repo: store, Svc: syncService, SecretsKey: secretsKey}
	tradeHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("broker_sync", cfg.Cron.BrokerSync, func(ctx context.Context) {
			syncAllConnections(ctx, cfg, store, syncService, leaseMgr, secretsKey, logger)
		})
		if err != nil {
			logger.Warn("cron register broker sync failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// syncAllConnections walks every connected broker link. With redis available
// each connection is guarded by a distributed lease so overlapping instances
// never sync the same account twice; otherwise the row-level lease on the
// connection itself serves.
func syncAllConnections(ctx context.Context, cfg config.Config, store *gormrepository.Store, syncService *service.BrokerSyncService, leaseMgr *lease.Manager, secretsKey string, logger *zap.Logger) {
	conns, err := store.ListConnectionsByStatus(ctx, "connected", 0)
	if err != nil {
		logger.Warn("listing connections failed", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		if !connectionDue(conn, now, cfg.Sync.IdleInterval) {
			continue
		}
		release, ok := acquireLease(ctx, cfg, store, leaseMgr, conn.ID, logger)
		if !ok {
			continue
		}
		result, err := syncService.Sync(ctx, service.SyncOptions{
			ConnectionID: conn.ID,
			SecretsKey:   secretsKey,
		})
		release()
		if err != nil {
			logger.Warn("scheduled sync failed",
				zap.Uint64("connection_id", conn.ID),
				zap.Error(err),
			)
			continue
		}
		if result.Skipped {
			continue
		}
		logger.Info("scheduled sync ok",
			zap.Uint64("connection_id", conn.ID),
			zap.Int("executions_new", result.ExecutionsNew),
			zap.Int("groups", result.GroupsTouched),
		)
	}
}

// connectionDue applies the poll-cadence bias: connections with an open trade
// or recent broker activity sync every tick, idle ones only once per
// idleInterval.
func connectionDue(conn models.BrokerConnection, now time.Time, idleInterval time.Duration) bool {
	if idleInterval <= 0 || conn.HasOpenTrade || conn.LastSyncAt == nil {
		return true
	}
	if conn.LastBrokerActivityAt != nil && now.Sub(*conn.LastBrokerActivityAt) < idleInterval {
		return true
	}
	return now.Sub(*conn.LastSyncAt) >= idleInterval
}

func acquireLease(ctx context.Context, cfg config.Config, store *gormrepository.Store, leaseMgr *lease.Manager, connectionID uint64, logger *zap.Logger) (func(), bool) {
	if !cfg.Lease.Enabled {
		return func() {}, true
	}
	until := time.Now().Add(leaseMgr.TTL())
	if leaseMgr.Available() {
		ok, err := leaseMgr.Acquire(ctx, connectionID)
		if err != nil {
			logger.Warn("lease acquire failed", zap.Uint64("connection_id", connectionID), zap.Error(err))
			return nil, false
		}
		if !ok {
			return nil, false
		}
		// Mirror owner/expiry onto the row so operators can see who holds it.
		if _, err := store.AcquireConnectionLease(ctx, connectionID, leaseMgr.Owner(), until); err != nil {
			logger.Warn("lease mirror failed", zap.Uint64("connection_id", connectionID), zap.Error(err))
		}
		return func() {
			_ = leaseMgr.Release(ctx, connectionID)
			_ = store.ReleaseConnectionLease(ctx, connectionID, leaseMgr.Owner())
		}, true
	}
	ok, err := store.AcquireConnectionLease(ctx, connectionID, leaseMgr.Owner(), until)
	if err != nil || !ok {
		return nil, false
	}
	return func() { _ = store.ReleaseConnectionLease(ctx, connectionID, leaseMgr.Owner()) }, true
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
