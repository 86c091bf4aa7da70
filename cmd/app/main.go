package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rps_arena/internal/config"
	"rps_arena/internal/db"
	httpServer "rps_arena/internal/http"
	"rps_arena/internal/http/handlers"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/lobby"
	"rps_arena/internal/logger"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/settlement"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg)
	defer store.Close()

	clock := clockwork.NewRealClock()
	svc := service.NewMatchService(store, clock, cfg.Timing, buildSettler(ctx, cfg))
	hub := ws.NewHub(svc)
	svc.SetNotifier(hub)

	var bus *ws.RedisBus
	var busPing handlers.Pinger
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// keep serving: polling works without push fan-out
			logger.Warn("redis unavailable, running single-instance", "addr", cfg.RedisAddr, "error", err)
		} else {
			bus = ws.NewRedisBus(rdb, ws.DefaultChannel)
			busPing = bus
			hub.SetPublisher(bus)
			middleware.UseRedis(rdb)
		}
	}

	lb := lobby.New(svc, clock, cfg.LobbyTTL, cfg.StakeTiers)
	if err := lb.Start(); err != nil {
		logger.Fatal("failed to start lobby scheduler", "error", err)
	}
	defer lb.Stop()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := handlers.NewHandler(svc, lb, clock, handlers.HandlerConfig{
		AuthMaxSkew:   cfg.AuthMaxSkew,
		DefaultBestOf: cfg.DefaultBestOf,
	})
	health := handlers.NewHealthHandler(handlers.HealthDeps{
		Store:   store,
		Bus:     busPing,
		Clock:   clock,
		Version: version,
		Gauges: map[string]func() int{
			"ws_clients":    hub.Clients,
			"lobby_waiting": lb.Waiting,
		},
	})
	httpServer.RegisterRoutes(r, h, health, hub, httpServer.RouteConfig{
		AllowedOrigin:    cfg.AllowedOrigin,
		APIRateLimit:     cfg.APIRateLimit,
		APIRateWindow:    cfg.RateLimitWindow,
		AuthRateLimit:    cfg.AuthRateLimit,
		AuthRateWindow:   cfg.RateLimitWindow,
		ActionRateLimit:  cfg.ActionRateLimit,
		ActionRateWindow: cfg.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreDriver, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bus != nil {
		g.Go(func() error {
			return bus.Run(gctx, hub.Remote)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		return
	}
	logger.Info("server exited")
}

func openStore(ctx context.Context, cfg *config.Config) repository.Store {
	switch cfg.StoreDriver {
	case config.StoreLevelDB:
		s, err := repository.NewLevelStore(cfg.LevelDBPath)
		if err != nil {
			logger.Fatal("failed to open leveldb", "path", cfg.LevelDBPath, "error", err)
		}
		logger.Info("leveldb store opened", "path", cfg.LevelDBPath)
		return s
	default:
		return repository.NewPostgresStore(db.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns)))
	}
}

func buildSettler(ctx context.Context, cfg *config.Config) settlement.Settler {
	var s settlement.Settler = settlement.LogSettler{}
	if cfg.SettlementURL != "" {
		s = settlement.NewHTTPSettler(cfg.SettlementURL, cfg.SettlementToken)
	} else {
		logger.Warn("SETTLEMENT_URL not set, settlements are only logged")
	}

	if cfg.ArchiveBucket == "" {
		return s
	}
	client, err := settlement.NewS3Client(ctx, settlement.ArchiveConfig{
		Bucket:          cfg.ArchiveBucket,
		Endpoint:        cfg.ArchiveEndpoint,
		Region:          cfg.ArchiveRegion,
		AccessKeyID:     cfg.ArchiveKeyID,
		SecretAccessKey: cfg.ArchiveSecret,
	})
	if err != nil {
		logger.Fatal("failed to configure settlement archive", "error", err)
	}
	return settlement.NewArchive(s, client, cfg.ArchiveBucket)
}
