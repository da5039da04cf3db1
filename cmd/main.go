package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blink-market/internal/auth"
	"blink-market/internal/config"
	"blink-market/internal/database"
	"blink-market/internal/events"
	"blink-market/internal/handlers"
	"blink-market/internal/jobs"
	"blink-market/internal/ledger"
	"blink-market/internal/locks"
	"blink-market/internal/logger"
	"blink-market/internal/resolution"
	"blink-market/internal/services"
	"blink-market/internal/socialgraph"
	"blink-market/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.App.Name, cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited with error", zap.Error(err))
	}
	zlog.Info("server exited")
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := cfg.Betting.Policy()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg, zlog)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if err := database.AutoMigrate(db, zlog); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(reg)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		zlog.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	bus := events.NewBus()
	publishers := events.Fanout{bus}
	if rdb != nil {
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.Redis.Prefix))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := events.NewKafkaWriter(strings.Join(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic)
		defer writer.Close()
		publishers = append(publishers, events.NewKafkaPublisher(writer))
		zlog.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var locker locks.Locker = locks.NewLocal()
	if cfg.Ledger.LockBackend == "redis" {
		locker = locks.NewRedis(rdb, cfg.Redis.Prefix, cfg.Ledger.LockTTL)
	}

	l := ledger.New(db, locker, publishers, zlog, metrics, ledger.Options{
		MaxRetries: cfg.Ledger.MaxRetries,
		Backoff:    cfg.Ledger.Backoff,
	})

	settlementService := services.NewSettlementService(l, policy, metrics, zlog)
	marketService := services.NewMarketService(l, settlementService, policy, zlog)
	betService := services.NewBetService(l, policy, metrics, zlog)
	authService := services.NewAuthService(db, zlog)

	issuer, err := auth.NewTokenIssuer(cfg.App.JWTSecret, cfg.App.TokenTTL)
	if err != nil {
		return err
	}
	var nonces auth.NonceStore = auth.NewMemoryNonceStore(auth.NonceTTL)
	if rdb != nil {
		nonces = auth.NewRedisNonceStore(rdb, cfg.Redis.Prefix, auth.NonceTTL)
	}

	graph := socialgraph.NewClient(cfg.SocialGraph.BaseURL, cfg.SocialGraph.APIKey, cfg.SocialGraph.Secret, cfg.SocialGraph.Timeout)
	resolver := resolution.NewThresholdResolver(graph, nil)
	sweeper := jobs.NewSettlementSweeper(marketService, settlementService, resolver, jobs.SweeperOptions{
		GracePeriod: cfg.Sweeper.GracePeriod,
		BatchSize:   cfg.Sweeper.BatchSize,
	}, zlog)

	if cfg.App.Env != "local" && cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(zlog))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	allowed := make(map[string]bool, len(cfg.Server.CORSOrigins))
	for _, o := range cfg.Server.CORSOrigins {
		allowed[o] = true
	}
	routes := &handlers.Router{
		Auth:    handlers.NewAuthHandler(authService, issuer, nonces, auth.DefaultVerifiers(), zlog),
		Markets: handlers.NewMarketHandler(marketService, settlementService, resolver, zlog),
		Bets:    handlers.NewBetHandler(betService, policy, zlog),
		Stream: handlers.NewStreamHandler(bus, func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}, zlog),
		Issuer:        issuer,
		AdminWallets:  cfg.App.AdminWallets,
		OracleWallets: cfg.App.OracleWallets,
		Log:           zlog,
	}
	routes.Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Sweeper.Enabled {
		if err := sweeper.Start(gctx, cfg.Sweeper.Schedule); err != nil {
			return err
		}
	}

	g.Go(func() error {
		zlog.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sweeper.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if dropped := bus.Dropped(); dropped > 0 {
		zlog.Warn("live feed dropped events", zap.Uint64("dropped", dropped))
	}
	return nil
}
