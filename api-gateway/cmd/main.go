package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/erin-a-z/Biddable/api-gateway/internal/content"
	"github.com/erin-a-z/Biddable/api-gateway/internal/handlers"
	"github.com/erin-a-z/Biddable/api-gateway/internal/limiter"
	"github.com/erin-a-z/Biddable/api-gateway/internal/memory"
	"github.com/erin-a-z/Biddable/api-gateway/internal/notify"
	redisClient "github.com/erin-a-z/Biddable/api-gateway/internal/redis"
	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/config"
	"github.com/erin-a-z/Biddable/shared/logging"
)

func main() {
	if err := config.Load(); err != nil {
		slog.Error("can't load .env", slog.Any("error", err))
		os.Exit(1)
	}

	// Load configuration from environment variables
	cfg := loadConfig()
	logger := logging.New("api-gateway", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := service.Dependencies{Logger: logger}
	var (
		events     service.Subscriber
		bidLimiter *limiter.Limiter
	)

	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store, state is lost on restart")
		store := memory.NewStore()
		deps.Store = store
		deps.Events = append(deps.Events, store)
		events = store

	default:
		logger.Info("connecting to redis", slog.String("addr", cfg.RedisAddr), slog.String("strategy", cfg.RedisStrategy))
		redis, err := redisClient.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisStrategy)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redis.Close()

		deps.Store = redis
		deps.Events = append(deps.Events, redis)
		events = redis
		bidLimiter = newLimiter(redis, cfg)
	}

	if cfg.NatsEnabled {
		logger.Info("connecting to nats", slog.String("url", cfg.NatsURL))
		natsConn, err := nats.Connect(cfg.NatsURL, nats.Name("api-gateway"))
		if err != nil {
			logger.Error("failed to connect to nats", slog.Any("error", err))
			os.Exit(1)
		}
		defer natsConn.Drain()

		dispatcher, err := notify.NewDispatcher(ctx, natsConn)
		if err != nil {
			logger.Error("failed to set up jetstream", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Events = append(deps.Events, dispatcher)
		deps.Archive = dispatcher
		deps.Notifier = dispatcher
	} else {
		logger.Warn("NATS_ENABLED is off, notifications and archival are disabled")
	}

	// Initialize services
	var bidding service.Bidding = service.NewBiddingService(deps, service.Config{
		MaxBidAttempts: cfg.MaxBidAttempts,
		AllowSelfBid:   cfg.AllowSelfBid,
	})
	if bidLimiter != nil {
		bidding = &service.BiddingLimiting{Bidding: bidding, Limiter: bidLimiter, FailOpen: cfg.LimiterFailOpen}
	}
	bidding = &service.BiddingLogging{Bidding: bidding}

	var suggester handlers.Suggester
	if gen := content.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, logger); gen != nil {
		suggester = gen
	} else {
		logger.Warn("OPENAI_API_KEY is empty, content suggestions are disabled")
	}

	// Initialize HTTP handlers
	handler := handlers.NewHandler(bidding, events, suggester)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("api gateway listening", slog.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
}

func newLimiter(redis *redisClient.Client, cfg *Config) *limiter.Limiter {
	if cfg.BidLimit <= 0 {
		return nil
	}
	return &limiter.Limiter{
		Redis:  redis.Redis(),
		Limit:  cfg.BidLimit,
		Window: cfg.BidWindow,
	}
}

// Config holds application configuration
type Config struct {
	ServerAddr    string
	LogLevel      string
	StoreBackend  string // "redis" or "memory"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStrategy string // "lua" or "optimistic"
	NatsURL       string
	NatsEnabled   bool

	MaxBidAttempts  int
	AllowSelfBid    bool
	BidLimit        int
	BidWindow       time.Duration
	LimiterFailOpen bool

	OpenAIKey     string
	OpenAIBaseURL string
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8080"),
		LogLevel:      config.GetEnv("LOG_LEVEL", "info"),
		StoreBackend:  config.GetEnv("STORE_BACKEND", "redis"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		RedisStrategy: config.GetEnv("REDIS_STRATEGY", redisClient.StrategyLua),
		NatsURL:       config.GetEnv("NATS_URL", "nats://localhost:4222"),
		NatsEnabled:   config.GetEnvBool("NATS_ENABLED", true),

		MaxBidAttempts:  config.GetEnvInt("MAX_BID_ATTEMPTS", service.DefaultMaxBidAttempts),
		AllowSelfBid:    config.GetEnvBool("ALLOW_SELF_BID", false),
		BidLimit:        config.GetEnvInt("BID_LIMIT", 30),
		BidWindow:       config.GetEnvDuration("BID_WINDOW", time.Minute),
		LimiterFailOpen: config.GetEnvBool("LIMITER_FAIL_OPEN", true),

		OpenAIKey:     config.GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: config.GetEnv("OPENAI_BASE_URL", ""),
	}
}
