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
	"golang.org/x/sync/errgroup"

	natsSub "github.com/erin-a-z/Biddable/broadcast-service/internal/nats"
	redisClient "github.com/erin-a-z/Biddable/broadcast-service/internal/redis"
	wsHandler "github.com/erin-a-z/Biddable/broadcast-service/internal/websocket"
	"github.com/erin-a-z/Biddable/shared/config"
	"github.com/erin-a-z/Biddable/shared/logging"
)

func main() {
	if err := config.Load(); err != nil {
		slog.Error("can't load .env", slog.Any("error", err))
		os.Exit(1)
	}

	cfg := loadConfig()
	logger := logging.New("broadcast-service", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("broadcast service stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	logger.Info("connecting to redis", slog.String("addr", cfg.RedisAddr))
	subscriber, err := redisClient.NewSubscriber(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	if err := subscriber.SubscribeToItems(ctx); err != nil {
		return err
	}

	var notifications *natsSub.Subscriber
	if cfg.NatsEnabled {
		logger.Info("connecting to nats", slog.String("url", cfg.NatsURL))
		conn, err := nats.Connect(cfg.NatsURL, nats.Name("broadcast-service"))
		if err != nil {
			return err
		}
		defer conn.Drain()

		if notifications, err = natsSub.Subscribe(conn); err != nil {
			return err
		}
		defer notifications.Close()
	} else {
		logger.Warn("NATS_ENABLED is off, user notifications are disabled")
	}

	manager := wsHandler.NewManager(logger)
	handler := wsHandler.NewHandler(manager, logger)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(ctx)
	})

	// Redis Pub/Sub -> item topics
	items := make(chan *redisClient.Message, 256)
	g.Go(func() error {
		return subscriber.Listen(ctx, items)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-items:
				manager.Broadcast(wsHandler.ItemTopic(msg.ItemID), msg.Payload)
			}
		}
	})

	// NATS notifications -> user topics
	if notifications != nil {
		users := make(chan *natsSub.Message, 256)
		g.Go(func() error {
			return notifications.Listen(ctx, users)
		})
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg := <-users:
					manager.Broadcast(wsHandler.UserTopic(msg.UserID), msg.Payload)
				}
			}
		})
	}

	g.Go(func() error {
		logger.Info("broadcast service listening", slog.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Config holds application configuration
type Config struct {
	ServerAddr    string
	LogLevel      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsURL       string
	NatsEnabled   bool
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8081"),
		LogLevel:      config.GetEnv("LOG_LEVEL", "info"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		NatsURL:       config.GetEnv("NATS_URL", "nats://localhost:4222"),
		NatsEnabled:   config.GetEnvBool("NATS_ENABLED", true),
	}
}
