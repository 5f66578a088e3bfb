package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"skinadvisor/internal/advisor"
	"skinadvisor/internal/config"
	"skinadvisor/internal/ratelimit"
	"skinadvisor/internal/server"
	"skinadvisor/internal/usertoken"
	"skinadvisor/internal/util"
	"skinadvisor/pkg/ai"
	"skinadvisor/pkg/events"
	"skinadvisor/pkg/queue"
	"skinadvisor/pkg/storage"
	"skinadvisor/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		util.Fatal("failed to init jwks verifier", "err", err)
	}

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}

	completer, err := ai.NewAnthropicClient(cfg.AnthropicAPIKey)
	if err != nil {
		util.Fatal("failed to init completion client", "err", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	jobQueue, err := queue.NewRedisJobQueue(queue.Config{
		Client: redisClient,
		Stream: cfg.JobStream,
		Group:  cfg.JobGroup,
	})
	if err != nil {
		util.Fatal("failed to init job queue", "err", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init object storage", "err", err)
		}
		objects = minioStore
	}

	var publisher events.InsightPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.InsightExchange)
		if err != nil {
			util.Fatal("failed to init insight publisher", "err", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	adv, err := advisor.New(advisor.Config{
		Store:           st,
		Completer:       completer,
		Jobs:            jobQueue,
		Objects:         objects,
		Publisher:       publisher,
		GenerationModel: cfg.GenerationModel,
		UtilityModel:    cfg.UtilityModel,
		MaxTokens:       cfg.MaxTokens,
		HistoryLimit:    cfg.HistoryLimit,
	})
	if err != nil {
		util.Fatal("failed to init advisor", "err", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimit > 0 {
		window, err := config.ParseRateLimitWindow(cfg.RateLimitWindow)
		if err != nil {
			util.Fatal("failed to parse rate limit window", "err", err)
		}
		limiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "skinadvisor:ratelimit", cfg.RateLimit, window)
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := cfg.JobWorkers
	if workers <= 0 {
		workers = 2
	}
	jobQueue.Start(ctx, workers, adv.HandleJob)

	httpServer := server.New(server.Config{
		Advisor:       adv,
		Store:         st,
		TokenVerifier: tokenVerifier,
		Limiter:       limiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("advisor server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
