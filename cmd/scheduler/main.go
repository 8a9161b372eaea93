package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/config"
	"github.com/benchfabric/benchfabric/internal/httpapi"
	"github.com/benchfabric/benchfabric/internal/repository/postgres"
	"github.com/benchfabric/benchfabric/internal/schedulerapi"
	"github.com/benchfabric/benchfabric/internal/upstream"
	"github.com/benchfabric/benchfabric/internal/usecase"
)

// brokerDialURI folds the separately-configured username/password into
// RABBITMQ_ENDPOINT, for the health check's own amqp.Dial call (the
// broker package's Connection does this internally for its own dials).
func brokerDialURI(endpoint, username, password string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse RABBITMQ_ENDPOINT: %w", err)
	}
	parsed.User = url.UserPassword(username, password)
	return parsed.String(), nil
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("starting benchfabric scheduler")

	cfg, err := config.LoadScheduler()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	gin.SetMode(cfg.HTTP.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	logger.Info("connected to postgres")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("invalid redis url", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to ping redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	amqpURI, err := brokerDialURI(cfg.RabbitMQ.Endpoint, cfg.RabbitMQ.Username, cfg.RabbitMQ.Password)
	if err != nil {
		logger.Fatal("invalid RABBITMQ_ENDPOINT", zap.Error(err))
	}
	conn, err := broker.NewConnection(broker.Endpoint{
		URL:      cfg.RabbitMQ.Endpoint,
		Username: cfg.RabbitMQ.Username,
		Password: cfg.RabbitMQ.Password,
	}, logger)
	if err != nil {
		logger.Fatal("failed to configure broker connection", zap.Error(err))
	}
	defer conn.Close()

	jobPub, err := broker.NewPublisher(conn, broker.JobPublisherConfig(), logger)
	if err != nil {
		logger.Fatal("failed to open job publisher", zap.Error(err))
	}
	defer jobPub.Close()
	logger.Info("connected to broker")

	jobRepo := postgres.NewJobRepository(dbPool)
	subJobRepo := postgres.NewSubJobRepository(dbPool)
	resultRepo := postgres.NewResultRepository(dbPool)
	workerRepo := postgres.NewWorkerRepository(dbPool)
	topicRepo := postgres.NewTopicRepository(dbPool)

	probe := upstream.NewHTTPProbe()
	createUC := usecase.NewCreateJobUsecase(jobRepo, subJobRepo, probe, jobPub,
		cfg.SyncDelay, cfg.DownloadDelay, cfg.MaxDownloadDuration, cfg.SubJobCount, logger)
	getUC := usecase.NewGetJobUsecase(jobRepo, logger)
	ingestUC := usecase.NewIngestResultUsecase(resultRepo, subJobRepo, jobRepo, logger)

	registry := schedulerapi.NewRegistry(conn, workerRepo, topicRepo, logger)
	resultConsumer := schedulerapi.NewResultConsumer(conn, ingestUC, logger)

	go func() {
		if err := registry.Run(ctx); err != nil {
			logger.Error("worker registry stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := resultConsumer.Run(ctx); err != nil {
			logger.Error("result consumer stopped", zap.Error(err))
		}
	}()

	router := httpapi.NewRouter(&httpapi.RouterDeps{
		CreateJobUC: createUC,
		GetJobUC:    getUC,
		Logger:      logger,
		RateLimit:   cfg.HTTP.RateLimit,
		DBPool:      dbPool,
		AmqpURI:     amqpURI,
		Redis:       rdb,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("scheduler http server listening", zap.Int("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("scheduler stopped")
}
