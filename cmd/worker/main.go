package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/config"
	"github.com/benchfabric/benchfabric/internal/workerrt"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("starting benchfabric worker",
		zap.String("worker_name", cfg.Name),
		zap.Strings("topics", cfg.Topics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := broker.NewConnection(broker.Endpoint{
		URL:      cfg.RabbitMQ.Endpoint,
		Username: cfg.RabbitMQ.Username,
		Password: cfg.RabbitMQ.Password,
	}, logger)
	if err != nil {
		logger.Fatal("failed to configure broker connection", zap.Error(err))
	}

	runtime, err := workerrt.New(cfg, conn, logger)
	if err != nil {
		logger.Fatal("failed to initialize worker runtime", zap.Error(err))
	}

	metricsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	metricsSrv.Handler = mux

	go func() {
		logger.Info("worker metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- runtime.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down worker")
		cancel()
		if err := <-runErrCh; err != nil {
			logger.Error("worker runtime exited with error", zap.Error(err))
		}
	case err := <-runErrCh:
		if err != nil {
			logger.Error("worker runtime exited with error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("worker stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
