package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthHandler reports liveness of the scheduler's three external
// dependencies: Postgres, the broker, and Redis.
type HealthHandler struct {
	log     *zap.Logger
	dbPool  *pgxpool.Pool
	amqpURI string
	rdb     *redis.Client
}

func NewHealthHandler(log *zap.Logger, dbPool *pgxpool.Pool, amqpURI string, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{log: log, dbPool: dbPool, amqpURI: amqpURI, rdb: rdb}
}

// Health handles GET /healthcheck.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	pgStatus := "ok"
	if err := h.dbPool.Ping(ctx); err != nil {
		pgStatus = "error: " + err.Error()
		h.log.Warn("postgres health check failed", zap.Error(err))
	}

	brokerStatus := "ok"
	conn, err := amqp.Dial(h.amqpURI)
	if err != nil {
		brokerStatus = "error: " + err.Error()
		h.log.Warn("broker health check failed", zap.Error(err))
	} else {
		conn.Close()
	}

	redisStatus := "ok"
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		redisStatus = "error: " + err.Error()
		h.log.Warn("redis health check failed", zap.Error(err))
	}

	status := "ok"
	code := http.StatusOK
	if pgStatus != "ok" || brokerStatus != "ok" || redisStatus != "ok" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"services": gin.H{
			"postgres": pgStatus,
			"broker":   brokerStatus,
			"redis":    redisStatus,
		},
	})
}
