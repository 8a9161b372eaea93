package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/httpapi/middleware"
	"github.com/benchfabric/benchfabric/internal/usecase"
)

// RouterDeps holds everything NewRouter needs to wire the scheduler's HTTP
// surface.
type RouterDeps struct {
	CreateJobUC *usecase.CreateJobUsecase
	GetJobUC    *usecase.GetJobUsecase
	Logger      *zap.Logger
	RateLimit   int
	DBPool      *pgxpool.Pool
	AmqpURI     string
	Redis       *redis.Client
}

// NewRouter builds the gin.Engine serving POST /job, GET /data, the
// websocket status stream, /healthcheck and /metrics.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.BodySizeLimit(1 << 20))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	health := NewHealthHandler(deps.Logger, deps.DBPool, deps.AmqpURI, deps.Redis)
	router.GET("/healthcheck", health.Health)

	jobs := NewJobHandler(deps.CreateJobUC, deps.GetJobUC, deps.Logger)
	rateLimited := router.Group("")
	rateLimited.Use(middleware.RateLimiter(deps.Redis, deps.RateLimit))
	{
		rateLimited.POST("/job", jobs.Create)
	}
	router.GET("/data", jobs.GetData)

	ws := NewWebSocketHandler(deps.GetJobUC, deps.Logger)
	router.GET("/job/:id/stream", ws.Stream)

	return router
}
