package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/usecase"
)

// JobHandler exposes the Job Manager usecases over HTTP.
type JobHandler struct {
	createUC *usecase.CreateJobUsecase
	getUC    *usecase.GetJobUsecase
	log      *zap.Logger
}

func NewJobHandler(createUC *usecase.CreateJobUsecase, getUC *usecase.GetJobUsecase, log *zap.Logger) *JobHandler {
	return &JobHandler{createUC: createUC, getUC: getUC, log: log}
}

type createJobBody struct {
	URL        string `json:"url" binding:"required"`
	RoutingKey string `json:"routing_key" binding:"required"`
}

// Create handles POST /job.
func (h *JobHandler) Create(c *gin.Context) {
	var body createJobBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := h.createUC.Execute(c.Request.Context(), usecase.CreateJobRequest{
		URL:        body.URL,
		RoutingKey: body.RoutingKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrEmptyRoutingKey), errors.Is(err, domain.ErrFileTooSmall), errors.Is(err, domain.ErrUpstreamUnreachable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPublishFailed):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		default:
			h.log.Error("create job failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetData handles GET /data.
func (h *JobHandler) GetData(c *gin.Context) {
	idStr := c.Query("job_id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid uuid"})
		return
	}

	job, err := h.getUC.Execute(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.log.Error("get job failed", zap.String("job_id", idStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, job)
}
