package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/usecase"
)

const (
	wsMaxDuration    = 10 * time.Minute
	wsPollInterval   = 500 * time.Millisecond
	wsPingInterval   = 30 * time.Second
	wsPongTimeout    = 10 * time.Second
	wsMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler streams a Job's status until it reaches a terminal
// state, polling the same usecase GET /data uses rather than subscribing
// directly to the broker — this keeps the live-view honest about what's
// actually been persisted.
type WebSocketHandler struct {
	getUC *usecase.GetJobUsecase
	log   *zap.Logger
}

func NewWebSocketHandler(getUC *usecase.GetJobUsecase, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{getUC: getUC, log: log}
}

// Stream handles GET /job/:id/stream.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if _, err := h.getUC.Execute(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout + wsPingInterval))
		return nil
	})

	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pollTicker := time.NewTicker(wsPollInterval)
	defer pollTicker.Stop()
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()
	maxTimer := time.NewTimer(wsMaxDuration)
	defer maxTimer.Stop()

	var lastStatus domain.JobStatus

	for {
		select {
		case <-clientDone:
			return

		case <-maxTimer.C:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "max connection duration exceeded"))
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-pollTicker.C:
			job, err := h.getUC.Execute(c.Request.Context(), id)
			if err != nil {
				conn.WriteJSON(gin.H{"error": "job not found"})
				return
			}

			if job.Status != lastStatus {
				conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
				if err := conn.WriteJSON(job); err != nil {
					return
				}
				lastStatus = job.Status
			}

			if job.Status == domain.JobCompleted || job.Status == domain.JobFailed {
				conn.WriteJSON(job)
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job completed"))
				return
			}
		}
	}
}
