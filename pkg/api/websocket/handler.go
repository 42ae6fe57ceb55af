package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Notebook frontends connect from arbitrary origins
	},
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	metrics  ports.MetricsCollector
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, metrics ports.MetricsCollector, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleExperimentStream streams experiment lifecycle events to the
// client. A batch_id query parameter restricts the stream to one
// batch.
func (h *Handler) HandleExperimentStream(c *gin.Context) {
	batchID := c.Query("batch_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.metrics.ClientConnected()
	defer h.metrics.ClientDisconnected()

	h.logger.Info("WebSocket connection established",
		zap.String("batch_id", batchID),
		zap.String("client", c.ClientIP()))

	eventChan := make(chan domain.Event, 10)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	handler := func(ctx context.Context, event domain.Event) error {
		// Non-blocking send so a slow client cannot stall the bus
		select {
		case eventChan <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	subID, err := h.eventBus.Subscribe(ctx, domain.TopicExperiments, handler)
	if err != nil {
		h.logger.Error("failed to subscribe to events", zap.Error(err))
		return
	}
	defer func() {
		_ = h.eventBus.Unsubscribe(context.Background(), domain.TopicExperiments, subID)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if batchID != "" && event.BatchID != batchID {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}
