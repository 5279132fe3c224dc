package http

import (
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/usecase"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 2 * time.Minute
)

// Stream message types.
const (
	messageStatus = "status"
	messageResult = "result"
	messageError  = "error"
)

// streamMessage is one frame sent to the client.
type streamMessage struct {
	Type        string                  `json:"type"`
	ExecutionID string                  `json:"executionId,omitempty"`
	Status      domain.ExecutionStatus  `json:"status,omitempty"`
	Result      *domain.ExecutionResult `json:"result,omitempty"`
	Output      string                  `json:"output,omitempty"`
	HasError    bool                    `json:"hasError,omitempty"`
}

// WebSocketHandler runs submissions over a websocket and reports each stage
// as it happens.
type WebSocketHandler struct {
	executeUC  *usecase.ExecuteCodeUsecase
	upgrader   websocket.Upgrader
	maxMessage int64
	logger     *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. Origins not in
// allowedOrigins are refused; an empty list allows any origin.
func NewWebSocketHandler(executeUC *usecase.ExecuteCodeUsecase, allowedOrigins []string, maxMessage int64, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		executeUC:  executeUC,
		maxMessage: maxMessage,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Stream handles GET /api/v1/run/stream (WebSocket upgrade). Each text
// message is a run request; the connection stays open for further runs.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.maxMessage > 0 {
		conn.SetReadLimit(h.maxMessage)
	}

	var mu sync.Mutex
	send := func(msg streamMessage) error {
		mu.Lock()
		defer mu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	h.logger.Debug("WebSocket connection opened")

	for {
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		var req domain.RunRequest
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.logger.Debug("WebSocket read ended", zap.Error(err))
			}
			return
		}

		result, err := h.executeUC.Execute(c.Request.Context(), &req, func(ev domain.ProgressEvent) {
			if ev.Status.IsTerminal() {
				return
			}
			if err := send(streamMessage{Type: messageStatus, ExecutionID: ev.ExecutionID.String(), Status: ev.Status}); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			}
		})
		if err != nil {
			_, msg := mapRunError(err, h.logger)
			if send(streamMessage{Type: messageError, Output: msg, HasError: true}) != nil {
				return
			}
			continue
		}

		if err := send(streamMessage{Type: messageResult, ExecutionID: result.ExecutionID.String(), Status: result.Status, Result: result}); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}
	}
}
