package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/engine"
	"github.com/scholarpath/testportal-backend/internal/middleware"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/scholarpath/testportal-backend/internal/service"
	ws "github.com/scholarpath/testportal-backend/internal/websocket"
)

// WSHandler streams the live session over a WebSocket: answer capture and
// submission upstream, the authoritative countdown downstream.
type WSHandler struct {
	sessions *service.SessionService
	upgrader gorilla.Upgrader
	log      zerolog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, allowedOrigins map[string]bool, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return allowedOrigins[r.Header.Get("Origin")]
			},
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// wsConn serializes writes: gorilla allows one concurrent writer and the
// tick pusher runs alongside the read loop's replies.
type wsConn struct {
	mu   sync.Mutex
	conn *gorilla.Conn
}

func (w *wsConn) send(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) sendError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = ws.WriteError(w.conn, msg)
}

// SessionStream godoc
// GET /ws/v1/tests/:testId/session?token=...&application_no=...
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	applicationNo := c.Query("application_no")
	if applicationNo == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	// The session must exist before the socket is worth holding open.
	if _, _, err := h.sessions.Clock(c.Request.Context(), testID, applicationNo, claims.Name); err != nil {
		failFromErr(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw}
	done := make(chan struct{})
	defer close(done)

	go h.pushTicks(conn, testID, applicationNo, claims.Name, done)
	h.readLoop(conn, testID, applicationNo, claims.Name)
}

// pushTicks streams the server-side countdown once per second until the
// session leaves the in-progress state or the socket closes.
func (h *WSHandler) pushTicks(conn *wsConn, testID uuid.UUID, applicationNo, candidateName string, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			remaining, status, err := h.sessions.Clock(ctx, testID, applicationNo, candidateName)
			cancel()
			if err != nil {
				return
			}
			if status != engine.StatusInProgress {
				return
			}
			if err := conn.send(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining}); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(conn *wsConn, testID uuid.UUID, applicationNo, candidateName string) {
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn.conn, &raw); err != nil {
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			conn.sendError("malformed message")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		h.dispatch(ctx, conn, testID, applicationNo, candidateName, envelope.Action, raw)
		cancel()
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *wsConn, testID uuid.UUID, applicationNo, candidateName string, action ws.Action, raw json.RawMessage) {
	switch action {
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			conn.sendError("malformed answer")
			return
		}
		err := h.sessions.Answer(ctx, testID, applicationNo, candidateName, &model.AnswerRequest{
			QuestionIndex:  req.QuestionIndex,
			SelectedOption: req.SelectedOption,
		})
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		_ = conn.send(ws.AckResponse{Event: ws.EventSuccess, Status: "saved"})

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			conn.sendError("malformed navigate")
			return
		}
		if err := h.sessions.Navigate(ctx, testID, applicationNo, candidateName, req.QuestionIndex); err != nil {
			conn.sendError(err.Error())
			return
		}
		_ = conn.send(ws.AckResponse{Event: ws.EventSuccess, Status: "moved"})

	case ws.ActionAutosave:
		if err := h.sessions.SaveSnapshot(ctx, testID, applicationNo, candidateName); err != nil {
			conn.sendError(err.Error())
			return
		}
		_ = conn.send(ws.AckResponse{Event: ws.EventSuccess, Status: "snapshotted"})

	case ws.ActionSubmit:
		result, err := h.sessions.Submit(ctx, testID, applicationNo, candidateName)
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		_ = conn.send(ws.SubmittedResponse{
			Event:      ws.EventSubmitted,
			Status:     "submitted",
			Percentage: result.Percentage,
			Result:     string(result.Status),
		})

	case ws.ActionPing:
		_ = conn.send(ws.PongResponse{Event: ws.EventPong})

	default:
		conn.sendError("unknown action")
	}
}
