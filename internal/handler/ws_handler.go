package handler

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/middleware"
	"github.com/topiclens/topiclens-backend/internal/service"
	"github.com/topiclens/topiclens-backend/internal/session"
	ws "github.com/topiclens/topiclens-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live attempt session: session commands in, state
// and timer events out.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes: the event pump and the command loop both
// write to the same connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeEvent(event ws.Event, data interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteEvent(w.conn, event, data)
}

func (w *wsConn) writeError(msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteError(w.conn, msg)
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attemptId/stream?token=...
// Upgrades to WebSocket for live session commands and push events.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sess, err := h.attemptService.Resume(c.Request.Context(), attemptID)
	if err != nil {
		ws.WriteError(conn, "no live session for this attempt")
		return
	}

	wc := &wsConn{conn: conn}

	wsLog := h.log.With().
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Push the authoritative state on connect so the client renders
	// without a second round trip.
	if err := wc.writeEvent(ws.EventState, sess.Snapshot()); err != nil {
		return
	}

	// Event pump: forwards countdown and submission events to the client
	// until the connection or stream goes away.
	done := make(chan struct{})
	defer close(done)
	go h.pumpEvents(wc, sess, done, wsLog)

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		h.dispatch(c, wc, attemptID, &msg, wsLog)
	}
}

func (h *WSHandler) dispatch(c *gin.Context, wc *wsConn, attemptID uuid.UUID, msg *ws.RequestPayload, wsLog zerolog.Logger) {
	ctx := c.Request.Context()

	switch msg.Action {
	case ws.ActionAnswer:
		questionID, err := uuid.Parse(msg.QID)
		if err != nil {
			wc.writeError("invalid q_id format")
			return
		}
		state, err := h.attemptService.Answer(ctx, attemptID, questionID, msg.Answer)
		if err != nil {
			wc.writeError(err.Error())
			return
		}
		wc.writeEvent(ws.EventSaved, state)

	case ws.ActionFlag:
		questionID, err := uuid.Parse(msg.QID)
		if err != nil {
			wc.writeError("invalid q_id format")
			return
		}
		state, err := h.attemptService.ToggleFlag(ctx, attemptID, questionID)
		if err != nil {
			wc.writeError(err.Error())
			return
		}
		wc.writeEvent(ws.EventState, state)

	case ws.ActionGoto:
		if msg.Index == nil {
			wc.writeError("index is required")
			return
		}
		state, err := h.attemptService.GoTo(ctx, attemptID, *msg.Index)
		if err != nil {
			wc.writeError(err.Error())
			return
		}
		wc.writeEvent(ws.EventState, state)

	case ws.ActionSubmit:
		report, err := h.attemptService.Submit(ctx, attemptID)
		if err != nil {
			wc.writeError(err.Error())
			return
		}
		wc.writeEvent(ws.EventCompleted, report)

	case ws.ActionState:
		state, err := h.attemptService.State(ctx, attemptID)
		if err != nil {
			wc.writeError(err.Error())
			return
		}
		wc.writeEvent(ws.EventState, state)

	case ws.ActionPing:
		wc.writeEvent(ws.EventPong, nil)

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		wc.writeError("unknown action: " + string(msg.Action))
	}
}

// pumpEvents forwards session events to the client. A failed write ends
// the pump; the read loop notices the broken connection on its own.
func (h *WSHandler) pumpEvents(wc *wsConn, sess *session.Session, done <-chan struct{}, wsLog zerolog.Logger) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			if err := wc.writeEvent(eventName(ev.Kind), ev); err != nil {
				wsLog.Debug().Err(err).Msg("Event push failed")
				return
			}
		}
	}
}

func eventName(kind session.EventKind) ws.Event {
	switch kind {
	case session.EventLowTime:
		return ws.EventLowTime
	case session.EventExpired:
		return ws.EventExpired
	case session.EventCompleted:
		return ws.EventCompleted
	case session.EventSubmitFailed:
		return ws.EventSubmitFailed
	default:
		return ws.EventState
	}
}
